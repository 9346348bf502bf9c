// Package background defines the fire-and-forget job record shared by the
// Background Executor and the notification queues the Main Loop and
// Teammate Loop drain between turns.
package background

// Status is the lifecycle state of a background job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusTimeout   Status = "timeout"
	StatusError     Status = "error"
)

// Job is one tracked background invocation, per spec §3 "Background job".
type Job struct {
	TaskID  string `json:"task_id"`
	Command string `json:"command"`
	Status  Status `json:"status"`
	Result  string `json:"result"`
}

// Notification is the completion record drained at most once by the first
// caller to observe it (spec §5 "Background notifications are drained
// at-most-once").
type Notification struct {
	TaskID  string `json:"task_id"`
	Status  Status `json:"status"`
	Command string `json:"command"`
	Result  string `json:"result"`
}
