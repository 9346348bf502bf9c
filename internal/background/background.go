// Package background implements the fire-and-forget shell job runner of
// spec §4.7 "Background Executor operations", grounded on the original
// source's subprocess-timeout-truncate pattern
// (backend/app/background/runner.go: execute/run/check/drain_notifications)
// and the teacher's goroutine-per-task dispatch shape
// (internal/domain/agent/react/background.go).
package background

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cortexlane/cortex/internal/domain/background"
	"github.com/cortexlane/cortex/internal/domain/trace"
)

const (
	runTimeout = 300 * time.Second
	outputCap  = 50000
)

// Tracer is the minimal emit surface the executor needs.
type Tracer interface {
	Emit(event string, fields map[string]any)
}

// Executor runs shell commands detached from the caller, notifying the main
// loop via a drain-once queue. mu guards the job map and the notification
// queue only; it is not held while a job's command runs.
type Executor struct {
	workdir string
	trace   Tracer

	mu    sync.Mutex
	jobs  map[string]*background.Job
	queue []background.Notification
}

// New binds an Executor to workdir, the directory background commands run
// in (the session workspace, per spec §4.7).
func New(workdir string, tr Tracer) *Executor {
	return &Executor{
		workdir: workdir,
		trace:   tr,
		jobs:    make(map[string]*background.Job),
	}
}

func newTaskID() string {
	return uuid.NewString()[:8]
}

// Run spawns command in a goroutine and returns its task id immediately,
// per spec §4.7 "run() generates an 8-hex-char id and returns without
// waiting".
func (e *Executor) Run(command string) string {
	taskID := newTaskID()
	job := &background.Job{TaskID: taskID, Command: command, Status: background.StatusRunning}

	e.mu.Lock()
	e.jobs[taskID] = job
	e.mu.Unlock()

	if e.trace != nil {
		e.trace.Emit(trace.EventBackgroundRun, map[string]any{"task_id": taskID, "command": command})
	}

	go e.execute(taskID, command)
	return taskID
}

// execute is the goroutine body: run the command with a hard timeout,
// truncate output, and post a notification. Errors never propagate to the
// caller of Run — they land in the Job record and the notification queue.
func (e *Executor) execute(taskID, command string) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = e.workdir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()

	status := background.StatusCompleted
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		status = background.StatusTimeout
	case runErr != nil:
		status = background.StatusError
	}

	result := out.String()
	if len(result) > outputCap {
		result = result[:outputCap]
	}

	e.mu.Lock()
	job, ok := e.jobs[taskID]
	if ok {
		job.Status = status
		job.Result = result
	}
	e.queue = append(e.queue, background.Notification{
		TaskID:  taskID,
		Status:  status,
		Command: command,
		Result:  result,
	})
	e.mu.Unlock()

	if e.trace != nil {
		e.trace.Emit(trace.EventBackgroundDone, map[string]any{
			"task_id": taskID, "status": string(status),
		})
	}
}

// Check returns the current Job record for taskID, or false if unknown.
func (e *Executor) Check(taskID string) (background.Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[taskID]
	if !ok {
		return background.Job{}, false
	}
	return *job, true
}

// DrainNotifications empties and returns the pending notification queue.
// Each notification is delivered at most once, per spec §4.7 and §8
// "Background notification delivery".
func (e *Executor) DrainNotifications() []background.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil
	}
	out := e.queue
	e.queue = nil
	return out
}
