// Package worktree defines the persistent git-worktree index entry.
package worktree

import (
	"regexp"
	"time"
)

// Status is the lifecycle state of a worktree lane.
type Status string

const (
	StatusActive  Status = "active"
	StatusKept    Status = "kept"
	StatusRemoved Status = "removed"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,40}$`)

// ValidName reports whether name satisfies the spec's 1-40 char,
// [A-Za-z0-9._-] naming rule.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// Branch derives the git branch name for a worktree lane.
func Branch(name string) string { return "wt/" + name }

// Entry is one `.worktrees/index.json` row, per spec §3 "Worktree entry".
type Entry struct {
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Branch    string     `json:"branch"`
	TaskID    *int       `json:"task_id,omitempty"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	KeptAt    *time.Time `json:"kept_at,omitempty"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

// Index is the full `.worktrees/index.json` document.
type Index struct {
	Worktrees []*Entry `json:"worktrees"`
}

// Event is one `.worktrees/events.jsonl` line.
type Event struct {
	Event     string    `json:"event"`
	Timestamp float64   `json:"ts"`
	Task      *EventRef `json:"task,omitempty"`
	Worktree  *EventRef `json:"worktree,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// EventRef is the small task/worktree payload subset carried in an event.
type EventRef struct {
	ID     *int   `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Path   string `json:"path,omitempty"`
	Branch string `json:"branch,omitempty"`
	Status string `json:"status,omitempty"`
	BaseRef string `json:"base_ref,omitempty"`
}
