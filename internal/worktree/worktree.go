// Package worktree implements the git-worktree lifecycle wrapper of spec
// §4.5, grounded on the teacher's internal/infra/external/workspace/manager.go
// (exec.CommandContext git invocation shape) and the original source's
// exact validation/denylist/truncation constants
// (backend/app/worktree/worktree_manager.go).
package worktree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cortexlane/cortex/internal/domain/task"
	"github.com/cortexlane/cortex/internal/domain/trace"
	wt "github.com/cortexlane/cortex/internal/domain/worktree"
)

const (
	runTimeout    = 300 * time.Second
	gitCheckTimeout = 10 * time.Second
	gitTimeout      = 120 * time.Second
	outputCap       = 50000
)

var dangerousSubstrings = []string{"rm -rf /", "sudo", "shutdown", "reboot", "> /dev/"}

// TaskStore is the subset of taskstore.Store the manager needs to validate
// and bind tasks.
type TaskStore interface {
	Exists(id int) bool
	Get(id int) (*task.Task, error)
	BindWorktree(id int, worktree, owner string) (*task.Task, error)
	Update(id int, status task.Status, addBlockedBy, addBlocks []int) (*task.Task, error)
	UnbindWorktree(id int) (*task.Task, error)
}

// EventSink receives worktree/task lifecycle events; tracer.Tracer and the
// dedicated events.jsonl writer both implement it.
type EventSink interface {
	Emit(event string, fields map[string]any)
}

// Manager owns `.worktrees/index.json` and the physical worktree
// directories created/destroyed through git. Its lifecycle events go to the
// EventSink passed to New; the manager itself never opens events.jsonl.
type Manager struct {
	mu         sync.Mutex
	repoRoot   string
	worktreesDir string
	indexPath  string
	tasks      TaskStore
	events     EventSink
	gitOK      bool
}

// New probes for a git repository at repoRoot and prepares the index file.
func New(repoRoot string, tasks TaskStore, events EventSink) (*Manager, error) {
	dir := filepath.Join(repoRoot, ".worktrees")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("worktree dir: %w", err)
	}
	m := &Manager{
		repoRoot:     repoRoot,
		worktreesDir: dir,
		indexPath:    filepath.Join(dir, "index.json"),
		tasks:        tasks,
		events:       events,
	}
	if _, err := os.Stat(m.indexPath); os.IsNotExist(err) {
		if err := m.saveIndex(&wt.Index{Worktrees: []*wt.Entry{}}); err != nil {
			return nil, err
		}
	}
	m.gitOK = m.isGitRepo()
	return m, nil
}

func (m *Manager) isGitRepo() bool {
	ctx, cancel := context.WithTimeout(context.Background(), gitCheckTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = m.repoRoot
	return cmd.Run() == nil
}

func (m *Manager) runGit(args ...string) (string, error) {
	if !m.gitOK {
		return "", fmt.Errorf("not in a git repository; worktree tools require git")
	}
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = m.repoRoot
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			msg = fmt.Sprintf("git %s failed: %v", strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("%s", msg)
	}
	result := strings.TrimSpace(out.String())
	if result == "" {
		result = "(no output)"
	}
	return result, nil
}

func (m *Manager) loadIndex() (*wt.Index, error) {
	data, err := os.ReadFile(m.indexPath)
	if err != nil {
		return nil, err
	}
	var idx wt.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func (m *Manager) saveIndex(idx *wt.Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.indexPath, data, 0o644)
}

func (m *Manager) find(idx *wt.Index, name string) *wt.Entry {
	for _, e := range idx.Worktrees {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (m *Manager) emit(event string, taskID *int, entry map[string]any, errText string) {
	if m.events == nil {
		return
	}
	fields := map[string]any{}
	if taskID != nil {
		fields["task"] = map[string]any{"id": *taskID}
	} else {
		fields["task"] = map[string]any{}
	}
	fields["worktree"] = entry
	if errText != "" {
		fields["error"] = errText
	}
	m.events.Emit(event, fields)
}

// IntPtr is a small helper for tool handlers turning an optional task_id
// argument into the *int Create/Remove expect.
func IntPtr(v int) *int { return &v }

// Create validates the name, ensures absence in the index, ensures the task
// exists if given, runs `git worktree add -b wt/<name> <path> <base_ref>`,
// and binds the task, per spec §4.5.
func (m *Manager) Create(name string, taskID *int, baseRef string) (*wt.Entry, error) {
	if !wt.ValidName(name) {
		return nil, fmt.Errorf("invalid worktree name. Use 1-40 chars: letters, numbers, ., _, -")
	}
	if baseRef == "" {
		baseRef = "HEAD"
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.loadIndex()
	if err != nil {
		return nil, err
	}
	if m.find(idx, name) != nil {
		return nil, fmt.Errorf("worktree %q already exists in index", name)
	}
	if taskID != nil && !m.tasks.Exists(*taskID) {
		return nil, fmt.Errorf("task %d not found", *taskID)
	}

	path := filepath.Join(m.worktreesDir, name)
	branch := wt.Branch(name)

	m.emit(trace.EventWorktreeCreateBefore, taskID, map[string]any{"name": name, "base_ref": baseRef}, "")

	if _, err := m.runGit("worktree", "add", "-b", branch, path, baseRef); err != nil {
		m.emit(trace.EventWorktreeCreateFailed, taskID, map[string]any{"name": name, "base_ref": baseRef}, err.Error())
		return nil, err
	}

	entry := &wt.Entry{
		Name: name, Path: path, Branch: branch, TaskID: taskID,
		Status: wt.StatusActive, CreatedAt: time.Now(),
	}
	idx.Worktrees = append(idx.Worktrees, entry)
	if err := m.saveIndex(idx); err != nil {
		return nil, err
	}
	if taskID != nil {
		if _, err := m.tasks.BindWorktree(*taskID, name, ""); err != nil {
			return nil, err
		}
	}
	m.emit(trace.EventWorktreeCreateAfter, taskID, map[string]any{
		"name": name, "path": path, "branch": branch, "status": string(wt.StatusActive),
	}, "")
	return entry, nil
}

// Status runs `git status --short --branch` inside the lane.
func (m *Manager) Status(name string) (string, error) {
	m.mu.Lock()
	idx, err := m.loadIndex()
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	e := m.find(idx, name)
	if e == nil {
		return "", fmt.Errorf("unknown worktree %q", name)
	}
	if _, err := os.Stat(e.Path); err != nil {
		return "", fmt.Errorf("worktree path missing: %s", e.Path)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "status", "--short", "--branch")
	cmd.Dir = e.Path
	var out bytes.Buffer
	cmd.Stdout, cmd.Stderr = &out, &out
	_ = cmd.Run()
	result := strings.TrimSpace(out.String())
	if result == "" {
		result = "Clean worktree"
	}
	return result, nil
}

// Run rejects a denylisted command, then executes inside the lane with a
// 300s timeout, truncated to 50000 bytes, per spec §4.5.
func (m *Manager) Run(name, command string) (string, error) {
	for _, d := range dangerousSubstrings {
		if strings.Contains(command, d) {
			return "", fmt.Errorf("dangerous command blocked")
		}
	}
	m.mu.Lock()
	idx, err := m.loadIndex()
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	e := m.find(idx, name)
	if e == nil {
		return "", fmt.Errorf("unknown worktree %q", name)
	}
	if _, err := os.Stat(e.Path); err != nil {
		return "", fmt.Errorf("worktree path missing: %s", e.Path)
	}
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = e.Path
	var out bytes.Buffer
	cmd.Stdout, cmd.Stderr = &out, &out
	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("timeout (300s)")
	}
	text := strings.TrimSpace(out.String())
	if len(text) > outputCap {
		text = text[:outputCap]
	}
	if text == "" {
		text = "(no output)"
	}
	return text, nil
}

// Remove invokes `git worktree remove`, optionally completes the bound
// task, and marks the index entry removed, per spec §4.5.
func (m *Manager) Remove(name string, force, completeTask bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.loadIndex()
	if err != nil {
		return err
	}
	e := m.find(idx, name)
	if e == nil {
		return fmt.Errorf("unknown worktree %q", name)
	}

	m.emit(trace.EventWorktreeRemoveBefore, e.TaskID, map[string]any{"name": name, "path": e.Path}, "")

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, e.Path)
	if _, err := m.runGit(args...); err != nil {
		m.emit(trace.EventWorktreeRemoveFailed, e.TaskID, map[string]any{"name": name, "path": e.Path}, err.Error())
		return err
	}

	if completeTask && e.TaskID != nil {
		taskID := *e.TaskID
		before, _ := m.tasks.Get(taskID)
		if _, err := m.tasks.Update(taskID, task.StatusCompleted, nil, nil); err != nil {
			return err
		}
		if _, err := m.tasks.UnbindWorktree(taskID); err != nil {
			return err
		}
		subject := ""
		if before != nil {
			subject = before.Subject
		}
		m.emit(trace.EventTaskCompleted, &taskID, map[string]any{"subject": subject, "status": "completed"}, "")
	}

	now := time.Now()
	for _, item := range idx.Worktrees {
		if item.Name == name {
			item.Status = wt.StatusRemoved
			item.RemovedAt = &now
		}
	}
	if err := m.saveIndex(idx); err != nil {
		return err
	}
	m.emit(trace.EventWorktreeRemoveAfter, e.TaskID, map[string]any{
		"name": name, "path": e.Path, "status": string(wt.StatusRemoved),
	}, "")
	return nil
}

// Keep marks the index entry status=kept without touching files.
func (m *Manager) Keep(name string) (*wt.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.loadIndex()
	if err != nil {
		return nil, err
	}
	e := m.find(idx, name)
	if e == nil {
		return nil, fmt.Errorf("unknown worktree %q", name)
	}
	now := time.Now()
	e.Status = wt.StatusKept
	e.KeptAt = &now
	if err := m.saveIndex(idx); err != nil {
		return nil, err
	}
	m.emit(trace.EventWorktreeKeep, e.TaskID, map[string]any{
		"name": name, "path": e.Path, "status": string(wt.StatusKept),
	}, "")
	return e, nil
}

// ListAll renders the index.
func (m *Manager) ListAll() (string, error) {
	m.mu.Lock()
	idx, err := m.loadIndex()
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	if len(idx.Worktrees) == 0 {
		return "No worktrees in index.", nil
	}
	var b strings.Builder
	for _, e := range idx.Worktrees {
		suffix := ""
		if e.TaskID != nil {
			suffix = fmt.Sprintf(" task=%d", *e.TaskID)
		}
		fmt.Fprintf(&b, "[%s] %s -> %s (%s)%s\n", e.Status, e.Name, e.Path, e.Branch, suffix)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
