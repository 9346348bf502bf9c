// Package taskstore persists task state for the main agent, per spec §4.4
// "Task Store operations". Grounded on the teacher's atomic temp-write
// pattern (internal/domain/task/store.go) and the original source's exact
// id-allocation/slug/block-edge semantics (backend/app/task/task_manager.py).
package taskstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cortexlane/cortex/internal/domain/task"
	"github.com/cortexlane/cortex/internal/domain/trace"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// slug mirrors the original source's _slug(): lowercase, non-alnum runs
// collapsed to '-', truncated to 40 chars, trimmed of leading/trailing '-'.
func slug(subject string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(subject), "-")
	if len(s) > 40 {
		s = s[:40]
	}
	return strings.Trim(s, "-")
}

// Mirror is implemented by the Task Board so the Store can publish a
// board-visible copy on every mutation (spec §3 "Board entry mirrors a
// Task").
type Mirror interface {
	Publish(t *task.Task) error
}

// Tracer is the minimal emit surface the store needs.
type Tracer interface {
	Emit(event string, fields map[string]any)
}

// Store owns `<session>/tasks/task_<id>_<slug>.json`.
type Store struct {
	mu     sync.Mutex
	dir    string
	mirror Mirror
	trace  Tracer
}

// New binds a Store to dir. mirror and trace may be nil; mirror is commonly
// wired after construction via SetMirror once the Board exists, since the
// two share a constructor cycle (Board.New also takes the Store back for
// claim push-back).
func New(dir string, mirror Mirror, trace Tracer) *Store {
	return &Store{dir: dir, mirror: mirror, trace: trace}
}

// SetMirror wires (or rewires) the board mirror after construction.
func (s *Store) SetMirror(mirror Mirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = mirror
}

func (s *Store) glob(pattern string) ([]string, error) {
	return filepath.Glob(filepath.Join(s.dir, pattern))
}

func (s *Store) maxID() (int, error) {
	matches, err := s.glob("task_*.json")
	if err != nil {
		return 0, err
	}
	max := 0
	for _, m := range matches {
		base := filepath.Base(m)
		parts := strings.SplitN(strings.TrimSuffix(base, ".json"), "_", 3)
		if len(parts) < 2 {
			continue
		}
		if id, err := strconv.Atoi(parts[1]); err == nil && id > max {
			max = id
		}
	}
	return max, nil
}

func (s *Store) find(id int) (string, error) {
	matches, err := s.glob(fmt.Sprintf("task_%d_*.json", id))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("task %d not found", id)
	}
	return matches[0], nil
}

func (s *Store) load(id int) (*task.Task, error) {
	path, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return readTaskFile(path)
}

func readTaskFile(path string) (*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &t, nil
}

// save removes any stale file for t.ID (slug may have changed) and writes
// the current record via temp-write-then-rename, matching the teacher's
// atomic-persist posture for the Task Store's files.
func (s *Store) save(t *task.Task) error {
	stale, _ := s.glob(fmt.Sprintf("task_%d_*.json", t.ID))
	target := filepath.Join(s.dir, fmt.Sprintf("task_%d_%s.json", t.ID, slug(t.Subject)))
	for _, old := range stale {
		if old != target {
			_ = os.Remove(old)
		}
	}
	if err := writeAtomic(target, t); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Publish(t); err != nil {
			return fmt.Errorf("mirror task %d to board: %w", t.ID, err)
		}
	}
	return nil
}

func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (s *Store) emit(event string, fields map[string]any) {
	if s.trace != nil {
		s.trace.Emit(event, fields)
	}
}

// Create allocates a new monotonically increasing id and persists a pending
// task, per spec §4.4.
func (s *Store) Create(subject, description string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	maxID, err := s.maxID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	t := &task.Task{
		ID:          maxID + 1,
		Subject:     subject,
		Description: description,
		Status:      task.StatusPending,
		BlockedBy:   []int{},
		Blocks:      []int{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.save(t); err != nil {
		return nil, err
	}
	s.emit(trace.EventTaskCreate, map[string]any{"task_id": t.ID, "subject": subject})
	return t, nil
}

// Get retrieves a task by id.
func (s *Store) Get(id int) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// Exists reports whether id is a known task, without error on absence.
func (s *Store) Exists(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.find(id)
	return err == nil
}

// Update applies an optional status transition and blockedBy/blocks edges,
// per spec §4.4: completing a task removes its id from every other task's
// blockedBy; addBlocks is symmetric.
func (s *Store) Update(id int, status task.Status, addBlockedBy, addBlocks []int) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load(id)
	if err != nil {
		return nil, err
	}
	oldStatus := t.Status
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("invalid status %q", status)
		}
		t.Status = status
		if status == task.StatusCompleted {
			if err := s.unblockEveryone(id); err != nil {
				return nil, err
			}
		}
	}
	if len(addBlockedBy) > 0 {
		t.AddBlockedBy(addBlockedBy...)
	}
	if len(addBlocks) > 0 {
		t.AddBlocks(addBlocks...)
		for _, bid := range addBlocks {
			blocked, err := s.load(bid)
			if err != nil {
				continue // spec: silently skip an unknown downstream id
			}
			blocked.AddBlockedBy(id)
			if err := s.save(blocked); err != nil {
				return nil, err
			}
		}
	}
	t.UpdatedAt = time.Now()
	if err := s.save(t); err != nil {
		return nil, err
	}
	if status != "" && status != oldStatus {
		s.emit(trace.EventTaskStatus, map[string]any{
			"task_id": id, "subject": t.Subject, "from_status": oldStatus, "to_status": status,
		})
	}
	return t, nil
}

// unblockEveryone walks every task and removes id from its blockedBy list,
// per spec §8 "Blocked-by hygiene".
func (s *Store) unblockEveryone(id int) error {
	matches, err := s.glob("task_*.json")
	if err != nil {
		return err
	}
	for _, m := range matches {
		t, err := readTaskFile(m)
		if err != nil {
			continue
		}
		before := len(t.BlockedBy)
		t.RemoveFromBlockedBy(id)
		if len(t.BlockedBy) != before {
			if err := s.save(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// BindWorktree records a worktree/owner binding and flips pending to
// in_progress, per spec §4.4 "bind_worktree".
func (s *Store) BindWorktree(id int, worktree, owner string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load(id)
	if err != nil {
		return nil, err
	}
	t.Worktree = worktree
	if owner != "" {
		t.Owner = owner
	}
	if t.Status == task.StatusPending {
		t.Status = task.StatusInProgress
	}
	t.UpdatedAt = time.Now()
	if err := s.save(t); err != nil {
		return nil, err
	}
	s.emit(trace.EventTaskBindWT, map[string]any{
		"task_id": id, "subject": t.Subject, "worktree": worktree, "owner": t.Owner,
	})
	return t, nil
}

// UnbindWorktree clears a task's worktree binding without touching status.
func (s *Store) UnbindWorktree(id int) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load(id)
	if err != nil {
		return nil, err
	}
	t.Worktree = ""
	t.UpdatedAt = time.Now()
	if err := s.save(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListAll renders a status-sorted (pending, in_progress, completed; by id
// within a status), marker-prefixed view, per spec §4.4.
func (s *Store) ListAll() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches, err := s.glob("task_*.json")
	if err != nil {
		return "", err
	}
	sort.Strings(matches)
	var tasks []*task.Task
	for _, m := range matches {
		t, err := readTaskFile(m)
		if err == nil {
			tasks = append(tasks, t)
		}
	}
	rank := map[task.Status]int{task.StatusPending: 0, task.StatusInProgress: 1, task.StatusCompleted: 2}
	sort.SliceStable(tasks, func(i, j int) bool {
		if rank[tasks[i].Status] != rank[tasks[j].Status] {
			return rank[tasks[i].Status] < rank[tasks[j].Status]
		}
		return tasks[i].ID < tasks[j].ID
	})
	if len(tasks) == 0 {
		return "No tasks.", nil
	}
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "%s #%d: %s", t.Status.Marker(), t.ID, t.Subject)
		if len(t.BlockedBy) > 0 {
			fmt.Fprintf(&b, " (blocked by: %v)", t.BlockedBy)
		}
		if t.Worktree != "" {
			fmt.Fprintf(&b, " wt=%s", t.Worktree)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
