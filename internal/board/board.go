// Package board implements the shared unclaimed-task pool with atomic
// single-claim semantics, per spec §4.4 "Task Board operations". Grounded
// on the original source's claim_lock + on-disk re-read
// (backend/app/team/state.py: scan_unclaimed_tasks / claim_task).
package board

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cortexlane/cortex/internal/domain/task"
)

// StoreSync lets the Board push a successful claim's owner back onto the
// Task Store's canonical record, so `taskstore.ListAll` and the board agree
// on who owns a task.
type StoreSync interface {
	BindWorktree(id int, worktree, owner string) (*task.Task, error)
}

// Board owns `<session>/board/task_<id>.json`.
type Board struct {
	mu    sync.Mutex // serialises claims, per spec §5 "Claim uniqueness"
	dir   string
	store StoreSync
}

// New binds a Board to dir. store may be nil (useful in tests that only
// exercise the board in isolation).
func New(dir string, store StoreSync) *Board {
	return &Board{dir: dir, store: store}
}

func (b *Board) path(id int) string {
	return filepath.Join(b.dir, fmt.Sprintf("task_%d.json", id))
}

// Publish mirrors a Task Store record into the board, called by the Task
// Store on every create/update so the board always reflects the latest
// owner/status/blockedBy state (spec §3 "Board entry mirrors a Task").
func (b *Board) Publish(t *task.Task) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path(t.ID), data, 0o644)
}

func (b *Board) load(id int) (*task.Task, error) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		return nil, err
	}
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ScanUnclaimed returns pending, unowned, unblocked tasks sorted by id, per
// spec §4.4 "scan_unclaimed".
func (b *Board) ScanUnclaimed() ([]*task.Task, error) {
	matches, err := filepath.Glob(filepath.Join(b.dir, "task_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := []*task.Task{}
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		if t.Unclaimed() {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Claim atomically assigns owner to task id: under the lock, re-read the
// on-disk record; fail if already owned; otherwise set owner and
// status=in_progress and persist. Per spec §8 "Claim uniqueness", across
// concurrent callers exactly one succeeds.
func (b *Board) Claim(id int, owner string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.load(id)
	if err != nil {
		return fmt.Errorf("task %d not found", id)
	}
	if t.Owner != "" {
		return fmt.Errorf("task %d already claimed by %s", id, t.Owner)
	}
	t.Owner = owner
	t.Status = task.StatusInProgress
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(b.path(id), data, 0o644); err != nil {
		return err
	}
	if b.store != nil {
		if _, err := b.store.BindWorktree(id, t.Worktree, owner); err != nil {
			return fmt.Errorf("sync claim to task store: %w", err)
		}
	}
	return nil
}
