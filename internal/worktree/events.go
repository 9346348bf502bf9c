package worktree

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// EventLog appends to `.worktrees/events.jsonl`, bit-exact to spec §6:
// `{event, ts, task, worktree, error?}`. Kept distinct from tracer.Tracer's
// trace.jsonl because spec §6 gives events.jsonl its own, narrower schema
// (no run_id).
type EventLog struct {
	mu   sync.Mutex
	path string
}

// NewEventLog binds an EventLog to `.worktrees/events.jsonl` under dir.
func NewEventLog(worktreesDir string) *EventLog {
	return &EventLog{path: worktreesDir + "/events.jsonl"}
}

// Emit implements worktree.EventSink.
func (l *EventLog) Emit(event string, fields map[string]any) {
	line := map[string]any{
		"event": event,
		"ts":    float64(time.Now().UnixNano()) / 1e9,
	}
	for k, v := range fields {
		line[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_ = json.NewEncoder(f).Encode(line)
}

// ListRecent returns the last limit lines of events.jsonl, newest last, for
// the HTTP /events and /ws/events routes. A limit of 0 returns every line;
// a missing file yields nil.
func (l *EventLog) ListRecent(limit int) ([]map[string]any, error) {
	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var all []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err == nil {
			all = append(all, m)
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
