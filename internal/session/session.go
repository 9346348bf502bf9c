// Package session owns the per-run directory housing message transcripts,
// inboxes, boards, workspaces, and traces, per spec §4.10 and §3 "Ownership".
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cortexlane/cortex/internal/domain/message"
)

// Session is the explicit, constructor-threaded value that replaces the
// teacher-and-original-source pattern of a module-level "current session
// key" plus lazily-reset bus/team singletons (spec §9 "Module-level
// singletons → explicit context").
type Session struct {
	Root string // repo root .sessions lives under
	Key  string
}

// NewKey mints a new session key: a timestamp string, per spec §3 "Session".
func NewKey() string { return time.Now().Format("20060102_150405") }

// Open binds a Session value to key under root/.sessions. It does not touch
// the filesystem; directories are created lazily by the accessor methods.
func Open(root, key string) *Session {
	if key == "" {
		key = "default"
	}
	return &Session{Root: root, Key: key}
}

// Dir is the session's own directory, created on first access.
func (s *Session) Dir() (string, error) {
	d := filepath.Join(s.Root, ".sessions", s.Key)
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", fmt.Errorf("session dir: %w", err)
	}
	return d, nil
}

func (s *Session) subdir(name string) (string, error) {
	base, err := s.Dir()
	if err != nil {
		return "", err
	}
	d := filepath.Join(base, name)
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", fmt.Errorf("session subdir %s: %w", name, err)
	}
	return d, nil
}

// TasksDir is `<session>/tasks/`.
func (s *Session) TasksDir() (string, error) { return s.subdir("tasks") }

// BoardDir is `<session>/board/`.
func (s *Session) BoardDir() (string, error) { return s.subdir("board") }

// TeamDir is `<session>/team/`.
func (s *Session) TeamDir() (string, error) { return s.subdir("team") }

// InboxDir is `<session>/team/inbox/`.
func (s *Session) InboxDir() (string, error) {
	team, err := s.TeamDir()
	if err != nil {
		return "", err
	}
	d := filepath.Join(team, "inbox")
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", fmt.Errorf("inbox dir: %w", err)
	}
	return d, nil
}

// WorkspaceDir is `<session>/workspace/`.
func (s *Session) WorkspaceDir() (string, error) { return s.subdir("workspace") }

// TracePath is `<session>/trace.jsonl`.
func (s *Session) TracePath() (string, error) {
	d, err := s.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "trace.jsonl"), nil
}

// TranscriptPath is `<session>/transcript.jsonl`.
func (s *Session) TranscriptPath() (string, error) {
	d, err := s.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "transcript.jsonl"), nil
}

// historyPath is `<session>/<agentName>.jsonl` -- "main" for the lead loop,
// the teammate/sub-agent name otherwise.
func (s *Session) historyPath(agentName string) (string, error) {
	d, err := s.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, agentName+".jsonl"), nil
}

// Save writes history to `<session>/<agentName>.jsonl`, one JSON object per
// line, overwriting any prior content -- matching the original source's
// save_session (whole-file rewrite, not append).
func (s *Session) Save(agentName string, history []message.Message) error {
	path, err := s.historyPath(agentName)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save session %s: %w", agentName, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, m := range history {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("save session %s: %w", agentName, err)
		}
	}
	return nil
}

// Load reconstructs a message history from `<session>/<agentName>.jsonl` by
// discriminator field, per spec §4.10's "load_session" helper. A missing
// file yields an empty, non-error history.
func (s *Session) Load(agentName string) ([]message.Message, error) {
	path, err := s.historyPath(agentName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", agentName, err)
	}
	return decodeJSONL(data)
}

func decodeJSONL(data []byte) ([]message.Message, error) {
	var out []message.Message
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var m message.Message
		if err := dec.Decode(&m); err != nil {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

// List returns every session key under root/.sessions, newest first, per
// spec §4.10's resume-key lookup ("missing key picks the newest").
func List(root string) ([]string, error) {
	base := filepath.Join(root, ".sessions")
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

// Newest returns the most recent session key, or "" if none exist.
func Newest(root string) (string, error) {
	keys, err := List(root)
	if err != nil || len(keys) == 0 {
		return "", err
	}
	return keys[0], nil
}
