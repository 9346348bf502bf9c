// Package bus implements the per-recipient append-only inbox files and the
// send/drain/broadcast primitives of spec §4.6 "Message Bus", grounded on
// the original source's MessageBus (backend/app/team/message_bus.py).
package bus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cortexlane/cortex/internal/domain/inbox"
)

// Bus sends/drains JSONL inbox files under one directory, one file per
// recipient name.
type Bus struct {
	dir string
}

// New binds a Bus to a directory, matching spec §3 "Message Bus owns inbox
// files". The directory must already exist (session.Session creates it).
func New(dir string) *Bus {
	return &Bus{dir: dir}
}

func (b *Bus) path(name string) string {
	return filepath.Join(b.dir, name+".jsonl")
}

// Send appends one message to `to`'s inbox. msgType must be in the closed
// set spec §3 defines; an invalid type is a protocol violation surfaced as
// an error, per spec §7.
func (b *Bus) Send(from, to, content string, msgType inbox.MsgType, extra map[string]any) error {
	if !inbox.Valid[msgType] {
		return fmt.Errorf("invalid message type %q", msgType)
	}
	msg := inbox.Message{
		Type:      msgType,
		From:      from,
		Content:   content,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Extra:     extra,
	}
	f, err := os.OpenFile(b.path(to), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(msg)
}

// ReadInbox reads name's inbox file and then truncates it to empty with a
// second, separate write, matching the original source's
// read-then-write("") sequence. Per spec §5, concurrent readers of the same
// inbox are not additionally serialised -- the convention is a single
// reader per recipient.
func (b *Bus) ReadInbox(name string) ([]inbox.Message, error) {
	path := b.path(name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", name, err)
	}
	var out []inbox.Message
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var m inbox.Message
		if err := json.Unmarshal(line, &m); err == nil {
			out = append(out, m)
		}
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return out, fmt.Errorf("truncate inbox %s: %w", name, err)
	}
	return out, nil
}

// Broadcast sends one "broadcast" message to every member other than from,
// per spec §8 "Broadcast excludes sender".
func (b *Bus) Broadcast(from, content string, members []string) (int, error) {
	count := 0
	for _, name := range members {
		if name == from {
			continue
		}
		if err := b.Send(from, name, content, inbox.TypeBroadcast, nil); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
