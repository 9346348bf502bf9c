// Package compaction implements the three-tier context-compaction pipeline
// of spec §4.9, grounded bit-exact on
// _examples/original_source/backend/app/compaction.py: THRESHOLD=50000,
// KEEP_RECENT=3, the summary prompt's three-point structure, and the exact
// synthetic two-message replacement.
package compaction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cortexlane/cortex/internal/domain/message"
)

const (
	// Threshold is the estimated-token count above which auto-compact
	// fires, matching the original's THRESHOLD.
	Threshold = 50000
	// KeepRecent is the number of most-recent tool-result messages
	// micro-compact leaves untouched, matching KEEP_RECENT.
	KeepRecent = 3

	placeholderThreshold = 100
	transcriptCharCap    = 80000
	perMessageCharCap    = 500

	ackText = "明白。我已获取摘要中的上下文，继续执行。"
)

// TokenCounter estimates the token count of a history, preferring an
// LLM-provided precise counter and falling back to a 4-chars-per-token
// heuristic, per spec §4.9.2.
type TokenCounter interface {
	CountTokens(history []message.Message) (int, bool)
}

// Summarizer asks the LLM for the auto-compact summary text.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// EstimateTokens uses counter if it can answer, else a 4-chars-per-token
// estimate over the JSON-marshalled history, matching the original's
// `len(str(history)) // 4` fallback.
func EstimateTokens(history []message.Message, counter TokenCounter) int {
	if counter != nil {
		if n, ok := counter.CountTokens(history); ok {
			return n
		}
	}
	data, _ := json.Marshal(history)
	return len(data) / 4
}

// MicroCompact walks history and, for every tool-result message outside the
// last KeepRecent, replaces any result content longer than
// placeholderThreshold chars with "[Previous: used <tool_name>]". Call-id
// pairing is always preserved: messages are never dropped, only their
// content shortened. Mutates history in place and also returns it.
func MicroCompact(history []message.Message) []message.Message {
	toolIdxs := make([]int, 0)
	for i, m := range history {
		if m.Kind == message.KindTool {
			toolIdxs = append(toolIdxs, i)
		}
	}
	if len(toolIdxs) <= KeepRecent {
		return history
	}

	names := message.CallIDToName(history)
	cutoff := toolIdxs[len(toolIdxs)-KeepRecent]

	for _, idx := range toolIdxs {
		if idx >= cutoff {
			continue
		}
		for ri, r := range history[idx].Results {
			if len(r.Content) <= placeholderThreshold {
				continue
			}
			name := names[r.CallID]
			if name == "" {
				name = "tool"
			}
			history[idx].Results[ri].Content = fmt.Sprintf("[Previous: used %s]", name)
		}
	}
	return history
}

// AutoCompact writes the full history to transcriptPath as JSONL, asks the
// summarizer for a three-point summary, and replaces history with exactly
// two synthetic messages: a user message carrying the transcript path and
// summary, and a fixed assistant acknowledgement. Per spec §4.9.2 and §8
// "Auto-compact reduces history length to exactly two messages."
func AutoCompact(ctx context.Context, history []message.Message, transcriptPath string, sum Summarizer) ([]message.Message, error) {
	if err := writeTranscript(history, transcriptPath); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	summary, err := sum.Summarize(ctx, buildSummaryPrompt(history))
	if err != nil {
		return nil, fmt.Errorf("summarize history: %w", err)
	}

	userMsg := message.User(fmt.Sprintf("[Conversation compressed. Transcript: %s]\n\n%s", transcriptPath, summary))
	ackMsg := message.Assistant(ackText)
	return []message.Message{userMsg, ackMsg}, nil
}

func writeTranscript(history []message.Message, path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range history {
		line := map[string]string{"role": string(m.Kind), "content": renderContent(m)}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func renderContent(m message.Message) string {
	if m.Kind == message.KindTool {
		parts := make([]string, 0, len(m.Results))
		for _, r := range m.Results {
			parts = append(parts, r.Content)
		}
		return strings.Join(parts, "\n")
	}
	return m.Content
}

// buildSummaryPrompt renders history capped at transcriptCharCap total,
// each message truncated to perMessageCharCap, and asks for the same
// three-point structure as the original source's Chinese prompt.
func buildSummaryPrompt(history []message.Message) string {
	var b strings.Builder
	for _, m := range history {
		text := renderContent(m)
		if len(text) > perMessageCharCap {
			text = text[:perMessageCharCap]
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Kind, text)
		if b.Len() > transcriptCharCap {
			break
		}
	}
	convo := b.String()
	if len(convo) > transcriptCharCap {
		convo = convo[:transcriptCharCap]
	}
	return fmt.Sprintf(
		"请总结以下对话，包括：\n1. 已完成的工作\n2. 当前状态\n3. 关键决策\n\n对话内容：\n%s",
		convo,
	)
}

// ManualRequested is consumed at the end of the Main Loop's turn, per spec
// §4.9.3: the `compact` tool sets this flag rather than compacting inline,
// so compaction always happens between turns with a consistent history
// snapshot.
type ManualRequested struct {
	requested bool
}

// Request marks that the next end-of-turn check should run AutoCompact.
func (m *ManualRequested) Request() { m.requested = true }

// Consume reports and clears the pending flag.
func (m *ManualRequested) Consume() bool {
	v := m.requested
	m.requested = false
	return v
}
