// Package mainloop drives one user-prompt-to-final-answer cycle, per spec
// §4.1. Grounded on the teacher's coordinator turn sequence
// (internal/agent/app/coordinator.go's Run method) generalised to thread
// in inbox/background/nag/compaction concerns the teacher's coordinator
// doesn't have.
package mainloop

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexlane/cortex/internal/background"
	"github.com/cortexlane/cortex/internal/bus"
	"github.com/cortexlane/cortex/internal/compaction"
	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/domain/trace"
	"github.com/cortexlane/cortex/internal/llmports"
	"github.com/cortexlane/cortex/internal/session"
	"github.com/cortexlane/cortex/internal/toolregistry"
	"github.com/cortexlane/cortex/internal/tracer"
)

const nagRoundThreshold = 3

// TeamLive reports whether the team subsystem has been initialised for
// this session, gating inbox injection per spec §4.1 step 3 "only if the
// team subsystem is live, to avoid eager directory creation".
type TeamLive func() bool

// Loop drives the main agent conversation.
type Loop struct {
	llm        llmports.Client
	tools      *toolregistry.Registry
	sess       *session.Session
	trace      *tracer.Tracer
	leadInbox  *bus.Bus
	teamLive   TeamLive
	bg         *background.Executor
	manual     compaction.ManualRequested
	counter    compaction.TokenCounter
	summarizer compaction.Summarizer

	roundsSinceTodoWrite int
	filesWrittenSinceReflect bool

	history []message.Message
}

// New builds a Loop bound to one session's collaborators.
func New(llm llmports.Client, tools *toolregistry.Registry, sess *session.Session, tr *tracer.Tracer, leadInbox *bus.Bus, teamLive TeamLive, bg *background.Executor, counter compaction.TokenCounter, sum compaction.Summarizer) *Loop {
	return &Loop{
		llm: llm, tools: tools, sess: sess, trace: tr,
		leadInbox: leadInbox, teamLive: teamLive, bg: bg,
		counter: counter, summarizer: sum,
	}
}

// RequestManualCompact is invoked by the `compact` tool handler.
func (l *Loop) RequestManualCompact() { l.manual.Request() }

// NoteTodoWrite resets the nag counter when the agent updates its todo list.
func (l *Loop) NoteTodoWrite() { l.roundsSinceTodoWrite = 0 }

// NoteFileWrite marks that a file write has happened since the last
// reflection pass, for the reflection-gate nag.
func (l *Loop) NoteFileWrite() { l.filesWrittenSinceReflect = true }

// NoteReflection clears the reflection-gate nag after a reflection pass runs.
func (l *Loop) NoteReflection() { l.filesWrittenSinceReflect = false }

// Run executes one full turn for prompt and returns the final answer text.
func (l *Loop) Run(ctx context.Context, prompt string) (string, error) {
	runID := tracer.NewRunID()
	start := time.Now()
	toolCount := 0

	if l.trace != nil {
		l.trace.EmitRun(runID, trace.EventRunStart, map[string]any{"prompt_preview": preview(prompt, 120)})
	}

	l.history = append(l.history, message.User(prompt))

	// 1. Micro-compact in place.
	l.history = compaction.MicroCompact(l.history)

	// 2. Auto-compact gate.
	if err := l.maybeAutoCompact(ctx, false); err != nil {
		return "", fmt.Errorf("auto-compact: %w", err)
	}

	// 3. Inbox injection (only if the team subsystem is live).
	l.injectInbox()

	// 4. Background drain.
	l.drainBackground()

	// 5. Nag injection.
	l.roundsSinceTodoWrite++
	l.injectNags()

	// 6. ReAct stream.
	final, err := l.react(ctx, &toolCount)
	if err != nil {
		return "", err
	}

	// 7. Empty-content fallback.
	if final == "" {
		final, err = l.emptyContentFallback(ctx)
		if err != nil {
			return "", err
		}
	}

	// 8. Persist.
	if err := l.sess.Save("main", l.history); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	// 9. Manual compact, if the `compact` tool fired this run.
	if l.manual.Consume() {
		if err := l.maybeAutoCompact(ctx, true); err != nil {
			return "", fmt.Errorf("manual compact: %w", err)
		}
		if err := l.sess.Save("main", l.history); err != nil {
			return "", fmt.Errorf("save session after manual compact: %w", err)
		}
	}

	// 10. run.end
	if l.trace != nil {
		l.trace.EmitRun(runID, trace.EventRunEnd, map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"tool_count":  toolCount,
		})
	}
	return final, nil
}

func (l *Loop) maybeAutoCompact(ctx context.Context, force bool) error {
	n := compaction.EstimateTokens(l.history, l.counter)
	if !force && n <= compaction.Threshold {
		return nil
	}
	transcriptPath, err := l.sess.TranscriptPath()
	if err != nil {
		return fmt.Errorf("transcript path: %w", err)
	}
	compacted, err := compaction.AutoCompact(ctx, l.history, transcriptPath, l.summarizer)
	if err != nil {
		return err
	}
	kind := "auto"
	if force {
		kind = "manual"
	}
	if l.trace != nil {
		l.trace.Emit(trace.EventCompaction, map[string]any{"estimated_tokens": n, "kind": kind})
	}
	l.history = compacted
	return nil
}

// injectInbox wraps any queued lead messages as a user/assistant
// acknowledgement pair, per spec §4.1 step 3.
func (l *Loop) injectInbox() {
	if l.teamLive == nil || !l.teamLive() || l.leadInbox == nil {
		return
	}
	msgs, err := l.leadInbox.ReadInbox("lead")
	if err != nil || len(msgs) == 0 {
		return
	}
	l.history = append(l.history,
		message.User(fmt.Sprintf("[team inbox] %d message(s): %v", len(msgs), msgs)),
		message.Assistant("Acknowledged team inbox."),
	)
}

// drainBackground appends any completed background-job notifications as a
// user/assistant pair, per spec §4.1 step 4.
func (l *Loop) drainBackground() {
	if l.bg == nil {
		return
	}
	notes := l.bg.DrainNotifications()
	if len(notes) == 0 {
		return
	}
	l.history = append(l.history,
		message.User(fmt.Sprintf("[background] %d job(s) finished: %v", len(notes), notes)),
		message.Assistant("Acknowledged background results."),
	)
}

// injectNags reminds the agent to update its todo list, and separately to
// run a reflection pass after unreflected file writes, per spec §4.1 step 5.
func (l *Loop) injectNags() {
	if l.roundsSinceTodoWrite >= nagRoundThreshold {
		l.history = append(l.history, message.User("Reminder: update your todo list if priorities have shifted."))
	}
	if l.filesWrittenSinceReflect {
		l.history = append(l.history, message.User("Reminder: you have pending file writes without a reflection pass."))
	}
}

// react streams LLM turns, executing every declared tool call per turn and
// pairing results by call_id, per spec §4.1 step 6.
func (l *Loop) react(ctx context.Context, toolCount *int) (string, error) {
	tools := l.tools.List("main")
	specs := llmports.ToolSpecsFrom(tools)

	onUpdate := func(u llmports.StreamUpdate) {
		if l.trace == nil {
			return
		}
		switch u.Node {
		case llmports.NodeAgent:
			l.trace.Emit(trace.EventLLMTurn, nil)
		case llmports.NodeTools:
			l.trace.Emit(trace.EventToolResult, nil)
		}
	}

	updated, err := l.llm.Stream(ctx, l.systemPrompt(), l.history, specs, l.tools, onUpdate)
	if err != nil {
		return "", fmt.Errorf("react stream: %w", err)
	}
	for _, m := range updated[len(l.history):] {
		if m.Kind == message.KindAssistant {
			*toolCount += len(m.ToolCalls)
		}
	}
	l.history = updated

	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].Kind == message.KindAssistant {
			return l.history[i].Content, nil
		}
	}
	return "", nil
}

// emptyContentFallback re-invokes the LLM once with a condensed tool-result
// summary and a directive to answer in natural language, per spec §4.1
// step 7.
func (l *Loop) emptyContentFallback(ctx context.Context) (string, error) {
	directive := message.User("Please answer the user's request in natural language, based on the tool results above.")
	reply, err := l.llm.Chat(ctx, l.systemPrompt(), append(l.history, directive), nil)
	if err != nil {
		return "", fmt.Errorf("empty-content fallback: %w", err)
	}
	l.history = append(l.history, directive, message.Assistant(reply.Content))
	return reply.Content, nil
}

func (l *Loop) systemPrompt() string {
	return "You are the lead agent driving this session to a final answer."
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
