// Package teammate implements the long-lived named-agent loop of spec
// §4.3, grounded bit-exact on
// _examples/original_source/backend/app/team/teammate_manager.py:
// WORK_ITERATIONS cap (50), IDLE_TIMEOUT (60), POLL_INTERVAL (5), the
// identity-preamble-only-when-history-is-minimal rule, and the
// drain-inbox-before-everything ordering in both the working and idle
// phases.
package teammate

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/bus"
	"github.com/cortexlane/cortex/internal/domain/inbox"
	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/domain/task"
	"github.com/cortexlane/cortex/internal/domain/team"
	"github.com/cortexlane/cortex/internal/domain/trace"
	"github.com/cortexlane/cortex/internal/llmports"
	"github.com/cortexlane/cortex/internal/toolregistry"
)

const (
	workIterationCap = 50
	idleTimeout      = 60 * time.Second
	pollInterval     = 5 * time.Second
	identityCapLen   = 3 // "if len(messages) <= 3" from the original source
)

// Tracer is the minimal emit surface the loop needs.
type Tracer interface {
	Emit(event string, fields map[string]any)
}

// Loop drives one named teammate through working/idle/shutdown.
type Loop struct {
	Name string
	Role string

	llm      llmports.Client
	tools    *toolregistry.Registry
	bus      *bus.Bus
	b        *board.Board
	trace    Tracer
	history  []message.Message
	status   team.Status
}

// New constructs a Loop for a named teammate.
func New(name, role string, llm llmports.Client, tools *toolregistry.Registry, bus *bus.Bus, b *board.Board, tr Tracer) *Loop {
	return &Loop{Name: name, Role: role, llm: llm, tools: tools, bus: bus, b: b, trace: tr, status: team.StatusWorking}
}

func (l *Loop) emit(event string, fields map[string]any) {
	if l.trace != nil {
		if fields == nil {
			fields = map[string]any{}
		}
		fields["teammate"] = l.Name
		l.trace.Emit(event, fields)
	}
}

func (l *Loop) setStatus(s team.Status) {
	l.status = s
	l.emit(trace.EventTeammateState, map[string]any{"status": string(s)})
}

// Status returns the teammate's current lifecycle state.
func (l *Loop) Status() team.Status { return l.status }

// Run drives the loop until it reaches shutdown, per spec §4.3 "States and
// transitions".
func (l *Loop) Run(ctx context.Context) error {
	l.emit(trace.EventTeammateSpawn, nil)
	for {
		switch l.status {
		case team.StatusWorking:
			l.work(ctx)
		case team.StatusIdle:
			resumed := l.idle(ctx)
			if !resumed {
				l.setStatus(team.StatusShutdown)
			}
		case team.StatusShutdown:
			return nil
		}
	}
}

// work drains the inbox (a shutdown_request terminates immediately), then
// runs a bounded ReAct batch capped at workIterationCap turns, stopping
// early on no-tool-calls or an `idle` tool invocation.
func (l *Loop) work(ctx context.Context) {
	if l.drainInboxForShutdown() {
		l.setStatus(team.StatusShutdown)
		return
	}

	for i := 0; i < workIterationCap; i++ {
		if l.drainInboxForShutdown() {
			l.setStatus(team.StatusShutdown)
			return
		}

		reply, err := l.llm.Chat(ctx, l.systemPrompt(), l.history, llmports.ToolSpecsFrom(l.tools.List(l.Role)))
		if err != nil {
			// On exception, transition to idle per spec §4.3.
			l.setStatus(team.StatusIdle)
			return
		}
		l.history = append(l.history, message.Assistant(reply.Content, reply.ToolCalls...))

		if len(reply.ToolCalls) == 0 {
			l.setStatus(team.StatusIdle)
			return
		}

		results := make([]message.ToolResult, 0, len(reply.ToolCalls))
		calledIdle := false
		for _, call := range reply.ToolCalls {
			if call.Name == "idle" {
				calledIdle = true
			}
			results = append(results, l.tools.Invoke(ctx, call))
		}
		l.history = append(l.history, message.ToolResults(results...))

		if calledIdle {
			l.setStatus(team.StatusIdle)
			return
		}
	}
	// Iteration cap exhausted without an explicit idle call.
	l.setStatus(team.StatusIdle)
}

// drainInboxForShutdown reads the teammate's inbox and returns true if a
// shutdown_request was seen among the messages.
func (l *Loop) drainInboxForShutdown() bool {
	msgs, err := l.bus.ReadInbox(l.Name)
	if err != nil || len(msgs) == 0 {
		return false
	}
	shutdown := false
	for _, m := range msgs {
		if m.Type == inbox.TypeShutdownRequest {
			shutdown = true
			continue
		}
		l.history = append(l.history, message.User(fmt.Sprintf("[%s] %s", m.From, m.Content)))
	}
	return shutdown
}

// idle loops up to idleTimeout/pollInterval ticks. On each tick: drain the
// inbox first (any non-shutdown message resumes working); otherwise scan
// the board for an unclaimed task and claim it. Returns true if work was
// resumed, false if the tick budget expired.
func (l *Loop) idle(ctx context.Context) bool {
	ticks := int(idleTimeout / pollInterval)
	for t := 0; t < ticks; t++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}

		msgs, err := l.bus.ReadInbox(l.Name)
		if err == nil && len(msgs) > 0 {
			shutdown := false
			for _, m := range msgs {
				if m.Type == inbox.TypeShutdownRequest {
					shutdown = true
					continue
				}
				l.history = append(l.history, message.User(fmt.Sprintf("[%s] %s", m.From, m.Content)))
			}
			if shutdown {
				l.setStatus(team.StatusShutdown)
				return false
			}
			l.setStatus(team.StatusWorking)
			return true
		}

		if claimed := l.tryClaimTask(); claimed != nil {
			l.injectAutoClaim(claimed)
			l.setStatus(team.StatusWorking)
			return true
		}
	}
	return false
}

// tryClaimTask scans the board and claims the first unclaimed task found.
func (l *Loop) tryClaimTask() *task.Task {
	unclaimed, err := l.b.ScanUnclaimed()
	if err != nil || len(unclaimed) == 0 {
		return nil
	}
	candidate := unclaimed[0]
	if err := l.b.Claim(candidate.ID, l.Name); err != nil {
		return nil // lost the race to another teammate; stay idle
	}
	return candidate
}

// injectAutoClaim prepends the identity preamble only if history is
// minimal (spec §4.3 "re-establishing identity preamble if history is
// minimal"), then appends the synthetic auto-claimed message.
func (l *Loop) injectAutoClaim(t *task.Task) {
	if len(l.history) <= identityCapLen {
		l.history = append(l.history, message.User(l.identityPreamble()))
	}
	l.history = append(l.history, message.User(fmt.Sprintf(
		"<auto-claimed>Task #%d: %s</auto-claimed>\nContinue working on this task.", t.ID, t.Subject,
	)))
}

func (l *Loop) identityPreamble() string {
	return fmt.Sprintf("<identity>You are %s, role: %s, part of this team. Continue autonomously.</identity>", l.Name, l.Role)
}

func (l *Loop) systemPrompt() string {
	return fmt.Sprintf("You are %s (%s). Work on assigned tasks; call `idle` when you have no more work.", l.Name, l.Role)
}
