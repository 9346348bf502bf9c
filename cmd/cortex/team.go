package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/bus"
	"github.com/cortexlane/cortex/internal/domain/inbox"
	"github.com/cortexlane/cortex/internal/llmports"
	"github.com/cortexlane/cortex/internal/teammate"
	"github.com/cortexlane/cortex/internal/toolregistry"
	"github.com/cortexlane/cortex/internal/tracer"
)

// teamRoster owns the set of live Teammate Loops for one session, and gates
// mainloop.Loop's inbox injection (spec §4.1 step 3) via IsLive: a roster
// with no teammates spawned yet is not "live", matching the teacher's
// avoid-eager-directory-creation posture.
type teamRoster struct {
	mu      sync.Mutex
	llm     llmports.Client
	tools   *toolregistry.Registry
	bus     *bus.Bus
	board   *board.Board
	trace   *tracer.Tracer
	members map[string]*teammate.Loop
}

func newTeamRoster(llm llmports.Client, tools *toolregistry.Registry, b *bus.Bus, brd *board.Board, tr *tracer.Tracer) *teamRoster {
	return &teamRoster{
		llm: llm, tools: tools, bus: b, board: brd, trace: tr,
		members: make(map[string]*teammate.Loop),
	}
}

// IsLive reports whether any teammate has been spawned, per spec §4.1 step
// 3's "only if the team subsystem is live" inbox-injection gate.
func (r *teamRoster) IsLive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) > 0
}

// spawn launches a new named teammate in the background and registers it
// in the roster, per spec §4.3.
func (r *teamRoster) spawn(ctx context.Context, name, role string) (string, error) {
	r.mu.Lock()
	if _, exists := r.members[name]; exists {
		r.mu.Unlock()
		return "", fmt.Errorf("teammate %q already spawned", name)
	}
	var tr teammate.Tracer
	if r.trace != nil {
		tr = r.trace
	}
	loop := teammate.New(name, role, r.llm, r.tools, r.bus, r.board, tr)
	r.members[name] = loop
	r.mu.Unlock()

	go func() {
		_ = loop.Run(ctx)
	}()
	return fmt.Sprintf("spawned teammate %s (%s)", name, role), nil
}

// registerTeamTools wires the main loop's team-management surface: spawning
// teammates, claiming board tasks, and sending/reading inbox messages, per
// spec §4.3/§4.4/§4.6.
func registerTeamTools(reg *toolregistry.Registry, roster *teamRoster, b *board.Board, bs *bus.Bus) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(reg.Register(toolregistry.Tool{
		Name:        "team_spawn",
		Description: "Spawn a new named teammate with a role; it begins working autonomously.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
				"role": map[string]any{"type": "string"},
			},
			"required": []string{"name", "role"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			role, _ := args["role"].(string)
			return roster.spawn(ctx, name, role)
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "claim_task",
		Description: "Claim an unclaimed board task for a named teammate.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    map[string]any{"type": "string"},
				"task_id": map[string]any{"type": "integer"},
			},
			"required": []string{"name", "task_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			id, _ := args["task_id"].(float64)
			if err := b.Claim(int(id), name); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s claimed task #%d", name, int(id)), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "send_message",
		Description: "Send a message from one teammate to another's inbox.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from":    map[string]any{"type": "string"},
				"to":      map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
			"required": []string{"from", "to", "content"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			from, _ := args["from"].(string)
			to, _ := args["to"].(string)
			content, _ := args["content"].(string)
			if err := bs.Send(from, to, content, inbox.TypeMessage, nil); err != nil {
				return "", err
			}
			return fmt.Sprintf("sent to %s", to), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "read_inbox",
		Description: "Drain a named teammate's inbox and return its messages.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			msgs, err := bs.ReadInbox(name)
			if err != nil {
				return "", err
			}
			if len(msgs) == 0 {
				return "inbox empty", nil
			}
			out := ""
			for _, m := range msgs {
				out += fmt.Sprintf("[%s] %s: %s\n", m.Type, m.From, m.Content)
			}
			return out, nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "idle",
		Description: "Signal that the calling teammate has no further work for now.",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "acknowledged, going idle", nil
		},
	}))
}
