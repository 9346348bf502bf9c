package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cortexlane/cortex/internal/background"
	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/mainloop"
	"github.com/cortexlane/cortex/internal/subagent"
	"github.com/cortexlane/cortex/internal/taskstore"
	"github.com/cortexlane/cortex/internal/toolregistry"
	"github.com/cortexlane/cortex/internal/trackers"
	"github.com/cortexlane/cortex/internal/worktree"
)

// registerCoreTools wires the file primitives and task/board/background
// tools every agent type shares, grounded on the teacher's tool package
// (each tool is a small struct implementing one handler closure).
func registerCoreTools(reg *toolregistry.Registry, store *taskstore.Store, b *board.Board, bg *background.Executor, tr *trackers.Trackers) {
	must := func(err error) {
		if err != nil {
			panic(err) // registration collisions are a programmer error, caught at startup
		}
	}

	must(reg.Register(toolregistry.Tool{
		Name:        "read_file",
		Description: "Read the contents of a file by path.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []string{"path"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "write_file",
		Description: "Write content to a file by path, overwriting it.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
			"required": []string{"path", "content"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "list_dir",
		Description: "List entries in a directory by path.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []string{"path"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			entries, err := os.ReadDir(path)
			if err != nil {
				return "", err
			}
			out := ""
			for _, e := range entries {
				out += e.Name() + "\n"
			}
			return out, nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "task_create",
		Description: "Create a new task with a subject and description.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"subject":     map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
			},
			"required": []string{"subject"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			subject, _ := args["subject"].(string)
			description, _ := args["description"].(string)
			t, err := store.Create(subject, description)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("created task #%d", t.ID), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "task_list",
		Description: "List all known tasks with their status.",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return store.ListAll()
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "run_background",
		Description: "Run a shell command in the background and return its task id immediately.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"command": map[string]any{"type": "string"}},
			"required":   []string{"command"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			command, _ := args["command"].(string)
			id := bg.Run(command)
			return fmt.Sprintf("started background job %s", id), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "request_shutdown",
		Description: "Ask a named teammate to wind down once its current work finishes.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"target": map[string]any{"type": "string"}},
			"required":   []string{"target"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			target, _ := args["target"].(string)
			id := tr.RequestShutdown(target)
			return fmt.Sprintf("shutdown request %s pending for %s", id, target), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "shutdown_status",
		Description: "Poll a previously requested shutdown by its request id.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
			"required":   []string{"id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["id"].(string)
			status, err := tr.ShutdownStatus(id)
			if err != nil {
				return "", err
			}
			return string(status), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "submit_plan",
		Description: "Submit a plan from a teammate for lead approval before acting on it.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from": map[string]any{"type": "string"},
				"plan": map[string]any{"type": "string"},
			},
			"required": []string{"from", "plan"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			from, _ := args["from"].(string)
			plan, _ := args["plan"].(string)
			id := tr.SubmitPlan(from, plan)
			return fmt.Sprintf("plan %s submitted for approval", id), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "approve_plan",
		Description: "Approve or reject a submitted plan by its request id.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":      map[string]any{"type": "string"},
				"approve": map[string]any{"type": "boolean"},
			},
			"required": []string{"id", "approve"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["id"].(string)
			approve, _ := args["approve"].(bool)
			if err := tr.RespondPlan(id, approve); err != nil {
				return "", err
			}
			return fmt.Sprintf("plan %s recorded", id), nil
		},
	}))
}

// loopRef is a late-bound handle to the Main Loop, letting the `compact`
// tool close over a Loop that isn't constructed yet at registration time
// (the tool registry must exist before mainloop.New can be called).
type loopRef struct {
	loop *mainloop.Loop
}

func (r *loopRef) requestManualCompact() {
	if r.loop != nil {
		r.loop.RequestManualCompact()
	}
}

// registerCompactTool registers the `compact` tool of spec §4.9.3, letting
// the LLM itself request a manual compaction pass via ref.
func registerCompactTool(reg *toolregistry.Registry, ref *loopRef) {
	if err := reg.Register(toolregistry.Tool{
		Name:        "compact",
		Description: "Request a manual compaction pass on the conversation history before the next turn.",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ref.requestManualCompact()
			return "manual compaction requested", nil
		},
	}); err != nil {
		panic(err)
	}
}

// registerWorktreeTools wires the agent-facing side of the Worktree
// Manager (spec §4.5): create/status/run/remove/keep/list, mirroring the
// read-only surface already exposed from `cortex serve`.
func registerWorktreeTools(reg *toolregistry.Registry, mgr *worktree.Manager) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(reg.Register(toolregistry.Tool{
		Name:        "worktree_create",
		Description: "Create a new git worktree lane, optionally bound to a task.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":     map[string]any{"type": "string"},
				"task_id":  map[string]any{"type": "integer"},
				"base_ref": map[string]any{"type": "string"},
			},
			"required": []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			baseRef, _ := args["base_ref"].(string)
			var taskID *int
			if v, ok := args["task_id"].(float64); ok {
				taskID = worktree.IntPtr(int(v))
			}
			entry, err := mgr.Create(name, taskID, baseRef)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("created worktree %s at %s (branch %s)", entry.Name, entry.Path, entry.Branch), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "worktree_status",
		Description: "Show git status for a worktree lane.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			return mgr.Status(name)
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "worktree_run",
		Description: "Run a shell command inside a worktree lane.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    map[string]any{"type": "string"},
				"command": map[string]any{"type": "string"},
			},
			"required": []string{"name", "command"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			command, _ := args["command"].(string)
			return mgr.Run(name, command)
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "worktree_remove",
		Description: "Remove a worktree lane, optionally completing its bound task.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":          map[string]any{"type": "string"},
				"force":         map[string]any{"type": "boolean"},
				"complete_task": map[string]any{"type": "boolean"},
			},
			"required": []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			force, _ := args["force"].(bool)
			completeTask, _ := args["complete_task"].(bool)
			if err := mgr.Remove(name, force, completeTask); err != nil {
				return "", err
			}
			return fmt.Sprintf("removed worktree %s", name), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "worktree_keep",
		Description: "Mark a worktree lane as kept, exempting it from cleanup.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			entry, err := mgr.Keep(name)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("kept worktree %s", entry.Name), nil
		},
	}))

	must(reg.Register(toolregistry.Tool{
		Name:        "worktree_list",
		Description: "List all worktree lanes and their status.",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return mgr.ListAll()
		},
	}))
}

// registerTaskTool registers the Task tool last, per spec §4.8, closing
// over a Sub-Agent Driver so the main loop can dispatch to an isolated
// sub-agent run per spec §4.2/§4.8.
func registerTaskTool(reg *toolregistry.Registry, driver *subagent.Driver) {
	err := reg.BuildTaskTool(
		"Launch a focused sub-agent to carry out a described task in an isolated history with a filtered tool set.",
		func(ctx context.Context, args map[string]any) (string, error) {
			description, _ := args["description"].(string)
			prompt, _ := args["prompt"].(string)
			agentType, _ := args["agent_type"].(string)
			if agentType == "" {
				agentType = "general-purpose"
			}
			return driver.Invoke(ctx, description, prompt, agentType, 0)
		},
	)
	if err != nil {
		panic(err)
	}
}
