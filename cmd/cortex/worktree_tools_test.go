package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/agenttypes"
	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/subagent"
	"github.com/cortexlane/cortex/internal/taskstore"
	"github.com/cortexlane/cortex/internal/toolregistry"
	"github.com/cortexlane/cortex/internal/worktree"
)

func TestRegisterWorktreeToolsListWithEmptyIndex(t *testing.T) {
	store := taskstore.New(t.TempDir(), nil, nil)
	mgr, err := worktree.New(t.TempDir(), store, nil)
	require.NoError(t, err)

	reg := toolregistry.New(0)
	registerWorktreeTools(reg, mgr)
	reg.SetAllowList("main", []string{"*"})

	out := reg.Invoke(context.Background(), message.ToolCall{ID: "1", Name: "worktree_list", Arguments: nil})
	require.NotContains(t, out.Content, "Error:")
	require.Contains(t, out.Content, "No worktrees")
}

func TestRegisterWorktreeToolsRejectsUnknownLane(t *testing.T) {
	store := taskstore.New(t.TempDir(), nil, nil)
	mgr, err := worktree.New(t.TempDir(), store, nil)
	require.NoError(t, err)

	reg := toolregistry.New(0)
	registerWorktreeTools(reg, mgr)
	reg.SetAllowList("main", []string{"*"})

	out := reg.Invoke(context.Background(), message.ToolCall{
		ID: "1", Name: "worktree_status", Arguments: map[string]any{"name": "nope"},
	})
	require.Contains(t, out.Content, "Error:")
}

func TestRegisterCompactToolRequestsManualCompact(t *testing.T) {
	reg := toolregistry.New(0)
	ref := &loopRef{}
	registerCompactTool(reg, ref)
	reg.SetAllowList("main", []string{"*"})

	out := reg.Invoke(context.Background(), message.ToolCall{ID: "1", Name: "compact", Arguments: nil})
	require.NotContains(t, out.Content, "Error:")
}

func TestRegisterTaskToolDispatchesToDriver(t *testing.T) {
	reg := toolregistry.New(0)
	types := agenttypes.Default()
	driver := subagent.New(idleImmediatelyClient{}, reg, types, nil, func() string { return "x" })
	registerTaskTool(reg, driver)
	reg.SetAllowList("main", []string{"*"})

	out := reg.Invoke(context.Background(), message.ToolCall{
		ID: "1", Name: "task",
		Arguments: map[string]any{"description": "investigate", "prompt": "look around", "agent_type": "Reflect"},
	})
	require.NotContains(t, out.Content, "Error:")
}
