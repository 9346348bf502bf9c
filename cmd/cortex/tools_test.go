package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/background"
	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/taskstore"
	"github.com/cortexlane/cortex/internal/toolregistry"
	"github.com/cortexlane/cortex/internal/trackers"
)

func TestRegisterCoreToolsShutdownAndPlanRoundTrip(t *testing.T) {
	store := taskstore.New(t.TempDir(), nil, nil)
	b := board.New(t.TempDir(), store)
	store.SetMirror(b)
	bg := background.New(t.TempDir(), nil)
	tk := trackers.New()
	reg := toolregistry.New(0)

	registerCoreTools(reg, store, b, bg, tk)
	reg.SetAllowList("main", []string{"*"})

	req := reg.Invoke(context.Background(), message.ToolCall{
		ID: "1", Name: "request_shutdown", Arguments: map[string]any{"target": "alice"},
	})
	require.NotContains(t, req.Content, "Error:")

	plan := reg.Invoke(context.Background(), message.ToolCall{
		ID: "2", Name: "submit_plan", Arguments: map[string]any{"from": "alice", "plan": "do the thing"},
	})
	require.NotContains(t, plan.Content, "Error:")
}
