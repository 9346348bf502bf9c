package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/bus"
	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/domain/task"
	"github.com/cortexlane/cortex/internal/llmports"
	"github.com/cortexlane/cortex/internal/toolregistry"
)

type idleImmediatelyClient struct{}

func (idleImmediatelyClient) Chat(ctx context.Context, system string, history []message.Message, tools []llmports.ToolSpec) (llmports.Reply, error) {
	return llmports.Reply{Content: "nothing to do right now", StopReason: llmports.StopEndTurn}, nil
}
func (idleImmediatelyClient) Stream(ctx context.Context, system string, history []message.Message, tools []llmports.ToolSpec, registry *toolregistry.Registry, onUpdate func(llmports.StreamUpdate)) ([]message.Message, error) {
	return history, nil
}
func (idleImmediatelyClient) CountTokens(history []message.Message) (int, bool) { return 0, false }

func TestTeamRosterGoesLiveOnSpawn(t *testing.T) {
	b := bus.New(t.TempDir())
	bd := board.New(t.TempDir(), nil)
	tools := toolregistry.New(0)

	roster := newTeamRoster(idleImmediatelyClient{}, tools, b, bd, nil)
	require.False(t, roster.IsLive())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg, err := roster.spawn(ctx, "alice", "engineer")
	require.NoError(t, err)
	require.Contains(t, msg, "alice")
	require.True(t, roster.IsLive())

	_, err = roster.spawn(ctx, "alice", "engineer")
	require.Error(t, err, "spawning the same name twice must fail")
}

func TestRegisterTeamToolsClaimAndMessageRoundTrip(t *testing.T) {
	boardDir := t.TempDir()
	bd := board.New(boardDir, nil)
	require.NoError(t, bd.Publish(&task.Task{ID: 1, Subject: "pending work", Status: task.StatusPending}))

	b := bus.New(t.TempDir())
	tools := toolregistry.New(0)
	roster := newTeamRoster(idleImmediatelyClient{}, tools, b, bd, nil)
	registerTeamTools(tools, roster, bd, b)
	tools.SetAllowList("main", []string{"*"})

	claim := tools.Invoke(context.Background(), message.ToolCall{
		ID: "1", Name: "claim_task", Arguments: map[string]any{"name": "alice", "task_id": float64(1)},
	})
	require.NotContains(t, claim.Content, "Error:")

	send := tools.Invoke(context.Background(), message.ToolCall{
		ID: "2", Name: "send_message", Arguments: map[string]any{"from": "lead", "to": "alice", "content": "hello"},
	})
	require.NotContains(t, send.Content, "Error:")

	read := tools.Invoke(context.Background(), message.ToolCall{
		ID: "3", Name: "read_inbox", Arguments: map[string]any{"name": "alice"},
	})
	require.Contains(t, read.Content, "hello")

	idle := tools.Invoke(context.Background(), message.ToolCall{ID: "4", Name: "idle", Arguments: nil})
	require.NotContains(t, idle.Content, "Error:")
}
