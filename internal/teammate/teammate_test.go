package teammate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/bus"
	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/domain/task"
	"github.com/cortexlane/cortex/internal/domain/team"
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

func TestWorkTransitionsToIdleOnNoToolCalls(t *testing.T) {
	b := bus.New(t.TempDir())
	bd := board.New(t.TempDir(), nil)
	tools := toolregistry.New(0)

	l := New("alice", "engineer", idleImmediatelyClient{}, tools, b, bd, nil)
	l.work(context.Background())

	require.Equal(t, team.StatusIdle, l.Status())
}

func TestIdleResumesOnUnclaimedTask(t *testing.T) {
	b := bus.New(t.TempDir())
	boardDir := t.TempDir()
	bd := board.New(boardDir, nil)
	require.NoError(t, bd.Publish(&task.Task{ID: 1, Subject: "pending work", Status: task.StatusPending}))

	tools := toolregistry.New(0)
	l := New("alice", "engineer", idleImmediatelyClient{}, tools, b, bd, nil)
	l.setStatus(team.StatusIdle)

	ctx, cancel := context.WithTimeout(context.Background(), pollInterval*2+time.Second)
	defer cancel()

	resumed := l.idle(ctx)
	require.True(t, resumed, "an unclaimed task should resume working within one poll tick")
	require.Equal(t, team.StatusWorking, l.Status())
	require.NotEmpty(t, l.history)
}
