package mainloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/llmports"
	"github.com/cortexlane/cortex/internal/session"
	"github.com/cortexlane/cortex/internal/toolregistry"
)

// streamReplyClient is a fake llmports.Client whose Stream call appends a
// single fixed assistant message and returns, driving mainloop.Loop.Run
// deterministically without a real LLM.
type streamReplyClient struct {
	content string
}

func (c *streamReplyClient) Chat(ctx context.Context, system string, history []message.Message, tools []llmports.ToolSpec) (llmports.Reply, error) {
	return llmports.Reply{Content: c.content, StopReason: llmports.StopEndTurn}, nil
}

func (c *streamReplyClient) Stream(ctx context.Context, system string, history []message.Message, tools []llmports.ToolSpec, registry *toolregistry.Registry, onUpdate func(llmports.StreamUpdate)) ([]message.Message, error) {
	updated := append(history, message.Assistant(c.content))
	onUpdate(llmports.StreamUpdate{Node: llmports.NodeAgent, History: updated})
	return updated, nil
}

func (c *streamReplyClient) CountTokens(history []message.Message) (int, bool) { return 0, false }

func TestRunReturnsFinalAnswerAndPersists(t *testing.T) {
	sess := session.Open(t.TempDir(), "20260101_000000")
	tools := toolregistry.New(0)
	client := &streamReplyClient{content: "the final answer"}

	l := New(client, tools, sess, nil, nil, nil, nil, nil, nil)
	answer, err := l.Run(context.Background(), "what is the answer?")
	require.NoError(t, err)
	require.Equal(t, "the final answer", answer)

	loaded, err := sess.Load("main")
	require.NoError(t, err)
	require.NotEmpty(t, loaded)
}

func TestEmptyContentFallbackFiresWhenAssistantSaysNothing(t *testing.T) {
	sess := session.Open(t.TempDir(), "20260101_000000")
	tools := toolregistry.New(0)
	client := &streamReplyClient{content: ""}

	l := New(client, tools, sess, nil, nil, nil, nil, nil, nil)

	answer, err := l.Run(context.Background(), "do something silent")
	require.NoError(t, err)
	require.Empty(t, answer, "the fallback path reuses Chat, whose fake reply is also empty here")
	require.Equal(t, "Please answer the user's request in natural language, based on the tool results above.",
		l.history[len(l.history)-2].Content, "the fallback directive must have been sent")
}

func TestNagInjectedAfterThreeRoundsWithoutTodoWrite(t *testing.T) {
	sess := session.Open(t.TempDir(), "20260101_000000")
	tools := toolregistry.New(0)
	client := &streamReplyClient{content: "ok"}
	l := New(client, tools, sess, nil, nil, nil, nil, nil, nil)

	for i := 0; i < nagRoundThreshold; i++ {
		_, err := l.Run(context.Background(), "keep going")
		require.NoError(t, err)
	}

	found := false
	for _, m := range l.history {
		if m.Kind == message.KindUser && m.Content == "Reminder: update your todo list if priorities have shifted." {
			found = true
		}
	}
	require.True(t, found, "expected a todo-list nag after reaching the round threshold")
}
