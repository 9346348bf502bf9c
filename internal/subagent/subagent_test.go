package subagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/agenttypes"
	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/llmports"
	"github.com/cortexlane/cortex/internal/toolregistry"
)

// scriptedClient replays a fixed sequence of Chat replies, one per call,
// for driving the Sub-Agent Driver deterministically in tests.
type scriptedClient struct {
	replies []llmports.Reply
	calls   int
}

func (c *scriptedClient) Chat(ctx context.Context, system string, history []message.Message, tools []llmports.ToolSpec) (llmports.Reply, error) {
	r := c.replies[c.calls]
	c.calls++
	return r, nil
}

func (c *scriptedClient) Stream(ctx context.Context, system string, history []message.Message, tools []llmports.ToolSpec, registry *toolregistry.Registry, onUpdate func(llmports.StreamUpdate)) ([]message.Message, error) {
	return history, nil
}

func (c *scriptedClient) CountTokens(history []message.Message) (int, bool) { return 0, false }

func TestInvokeReActReturnsFinalText(t *testing.T) {
	client := &scriptedClient{replies: []llmports.Reply{
		{Content: "the answer is 42", StopReason: llmports.StopEndTurn},
	}}
	reg := toolregistry.New(0)
	types := agenttypes.Default()
	seed := func() string { return "deadbeef" }

	d := New(client, reg, types, nil, seed)
	out, err := d.Invoke(context.Background(), "answer a question", "what is the answer?", "Explore", 0)
	require.NoError(t, err)
	require.Equal(t, "the answer is 42", out)
}

func TestInvokeUnknownAgentType(t *testing.T) {
	client := &scriptedClient{}
	reg := toolregistry.New(0)
	types := agenttypes.Default()
	d := New(client, reg, types, nil, func() string { return "x" })

	_, err := d.Invoke(context.Background(), "d", "p", "NoSuchType", 0)
	require.Error(t, err)
}

func TestInvokeDirectModeRetriesOnceOnInvalidJSON(t *testing.T) {
	client := &scriptedClient{replies: []llmports.Reply{
		{Content: "sure, the verdict is PASS", StopReason: llmports.StopEndTurn},
		{Content: `{"verdict":"PASS"}`, StopReason: llmports.StopEndTurn},
	}}
	reg := toolregistry.New(0)
	types := agenttypes.Default()
	d := New(client, reg, types, nil, func() string { return "x" })

	out, err := d.Invoke(context.Background(), "review", "check this diff", "Reflect", 0)
	require.NoError(t, err)
	require.Equal(t, `{"verdict":"PASS"}`, out)
	require.Equal(t, 2, client.calls, "a non-JSON reply must trigger exactly one retry")
}

func TestInvokeDirectModeGivesUpAfterOneRetry(t *testing.T) {
	client := &scriptedClient{replies: []llmports.Reply{
		{Content: "not json", StopReason: llmports.StopEndTurn},
		{Content: "still not json", StopReason: llmports.StopEndTurn},
	}}
	reg := toolregistry.New(0)
	types := agenttypes.Default()
	d := New(client, reg, types, nil, func() string { return "x" })

	out, err := d.Invoke(context.Background(), "review", "check this diff", "Reflect", 0)
	require.NoError(t, err)
	require.Equal(t, "still not json", out)
	require.Equal(t, 2, client.calls, "must not retry more than once")
}

func TestInvokeDirectModeSkipsToolLoop(t *testing.T) {
	client := &scriptedClient{replies: []llmports.Reply{
		{Content: `{"verdict":"PASS"}`, StopReason: llmports.StopEndTurn},
	}}
	reg := toolregistry.New(0)
	types := agenttypes.Default()
	d := New(client, reg, types, nil, func() string { return "x" })

	out, err := d.Invoke(context.Background(), "review", "check this diff", "Reflect", 0)
	require.NoError(t, err)
	require.Equal(t, `{"verdict":"PASS"}`, out)
	require.Equal(t, 1, client.calls, "direct mode must issue exactly one LLM call")
}
