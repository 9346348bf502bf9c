package toolregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/message"
)

func TestListExcludesTaskToolAndAppliesAllowList(t *testing.T) {
	reg := New(0)
	require.NoError(t, reg.Register(Tool{Name: "read_file", Handler: noop}))
	require.NoError(t, reg.Register(Tool{Name: "write_file", Handler: noop}))
	require.NoError(t, reg.BuildTaskTool("spawn a sub-agent", noop))

	reg.SetAllowList("Explore", []string{"read_file"})
	list := reg.List("Explore")
	require.Len(t, list, 1)
	require.Equal(t, "read_file", list[0].Name)

	reg.SetAllowList("general-purpose", []string{"*"})
	all := reg.List("general-purpose")
	names := make(map[string]bool)
	for _, tl := range all {
		names[tl.Name] = true
	}
	require.True(t, names["read_file"])
	require.True(t, names["write_file"])
	require.False(t, names["task"], "the Task tool must never appear in a child's tool list")
}

func TestInvokeUnknownToolReturnsErrorResult(t *testing.T) {
	reg := New(0)
	result := reg.Invoke(context.Background(), message.ToolCall{ID: "1", Name: "nope"})
	require.Contains(t, result.Content, "Error:")
}

func TestInvokeValidatesSchema(t *testing.T) {
	reg := New(0)
	require.NoError(t, reg.Register(Tool{
		Name: "greet",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "hello " + args["name"].(string), nil
		},
	}))

	bad := reg.Invoke(context.Background(), message.ToolCall{ID: "1", Name: "greet", Arguments: map[string]any{}})
	require.Contains(t, bad.Content, "Error:")

	good := reg.Invoke(context.Background(), message.ToolCall{ID: "2", Name: "greet", Arguments: map[string]any{"name": "alice"}})
	require.Equal(t, "hello alice", good.Content)
}

func noop(ctx context.Context, args map[string]any) (string, error) { return "", nil }
