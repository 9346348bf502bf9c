package anthropic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/llmports"
)

func TestToSDKMessagesPreservesCount(t *testing.T) {
	history := []message.Message{
		message.User("hello"),
		message.Assistant("hi", message.ToolCall{ID: "1", Name: "read_file", Arguments: map[string]any{"path": "a.go"}}),
		message.ToolResults(message.ToolResult{CallID: "1", Content: "package main"}),
	}
	out := toSDKMessages(history)
	require.Len(t, out, len(history), "one SDK message per transcript entry")
}

func TestToSDKToolsReturnsOnePerSpec(t *testing.T) {
	specs := []llmports.ToolSpec{
		{Name: "read_file", Description: "reads a file"},
		{Name: "write_file", Description: "writes a file"},
	}
	out := toSDKTools(specs)
	require.Len(t, out, 2)
}

func TestToSDKToolsHandlesNilSchema(t *testing.T) {
	specs := []llmports.ToolSpec{{Name: "task_list", Description: "lists tasks", Schema: nil}}
	out := toSDKTools(specs)
	require.Len(t, out, 1, "a nil schema must not panic the properties extraction")
}
