// Package llmports declares the LLM capability boundary every driver
// (Sub-Agent, Teammate, Main Loop) programs against, per spec §6 "LLM
// capability (required)". Concrete adapters live in internal/llmclient/*.
package llmports

import (
	"context"

	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/toolregistry"
)

// ToolSpec is the wire-level tool declaration passed to the LLM alongside
// the system prompt and history.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// StopReason classifies why a Chat call returned.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// Reply is one LLM turn's output: text content plus any declared tool uses.
type Reply struct {
	Content    string
	ToolCalls  []message.ToolCall
	StopReason StopReason
}

// StreamNode discriminates an incremental Stream update, per spec §6(b)
// "(node, state) updates where node ∈ {agent, tools}".
type StreamNode string

const (
	NodeAgent StreamNode = "agent"
	NodeTools StreamNode = "tools"
)

// StreamUpdate is one incremental update from Stream.
type StreamUpdate struct {
	Node    StreamNode
	History []message.Message
}

// Client is the LLM capability boundary. Implementations wrap a concrete
// provider SDK; internal/llmclient/anthropic is the one in this module.
type Client interface {
	// Chat runs one blocking turn, returning the assistant's reply.
	Chat(ctx context.Context, system string, history []message.Message, tools []ToolSpec) (Reply, error)

	// Stream runs the ReAct/OODA tool-use loop incrementally, invoking
	// onUpdate for every (node, state) transition per spec §6(b). registry
	// executes any tool calls declared by the agent node; the returned
	// history includes their tool-result messages.
	Stream(ctx context.Context, system string, history []message.Message, tools []ToolSpec, registry *toolregistry.Registry, onUpdate func(StreamUpdate)) ([]message.Message, error)

	// CountTokens implements compaction.TokenCounter when the provider
	// exposes a precise counter; ok is false when unsupported, per spec
	// §4.9.2's "LLM-provided counter if available" fallback clause.
	CountTokens(history []message.Message) (n int, ok bool)
}

// ToolSpecsFrom adapts a toolregistry.Tool slice into wire-level ToolSpecs.
func ToolSpecsFrom(tools []toolregistry.Tool) []ToolSpec {
	out := make([]ToolSpec, len(tools))
	for i, t := range tools {
		out[i] = ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
	}
	return out
}
