// Package anthropic adapts the llmports.Client boundary to
// anthropics/anthropic-sdk-go, grounded on the teacher's provider-client
// wiring (internal/agent/llm) which already abstracts "LLM capability"
// behind a small interface the coordinator programs against.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cortexlane/cortex/internal/domain/message"
	"github.com/cortexlane/cortex/internal/llmports"
	"github.com/cortexlane/cortex/internal/toolregistry"
)

// Client wraps an *sdk.Client behind llmports.Client.
type Client struct {
	sdk   sdk.Client
	model string
}

// New builds a Client from ANTHROPIC_AUTH_TOKEN/ANTHROPIC_BASE_URL-style
// configuration, per spec §6 "Environment variables".
func New(authToken, baseURL, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(authToken)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model}
}

func toSDKMessages(history []message.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(history))
	for _, m := range history {
		switch m.Kind {
		case message.KindUser, message.KindSystem:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case message.KindAssistant:
			blocks := []sdk.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			out = append(out, sdk.NewAssistantMessage(blocks...))
		case message.KindTool:
			blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Results))
			for _, r := range m.Results {
				blocks = append(blocks, sdk.NewToolResultBlock(r.CallID, r.Content, false))
			}
			out = append(out, sdk.NewUserMessage(blocks...))
		}
	}
	return out
}

func toSDKTools(tools []llmports.ToolSpec) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, len(tools))
	for i, t := range tools {
		var properties any
		if t.Schema != nil {
			properties = t.Schema["properties"]
		}
		out[i] = sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{Properties: properties}, t.Name)
	}
	return out
}

// Chat runs one blocking turn per llmports.Client.
func (c *Client) Chat(ctx context.Context, system string, history []message.Message, tools []llmports.ToolSpec) (llmports.Reply, error) {
	resp, err := c.sdk.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 4096,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  toSDKMessages(history),
		Tools:     toSDKTools(tools),
	})
	if err != nil {
		return llmports.Reply{}, fmt.Errorf("anthropic chat: %w", err)
	}
	return fromSDKResponse(resp), nil
}

func fromSDKResponse(resp *sdk.Message) llmports.Reply {
	var reply llmports.Reply
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			reply.Content += b.Text
		case sdk.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal(b.Input, &args); err != nil {
				repaired := toolregistry.RepairArguments(string(b.Input))
				args = map[string]any{}
				_ = json.Unmarshal([]byte(repaired), &args)
			}
			reply.ToolCalls = append(reply.ToolCalls, message.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}
	switch resp.StopReason {
	case sdk.StopReasonToolUse:
		reply.StopReason = llmports.StopToolUse
	case sdk.StopReasonMaxTokens:
		reply.StopReason = llmports.StopMaxTokens
	default:
		reply.StopReason = llmports.StopEndTurn
	}
	return reply
}

// Stream runs the agent/tools update loop per llmports.Client, driving
// Chat in a loop and dispatching any declared tool calls through registry
// before continuing, matching spec §5's "all declared tool calls must
// complete before the next LLM invocation" ordering guarantee.
func (c *Client) Stream(ctx context.Context, system string, history []message.Message, tools []llmports.ToolSpec, registry *toolregistry.Registry, onUpdate func(llmports.StreamUpdate)) ([]message.Message, error) {
	for {
		reply, err := c.Chat(ctx, system, history, tools)
		if err != nil {
			return history, err
		}
		asst := message.Assistant(reply.Content, reply.ToolCalls...)
		history = append(history, asst)
		onUpdate(llmports.StreamUpdate{Node: llmports.NodeAgent, History: history})

		if reply.StopReason != llmports.StopToolUse || len(reply.ToolCalls) == 0 {
			return history, nil
		}

		results := make([]message.ToolResult, len(reply.ToolCalls))
		for i, call := range reply.ToolCalls {
			results[i] = registry.Invoke(ctx, call)
		}
		toolMsg := message.ToolResults(results...)
		history = append(history, toolMsg)
		onUpdate(llmports.StreamUpdate{Node: llmports.NodeTools, History: history})
	}
}

// CountTokens is unsupported by this adapter; callers fall back to a
// precise tiktoken-go count or, failing that, a 4-chars-per-token
// estimate per spec §4.9.2.
func (c *Client) CountTokens(history []message.Message) (int, bool) {
	return 0, false
}

// Summarize implements compaction.Summarizer: a single blocking Chat turn
// with no tools, asking for the auto-compact summary prompt verbatim.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	reply, err := c.Chat(ctx, "", []message.Message{message.User(prompt)}, nil)
	if err != nil {
		return "", fmt.Errorf("anthropic summarize: %w", err)
	}
	return reply.Content, nil
}
