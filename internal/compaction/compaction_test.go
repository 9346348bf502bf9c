package compaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/message"
)

func longResult(callID, tool, content string) (message.Message, message.Message) {
	return message.Assistant("", message.ToolCall{ID: callID, Name: tool}),
		message.ToolResults(message.ToolResult{CallID: callID, Content: content})
}

func TestMicroCompactPreservesPairingAndRecent(t *testing.T) {
	big := make([]byte, 200)
	for i := range big {
		big[i] = 'x'
	}
	var history []message.Message
	for i := 0; i < 5; i++ {
		a, r := longResult(string(rune('a'+i)), "grep", string(big))
		history = append(history, a, r)
	}

	compacted := MicroCompact(history)

	require.True(t, message.ValidatePairing(compacted), "pairing must survive micro-compact")

	// The earliest tool-result should be replaced with a placeholder.
	require.Contains(t, compacted[1].Results[0].Content, "[Previous: used grep]")

	// The last KeepRecent tool-results must be untouched.
	last := compacted[len(compacted)-1]
	require.Equal(t, string(big), last.Results[0].Content)
}

func TestMicroCompactNoopUnderKeepRecent(t *testing.T) {
	a, r := longResult("1", "grep", "short")
	history := []message.Message{a, r}
	compacted := MicroCompact(history)
	require.Equal(t, history, compacted)
}

type fakeSummarizer struct{ summary string }

func (f fakeSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	return f.summary, nil
}

func TestAutoCompactReducesToTwoMessages(t *testing.T) {
	history := []message.Message{
		message.User("build a thing"),
		message.Assistant("working on it"),
		message.User("more detail"),
	}
	path := t.TempDir() + "/transcript.jsonl"

	out, err := AutoCompact(context.Background(), history, path, fakeSummarizer{summary: "did stuff"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, message.KindUser, out[0].Kind)
	require.Contains(t, out[0].Content, path)
	require.Contains(t, out[0].Content, "did stuff")
	require.Equal(t, message.KindAssistant, out[1].Kind)
	require.Equal(t, ackText, out[1].Content)
}

func TestEstimateTokensFallback(t *testing.T) {
	history := []message.Message{message.User("hello")}
	n := EstimateTokens(history, nil)
	require.Greater(t, n, 0)
}
