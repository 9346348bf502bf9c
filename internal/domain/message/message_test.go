package message

import "testing"

func TestValidatePairing(t *testing.T) {
	history := []Message{
		User("do it"),
		Assistant("", ToolCall{ID: "1", Name: "read_file", Arguments: map[string]any{"path": "a"}}),
		ToolResults(ToolResult{CallID: "1", Content: "ok"}),
	}
	if !ValidatePairing(history) {
		t.Fatal("expected pairing to hold")
	}
}

func TestValidatePairingMissingResult(t *testing.T) {
	history := []Message{
		User("do it"),
		Assistant("", ToolCall{ID: "1", Name: "read_file"}),
		ToolResults(ToolResult{CallID: "2", Content: "ok"}),
	}
	if ValidatePairing(history) {
		t.Fatal("expected pairing to fail: call id 1 has no matching result")
	}
}

func TestCallIDToName(t *testing.T) {
	history := []Message{
		Assistant("", ToolCall{ID: "1", Name: "grep"}),
		ToolResults(ToolResult{CallID: "1", Content: "x"}),
	}
	names := CallIDToName(history)
	if names["1"] != "grep" {
		t.Fatalf("expected grep, got %q", names["1"])
	}
}
