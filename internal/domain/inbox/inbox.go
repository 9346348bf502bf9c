// Package inbox defines the message-bus wire format.
package inbox

// MsgType is the closed set of inbox message types the bus will accept.
type MsgType string

const (
	TypeMessage             MsgType = "message"
	TypeBroadcast           MsgType = "broadcast"
	TypeShutdownRequest     MsgType = "shutdown_request"
	TypeShutdownResponse    MsgType = "shutdown_response"
	TypePlanApprovalResp    MsgType = "plan_approval_response"
)

// Valid is the closed set spec §3 "Inbox message" requires senders validate
// against.
var Valid = map[MsgType]bool{
	TypeMessage:          true,
	TypeBroadcast:        true,
	TypeShutdownRequest:  true,
	TypeShutdownResponse: true,
	TypePlanApprovalResp: true,
}

// Message is one `<name>.jsonl` line in the bus directory.
type Message struct {
	Type      MsgType        `json:"type"`
	From      string         `json:"from"`
	Content   string         `json:"content"`
	Timestamp float64        `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}
