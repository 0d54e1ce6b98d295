// Package run defines the normalized conversation types shared by the agent
// server, the streaming client, and the history reconstructor: stream events,
// tool calls, chat messages, and persisted run records.
package run

// Event names carried in the "event" field of a run stream frame.
// The set matches what the agent-serving API emits: lifecycle markers,
// content deltas, and tool activity markers. Consumers must not assume tool
// data only arrives on the tool events - any frame may carry a "tool" or
// "tools" field.
const (
	EventRunStarted        = "RunStarted"
	EventReasoningStarted  = "ReasoningStarted"
	EventRunContent        = "RunContent"
	EventRunCompleted      = "RunCompleted"
	EventRunError          = "RunError"
	EventToolCallStarted   = "ToolCallStarted"
	EventToolCallCompleted = "ToolCallCompleted"
)

// Event is a single decoded frame from a streaming run response.
// Content is `any` because the server may send plain text or a structured
// payload; consumers normalize it before display.
type Event struct {
	Event     string      `json:"event"`
	RunID     string      `json:"run_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Content   any         `json:"content,omitempty"`
	Tool      *ToolCall   `json:"tool,omitempty"`
	Tools     []*ToolCall `json:"tools,omitempty"`
	CreatedAt float64     `json:"created_at,omitempty"`
}
