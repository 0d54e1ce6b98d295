package run

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is the normalized unit of conversation history used by both live
// streaming display and replayed sessions. Content is always plain text;
// structured payloads are serialized before they reach a Message.
//
// An assistant Message with empty Content is valid only when it carries at
// least one ToolCall, which keeps tool-only turns visible in a replay.
type Message struct {
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	CreatedAt float64     `json:"created_at"`
	ToolCalls []*ToolCall `json:"tool_calls,omitempty"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string, createdAt float64) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: createdAt}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string, createdAt float64) Message {
	return Message{Role: RoleAssistant, Content: content, CreatedAt: createdAt}
}
