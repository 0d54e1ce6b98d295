package eventstream

import (
	"time"

	"github.com/quillworksco/quill/pkg/run"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRunPersisted is emitted after an agent run is persisted.
	EventTypeRunPersisted = "quill.run.persisted"
)

// RunPersistedEvent is a transport-neutral event payload for a persisted run.
type RunPersistedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	RunMeta       RunMeta     `json:"run_meta"`
	Record        run.Record  `json:"record"`
}

// EventSource identifies which agent produced the run.
type EventSource struct {
	AgentID string `json:"agent_id"`
	Model   string `json:"model,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// RunMeta captures run lifecycle metadata for the event.
type RunMeta struct {
	SessionID   string    `json:"session_id"`
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
	ToolCalls   int       `json:"tool_calls"`
}
