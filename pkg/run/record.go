package run

// Session is a persisted, named sequence of runs sharing conversational
// context. Timestamps are unix seconds.
type Session struct {
	SessionID string  `json:"session_id"`
	AgentID   string  `json:"agent_id"`
	UserID    string  `json:"user_id,omitempty"`
	Title     string  `json:"title,omitempty"`
	CreatedAt float64 `json:"created_at"`
	UpdatedAt float64 `json:"updated_at"`
}

// Record is one completed request/response cycle within a session, as
// persisted by the server and returned from GET /sessions/:id/runs.
//
// Clients never rely on this exact shape: the history reconstructor treats
// run records as untyped maps and resolves fields by precedence, because
// other deployments of the same API are known to rename these fields.
type Record struct {
	RunID     string      `json:"run_id"`
	SessionID string      `json:"session_id"`
	Input     string      `json:"run_input"`
	Output    string      `json:"run_output"`
	Tools     []*ToolCall `json:"tools,omitempty"`
	CreatedAt float64     `json:"created_at"`
}
