package agent

import "context"

// Tool is one callable capability exposed to the model. Parameters returns
// a JSON Schema object describing the arguments; Call receives the decoded
// arguments and returns the text fed back to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, args map[string]any) (string, error)
}
