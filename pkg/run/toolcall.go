package run

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ToolCall records one external-tool invocation the agent made while
// answering. Field names match the wire shape of the agent-serving API.
type ToolCall struct {
	ID        string         `json:"tool_call_id,omitempty"`
	Name      string         `json:"tool_name,omitempty"`
	Args      map[string]any `json:"tool_args,omitempty"`
	Result    any            `json:"content,omitempty"`
	Failed    bool           `json:"tool_call_error,omitempty"`
	CreatedAt float64        `json:"created_at,omitempty"`
}

// Key returns the stable identity used for deduplication: the
// provider-supplied call id, or a synthesized name+timestamp fallback when
// the provider did not assign one.
//
// The fallback is a heuristic, not a true identity: two distinct calls to
// the same tool within the same timestamp resolution would collide and be
// merged. Providers that matter here (OpenAI tool calls) always assign ids.
func (t *ToolCall) Key() string {
	if t.ID != "" {
		return t.ID
	}

	name := t.Name
	if name == "" {
		name = "unknown"
	}

	return fmt.Sprintf("%s-%v", name, t.CreatedAt)
}

// Merge folds a later partial record for the same call into t.
// Newer values win only when explicitly present: empty args, a nil result,
// or an absent error flag leave the existing values untouched. A newer
// record that does carry the field overwrites it, including Failed, so
// "most recent explicit value wins, missing stays as-is".
func (t *ToolCall) Merge(newer *ToolCall) {
	if newer == nil {
		return
	}

	if len(newer.Args) > 0 {
		t.Args = newer.Args
	}
	if newer.Result != nil {
		t.Result = newer.Result
	}
	if newer.Failed {
		t.Failed = true
	}
	if newer.Name != "" {
		t.Name = newer.Name
	}
}

// Normalize rewrites binary-encoded argument and result values into valid
// text, replacing invalid bytes with the Unicode replacement character.
// The walk is recursive through nested maps and slices.
func (t *ToolCall) Normalize() {
	if t.Args != nil {
		normalized, _ := normalizeValue(t.Args).(map[string]any)
		if normalized != nil {
			t.Args = normalized
		}
	}
	if t.Result != nil {
		t.Result = normalizeValue(t.Result)
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return strings.ToValidUTF8(string(val), string(utf8.RuneError))
	case string:
		if utf8.ValidString(val) {
			return val
		}
		return strings.ToValidUTF8(val, string(utf8.RuneError))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			key := k
			if !utf8.ValidString(key) {
				key = strings.ToValidUTF8(key, string(utf8.RuneError))
			}
			out[key] = normalizeValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = normalizeValue(nested)
		}
		return out
	default:
		return v
	}
}
