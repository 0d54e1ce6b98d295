package history

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/quillworksco/quill/pkg/run"
)

// RawRecord is one run record as the session store returned it. Field names
// and nesting differ across server versions, so the record stays untyped
// until Reconstruct resolves it into Messages.
type RawRecord map[string]any

// Reconstruct converts a session's raw run records into a chronologically
// ordered conversation. Records the API returns are not guaranteed to be in
// order, and any given record may use one of several field layouts; records
// that resolve to nothing are dropped without error.
func Reconstruct(records []RawRecord) []run.Message {
	var messages []run.Message

	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}

		userText, userAt := resolveUser(rec)
		if strings.TrimSpace(userText) != "" {
			messages = append(messages, run.NewUserMessage(userText, userAt))
		}

		text, at, tools := resolveAssistant(rec, userText)
		if strings.TrimSpace(text) != "" {
			msg := run.NewAssistantMessage(text, at)
			msg.ToolCalls = tools
			messages = append(messages, msg)
		} else if len(tools) > 0 {
			// Tool-only turn: keep it visible with empty content.
			msg := run.NewAssistantMessage("", at)
			msg.ToolCalls = tools
			messages = append(messages, msg)
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt < messages[j].CreatedAt
	})

	return messages
}

// resolveUser finds the user side of a record: run_input, then a message
// field, then input.
func resolveUser(rec RawRecord) (string, float64) {
	at := timestamp(rec, "created_at")

	if input, ok := rec["run_input"]; ok && input != nil {
		return Text(input), at
	}

	if msg, ok := rec["message"]; ok {
		if m, ok := msg.(map[string]any); ok {
			text := Text(firstOf(m, "content", "text"))
			if nested := timestamp(m, "created_at"); nested != 0 {
				at = nested
			}
			return text, at
		}
		return Text(msg), at
	}

	if input, ok := rec["input"]; ok {
		return Text(input), at
	}

	return "", at
}

// resolveAssistant finds the assistant side: run_output, then a response
// mapping, then output, then a top-level content field when it differs from
// the user text (some layouts reuse one field for both roles). Tool calls
// resolve independently from the record's top level or from the response.
func resolveAssistant(rec RawRecord, userText string) (string, float64, []*run.ToolCall) {
	at := timestamp(rec, "created_at")
	var text string
	var tools []*run.ToolCall

	if output, ok := rec["run_output"]; ok && output != nil {
		text = Text(output)
	}

	if text == "" {
		if resp, ok := rec["response"]; ok {
			if m, ok := resp.(map[string]any); ok {
				text = Text(firstOf(m, "content", "text"))
				if nested := timestamp(m, "created_at"); nested != 0 {
					at = nested
				}
				tools = toolList(firstOf(m, "tool_calls", "tools"))
			} else {
				text = Text(resp)
			}
		}
	}

	if text == "" {
		if output, ok := rec["output"]; ok {
			text = Text(output)
		}
	}

	if text == "" {
		if content, ok := rec["content"]; ok {
			if resolved := Text(content); resolved != "" && resolved != userText {
				text = resolved
			}
		}
	}

	if len(tools) == 0 {
		switch {
		case rec["tool_calls"] != nil:
			tools = toolList(rec["tool_calls"])
		case rec["tools"] != nil:
			tools = toolList(rec["tools"])
		case rec["tool"] != nil:
			if single, ok := rec["tool"].(map[string]any); ok {
				tools = toolList([]any{single})
			}
		}
	}
	if len(tools) == 0 {
		if m, ok := rec["response"].(map[string]any); ok {
			tools = toolList(firstOf(m, "tool_calls", "tools"))
		}
	}

	return text, at, tools
}

// toolList decodes an untyped tool-call list, dropping entries that do not
// decode.
func toolList(v any) []*run.ToolCall {
	list, ok := v.([]any)
	if !ok {
		return nil
	}

	tools := make([]*run.ToolCall, 0, len(list))
	for _, item := range list {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var tool run.ToolCall
		if err := json.Unmarshal(raw, &tool); err != nil {
			continue
		}
		tool.Normalize()
		tools = append(tools, &tool)
	}
	if len(tools) == 0 {
		return nil
	}
	return tools
}

// firstOf returns the first present key's value, or nil.
func firstOf(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return nil
}

// timestamp reads a numeric field, tolerating the types a JSON decode can
// produce. Missing or non-numeric values are 0, which sorts earliest.
func timestamp(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
