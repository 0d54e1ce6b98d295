// Package history reconstructs displayable conversations from the raw run
// records a session store returns. Record shapes vary across server
// versions, so every field access here is optional: resolution walks an
// ordered precedence list and silently omits what it cannot resolve.
package history

import (
	"encoding/json"
	"fmt"
	"strings"
)

// contentKeys is the precedence order for resolving text out of a mapping.
var contentKeys = []string{"content", "text", "message", "output"}

// Text normalizes a content payload into display text. Payloads arrive as
// plain strings, lists of typed parts, or nested mappings depending on
// which server produced the record.
func Text(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		return joinParts(v)
	case map[string]any:
		if len(v) == 0 {
			return ""
		}
		for _, key := range contentKeys {
			nested, ok := v[key]
			if !ok {
				continue
			}
			if text := Text(nested); text != "" {
				return text
			}
		}
		return prettyJSON(v)
	default:
		return fmt.Sprint(v)
	}
}

// joinParts extracts the textual parts of a typed-parts list. Parts tagged
// type "text" win; when none are tagged, every part is stringified.
func joinParts(parts []any) string {
	var texts []string
	for _, part := range parts {
		m, ok := part.(map[string]any)
		if !ok || m["type"] != "text" {
			continue
		}
		if text, ok := m["text"].(string); ok {
			texts = append(texts, text)
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, " ")
	}

	all := make([]string, 0, len(parts))
	for _, part := range parts {
		all = append(all, fmt.Sprint(part))
	}
	return strings.Join(all, " ")
}

func prettyJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
