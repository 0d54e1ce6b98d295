package history

import (
	"strings"
)

// DefaultSummaryLength is the character budget for session list titles.
const DefaultSummaryLength = 30

// stopWords are filler words skipped when compressing a message into a
// title.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"to": {}, "with": {},
}

// Summarize compresses free text into a short title of at most maxLength
// characters. Short text passes through whole; otherwise the first sentence
// is used if it fits, then the leading content words, with an ellipsis when
// truncated.
func Summarize(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultSummaryLength
	}

	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "Session"
	}
	if len(text) <= maxLength {
		return text
	}

	text = strings.TrimRight(text, ".,!?;:")

	if first, _, found := strings.Cut(text, "."); found {
		first = strings.TrimSpace(first)
		if first != "" && len(first) <= maxLength {
			return first
		}
	}

	words := strings.Fields(text)
	important := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, skip := stopWords[strings.ToLower(w)]; skip {
			continue
		}
		important = append(important, w)
	}
	if len(important) == 0 {
		important = words
	}

	var summary strings.Builder
	for _, w := range important {
		// Reserve three characters for the ellipsis.
		if summary.Len()+len(w)+1 > maxLength-3 && summary.Len() > 0 {
			break
		}
		if summary.Len()+len(w) > maxLength-3 {
			break
		}
		if summary.Len() > 0 {
			summary.WriteByte(' ')
		}
		summary.WriteString(w)
	}
	if summary.Len() > 0 {
		return summary.String() + "..."
	}

	head := text
	if len(head) > maxLength {
		head = head[:maxLength]
		if i := strings.LastIndexByte(head, ' '); i > 0 {
			head = head[:i]
		}
	}
	return head + "..."
}

// Title derives a display title for a session from its raw run records: the
// first record with resolvable user text wins.
func Title(records []RawRecord) string {
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		text, _ := resolveUser(rec)
		if strings.TrimSpace(text) != "" {
			return Summarize(text, DefaultSummaryLength)
		}
	}
	return "Empty session"
}
