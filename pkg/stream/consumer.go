package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/quillworksco/quill/pkg/run"
)

// RunError is a provider-reported run failure carried on an explicit error
// event. Text accumulated before the failure stays available on the Result
// so callers can decide whether to show it.
type RunError struct {
	Message string
}

func (e *RunError) Error() string {
	if e.Message == "" {
		return "run failed"
	}
	return e.Message
}

// Result is the outcome of consuming one streamed run to completion.
type Result struct {
	// Content is the final accumulated answer text.
	Content string

	// SessionID is the session the server attached this run to, captured
	// from the start-of-run event. Empty if the stream never reported one.
	SessionID string

	// RunID identifies the run, when the server reported one.
	RunID string

	// Tools holds the deduplicated tool invocations, ordered by creation
	// time.
	Tools []*run.ToolCall
}

// Consumer accumulates a streamed run: answer text built up from content
// events and tool invocations deduplicated across frames. A Consumer is
// owned by exactly one stream-consumption call and is not reusable.
type Consumer struct {
	// OnContent, when set, is invoked with the full accumulated text after
	// every content update, for live display.
	OnContent func(text string)

	full        strings.Builder
	lastContent string
	tools       map[string]*run.ToolCall
	result      Result
}

// NewConsumer returns a Consumer ready to consume one stream.
func NewConsumer() *Consumer {
	return &Consumer{
		tools: make(map[string]*run.ToolCall),
	}
}

// Consume drains the extractor, feeding every frame through the consumer,
// and returns the final result. A provider error event stops consumption
// and is returned as a *RunError; the partial result is still populated.
func (c *Consumer) Consume(ex *Extractor) (*Result, error) {
	for {
		frame, err := ex.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return c.finalize(), err
		}

		if err := c.Feed(frame); err != nil {
			return c.finalize(), err
		}
	}

	return c.finalize(), nil
}

// Feed processes a single decoded frame. It returns a *RunError when the
// frame is an explicit error event.
func (c *Consumer) Feed(frame json.RawMessage) error {
	var ev run.Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		// A frame that parsed as JSON but not as an event is skipped; the
		// extractor already guaranteed well-formed JSON.
		return nil
	}

	if ev.SessionID != "" {
		c.result.SessionID = ev.SessionID
	}
	if ev.RunID != "" {
		c.result.RunID = ev.RunID
	}

	// Tool activity can ride on any event kind.
	if ev.Tool != nil {
		c.upsertTool(ev.Tool)
	}
	for _, t := range ev.Tools {
		c.upsertTool(t)
	}

	switch ev.Event {
	case run.EventRunContent:
		c.appendContent(ev.Content)
	case run.EventRunCompleted:
		c.completeContent(ev.Content)
	case run.EventRunError:
		msg := contentString(ev.Content)
		if msg == "" {
			msg = "run failed"
		}
		return &RunError{Message: msg}
	}

	return nil
}

// appendContent applies the cumulative-vs-delta inference rule: if the new
// text starts with the previously received raw text, the server is sending
// the full accumulated answer each time and only the suffix is appended;
// otherwise the text is a pure delta and is appended verbatim. The very
// first event is always taken whole.
//
// The mode is re-inferred on every event because the server gives no flag.
// A delta that coincidentally extends the previous raw text would be
// misread as cumulative; in practice servers stick to one mode per stream.
func (c *Consumer) appendContent(content any) {
	text, ok := content.(string)
	if !ok {
		if content == nil {
			return
		}
		// Structured payload: serialize it readably and treat it as the
		// whole answer so far.
		text = contentString(content)
		c.full.Reset()
		c.full.WriteString(text)
		c.lastContent = text
		c.notify()
		return
	}

	switch {
	case c.lastContent == "":
		c.full.Reset()
		c.full.WriteString(text)
	case strings.HasPrefix(text, c.lastContent):
		c.full.WriteString(text[len(c.lastContent):])
	default:
		c.full.WriteString(text)
	}

	c.lastContent = text
	c.notify()
}

// completeContent applies the terminal event's content, which is
// authoritative and replaces whatever was accumulated.
func (c *Consumer) completeContent(content any) {
	if content == nil {
		return
	}

	text := contentString(content)
	c.full.Reset()
	c.full.WriteString(text)
	c.lastContent = text
	c.notify()
}

func (c *Consumer) notify() {
	if c.OnContent != nil {
		c.OnContent(c.full.String())
	}
}

func (c *Consumer) upsertTool(t *run.ToolCall) {
	if t == nil {
		return
	}

	t.Normalize()

	key := t.Key()
	if existing, ok := c.tools[key]; ok {
		existing.Merge(t)
		return
	}

	if t.ID == "" {
		t.ID = key
	}
	if t.Name == "" {
		t.Name = "unknown"
	}
	c.tools[key] = t
}

func (c *Consumer) finalize() *Result {
	c.result.Content = c.full.String()

	tools := make([]*run.ToolCall, 0, len(c.tools))
	for _, t := range c.tools {
		tools = append(tools, t)
	}
	sort.SliceStable(tools, func(i, j int) bool {
		return tools[i].CreatedAt < tools[j].CreatedAt
	})
	c.result.Tools = tools

	return &c.result
}

// contentString renders an event content payload as display text: strings
// pass through, anything structured is pretty-printed JSON.
func contentString(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(out)
	}
}
