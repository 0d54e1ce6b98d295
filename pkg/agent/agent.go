// Package agent implements the copywriter agent runtime: it drives the
// model through a streaming tool-call loop, persists each completed run,
// and emits the wire events the streaming API relays to clients.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/quillworksco/quill/pkg/eventstream"
	"github.com/quillworksco/quill/pkg/eventstream/nop"
	"github.com/quillworksco/quill/pkg/history"
	"github.com/quillworksco/quill/pkg/logger"
	"github.com/quillworksco/quill/pkg/run"
	"github.com/quillworksco/quill/pkg/storage"
)

// DefaultMaxToolRounds bounds how many times a single run may loop through
// "model asks for tools, tools answer, model continues".
const DefaultMaxToolRounds = 5

// ErrEmptyMessage is returned when a run is requested with no user message.
var ErrEmptyMessage = errors.New("empty message")

// Config carries the agent's identity and generation settings.
type Config struct {
	ID           string
	Name         string
	Description  string
	Model        string
	UserID       string
	Instructions string

	// HistoryRuns is how many prior runs from the session are replayed into
	// the model context. Zero replays nothing.
	HistoryRuns uint

	// MaxToolRounds overrides DefaultMaxToolRounds when positive.
	MaxToolRounds int
}

// Agent answers user messages with the configured model, executing tool
// calls the model requests and persisting every completed run.
type Agent struct {
	cfg    Config
	client *openai.Client
	store  storage.Driver
	pub    eventstream.Publisher
	log    *slog.Logger

	tools map[string]Tool
	defs  []openai.Tool
}

// Option configures optional agent collaborators.
type Option func(*Agent)

// WithTools registers the tools the model may call.
func WithTools(tools ...Tool) Option {
	return func(a *Agent) {
		for _, t := range tools {
			a.tools[t.Name()] = t
			a.defs = append(a.defs, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
	}
}

// WithPublisher sets the run event publisher. Defaults to a no-op.
func WithPublisher(pub eventstream.Publisher) Option {
	return func(a *Agent) {
		a.pub = pub
	}
}

// WithLogger sets the agent's logger. Defaults to a no-op logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		a.log = log
	}
}

// New creates an agent backed by the given chat client and store.
func New(cfg Config, client *openai.Client, store storage.Driver, opts ...Option) *Agent {
	a := &Agent{
		cfg:    cfg,
		client: client,
		store:  store,
		pub:    nop.NewPublisher(),
		log:    logger.Nop(),
		tools:  make(map[string]Tool),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ID returns the agent's identifier.
func (a *Agent) ID() string { return a.cfg.ID }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.cfg.Name }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.cfg.Description }

// Model returns the model the agent generates with.
func (a *Agent) Model() string { return a.cfg.Model }

// RunRequest is one user turn to answer.
type RunRequest struct {
	// SessionID attaches the run to an existing session. Empty starts a new
	// session.
	SessionID string

	// Message is the user's text.
	Message string

	// Streaming records whether the caller consumed the run as a live
	// stream. It only affects the published run event metadata.
	Streaming bool
}

// RunResult is the outcome of one completed run.
type RunResult struct {
	RunID      string
	SessionID  string
	NewSession bool
	Content    string
	Tools      []*run.ToolCall
}

// EmitFunc receives each wire event as the run progresses. Implementations
// must not retain the event past the call.
type EmitFunc func(ev run.Event)

// Run answers one user message. Events are emitted through emit as they
// happen; the completed run is persisted before Run returns. A nil emit
// discards events.
func (a *Agent) Run(ctx context.Context, req RunRequest, emit EmitFunc) (*RunResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if emit == nil {
		emit = func(run.Event) {}
	}

	startedAt := time.Now()

	sessionID, newSession, err := a.ensureSession(ctx, req.SessionID, req.Message)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	emit(run.Event{
		Event:     run.EventRunStarted,
		RunID:     runID,
		SessionID: sessionID,
		CreatedAt: unixNow(),
	})

	messages, err := a.buildMessages(ctx, sessionID, req.Message)
	if err != nil {
		return nil, a.failRun(emit, runID, sessionID, err)
	}

	var answer strings.Builder
	var toolLog []*run.ToolCall

	maxRounds := a.cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}

	for round := 0; ; round++ {
		if round >= maxRounds {
			err := fmt.Errorf("tool round limit of %d reached", maxRounds)
			return nil, a.failRun(emit, runID, sessionID, err)
		}

		calls, err := a.streamCompletion(ctx, messages, emit, runID, sessionID, &answer)
		if err != nil {
			return nil, a.failRun(emit, runID, sessionID, err)
		}
		if len(calls) == 0 {
			break
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: calls,
		})

		for _, call := range calls {
			tc, result := a.executeTool(ctx, call, emit, runID, sessionID)
			toolLog = append(toolLog, tc)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	content := answer.String()
	completedAt := time.Now()

	record := &run.Record{
		RunID:     runID,
		SessionID: sessionID,
		Input:     req.Message,
		Output:    content,
		Tools:     toolLog,
		CreatedAt: unixNow(),
	}
	if err := a.store.SaveRun(ctx, record); err != nil {
		return nil, a.failRun(emit, runID, sessionID, fmt.Errorf("saving run: %w", err))
	}
	a.touchSession(ctx, sessionID)

	a.publish(ctx, record, startedAt, completedAt, req.Streaming)

	emit(run.Event{
		Event:     run.EventRunCompleted,
		RunID:     runID,
		SessionID: sessionID,
		Content:   content,
		Tools:     toolLog,
		CreatedAt: unixNow(),
	})

	return &RunResult{
		RunID:      runID,
		SessionID:  sessionID,
		NewSession: newSession,
		Content:    content,
		Tools:      toolLog,
	}, nil
}

// ensureSession resolves the session for a run, creating one titled after
// the first message when the id is empty or unknown.
func (a *Agent) ensureSession(ctx context.Context, sessionID, message string) (string, bool, error) {
	if sessionID != "" {
		_, err := a.store.GetSession(ctx, sessionID)
		if err == nil {
			return sessionID, false, nil
		}

		var notFound storage.NotFoundError
		if !errors.As(err, &notFound) {
			return "", false, fmt.Errorf("loading session: %w", err)
		}
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := unixNow()
	sess := &run.Session{
		SessionID: sessionID,
		AgentID:   a.cfg.ID,
		UserID:    a.cfg.UserID,
		Title:     history.Summarize(message, history.DefaultSummaryLength),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateSession(ctx, sess); err != nil {
		return "", false, fmt.Errorf("creating session: %w", err)
	}

	return sessionID, true, nil
}

// buildMessages assembles the model context: instructions, the last
// HistoryRuns persisted runs, and the new user message.
func (a *Agent) buildMessages(ctx context.Context, sessionID, message string) ([]openai.ChatCompletionMessage, error) {
	var messages []openai.ChatCompletionMessage

	if a.cfg.Instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.cfg.Instructions,
		})
	}

	records, err := a.store.ListRuns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session history: %w", err)
	}
	if n := int(a.cfg.HistoryRuns); len(records) > n {
		records = records[len(records)-n:]
	}
	for _, rec := range records {
		if rec.Input != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: rec.Input,
			})
		}
		if rec.Output != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: rec.Output,
			})
		}
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	return messages, nil
}

// streamCompletion runs one model turn, appending content deltas to answer
// and emitting them as they arrive. It returns the tool calls the model
// requested, empty when the turn ended with a plain answer.
func (a *Agent) streamCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, emit EmitFunc, runID, sessionID string, answer *strings.Builder) ([]openai.ToolCall, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.cfg.Model,
		Messages: messages,
	}
	if len(a.defs) > 0 {
		req.Tools = a.defs
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("starting completion: %w", err)
	}
	defer stream.Close()

	var calls []openai.ToolCall
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			answer.WriteString(delta.Content)
			emit(run.Event{
				Event:     run.EventRunContent,
				RunID:     runID,
				SessionID: sessionID,
				Content:   delta.Content,
				CreatedAt: unixNow(),
			})
		}

		// Tool call fragments arrive spread over chunks: the id and name
		// on the first fragment for an index, argument text appended over
		// the rest.
		for _, frag := range delta.ToolCalls {
			idx := 0
			if frag.Index != nil {
				idx = *frag.Index
			}
			for len(calls) <= idx {
				calls = append(calls, openai.ToolCall{})
			}

			acc := &calls[idx]
			if frag.ID != "" {
				acc.ID = frag.ID
			}
			if frag.Type != "" {
				acc.Type = frag.Type
			}
			if frag.Function.Name != "" {
				acc.Function.Name = frag.Function.Name
			}
			acc.Function.Arguments += frag.Function.Arguments
		}
	}

	return calls, nil
}

// executeTool runs one requested tool call, emitting started and completed
// events around it. Tool failures are recorded on the call and reported
// back to the model rather than failing the run.
func (a *Agent) executeTool(ctx context.Context, call openai.ToolCall, emit EmitFunc, runID, sessionID string) (*run.ToolCall, string) {
	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			a.log.Warn("tool arguments are not valid JSON",
				"tool", call.Function.Name, "error", err)
		}
	}

	tc := &run.ToolCall{
		ID:        call.ID,
		Name:      call.Function.Name,
		Args:      args,
		CreatedAt: unixNow(),
	}

	started := *tc
	emit(run.Event{
		Event:     run.EventToolCallStarted,
		RunID:     runID,
		SessionID: sessionID,
		Tool:      &started,
		CreatedAt: started.CreatedAt,
	})

	var result string
	tool, ok := a.tools[call.Function.Name]
	if !ok {
		result = fmt.Sprintf("unknown tool: %s", call.Function.Name)
		tc.Failed = true
	} else {
		out, err := tool.Call(ctx, args)
		if err != nil {
			result = fmt.Sprintf("tool failed: %s", err)
			tc.Failed = true
			a.log.Warn("tool call failed", "tool", call.Function.Name, "error", err)
		} else {
			result = out
		}
	}
	tc.Result = result

	emit(run.Event{
		Event:     run.EventToolCallCompleted,
		RunID:     runID,
		SessionID: sessionID,
		Tool:      tc,
		CreatedAt: unixNow(),
	})

	return tc, result
}

// failRun reports a run failure to the stream and returns the error.
func (a *Agent) failRun(emit EmitFunc, runID, sessionID string, err error) error {
	emit(run.Event{
		Event:     run.EventRunError,
		RunID:     runID,
		SessionID: sessionID,
		Content:   err.Error(),
		CreatedAt: unixNow(),
	})

	return err
}

// touchSession bumps the session's updated_at so session listings order by
// recent activity. Failures are logged, not fatal: the run is already saved.
func (a *Agent) touchSession(ctx context.Context, sessionID string) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		a.log.Warn("loading session for touch failed", "session_id", sessionID, "error", err)
		return
	}

	sess.UpdatedAt = unixNow()
	if err := a.store.UpdateSession(ctx, sess); err != nil {
		a.log.Warn("updating session failed", "session_id", sessionID, "error", err)
	}
}

// publish sends the persisted-run event. Publishing is best effort: the run
// is already durable, so a broker failure is logged and swallowed.
func (a *Agent) publish(ctx context.Context, record *run.Record, startedAt, completedAt time.Time, streaming bool) {
	event := &eventstream.RunPersistedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeRunPersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     completedAt,
		Source: eventstream.EventSource{
			AgentID: a.cfg.ID,
			Model:   a.cfg.Model,
			UserID:  a.cfg.UserID,
		},
		RunMeta: eventstream.RunMeta{
			SessionID:   record.SessionID,
			RunID:       record.RunID,
			StartedAt:   startedAt,
			CompletedAt: completedAt,
			DurationMs:  completedAt.Sub(startedAt).Milliseconds(),
			Streaming:   streaming,
			ToolCalls:   len(record.Tools),
		},
		Record: *record,
	}

	if err := a.pub.PublishRun(ctx, event); err != nil {
		a.log.Warn("publishing run event failed", "run_id", record.RunID, "error", err)
	}
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
