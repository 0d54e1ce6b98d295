// Package runapi is the HTTP client for the agent API: it lists agents and
// sessions, starts runs, and hands the streaming run body to the caller.
package runapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quillworksco/quill/pkg/history"
	"github.com/quillworksco/quill/pkg/run"
)

// ErrNotFound is returned when the server reports a missing agent or
// session.
var ErrNotFound = errors.New("not found")

// Agent describes one agent the server can run.
type Agent struct {
	AgentID     string `json:"agent_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Model       string `json:"model,omitempty"`
}

// Client talks to one agent API server.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the server at baseURL. No timeout is set
// on the underlying client: run streams stay open for as long as the model
// generates.
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().SetBaseURL(baseURL),
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		Get("/health")
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("server unhealthy: %s", resp.Status())
	}
	return nil
}

// ListAgents returns the agents the server serves.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var body struct {
		Agents []Agent `json:"agents"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/agents")
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing agents: %s", resp.Status())
	}

	return body.Agents, nil
}

// ListSessions returns sessions, newest activity first. An empty agentID
// returns every session.
func (c *Client) ListSessions(ctx context.Context, agentID string) ([]*run.Session, error) {
	var body struct {
		Sessions []*run.Session `json:"sessions"`
	}

	req := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		SetQueryParam("type", "agent")
	if agentID != "" {
		req.SetQueryParam("component_id", agentID)
	}

	resp, err := req.Get("/sessions")
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing sessions: %s", resp.Status())
	}

	return body.Sessions, nil
}

// SessionRuns returns a session's run records as raw maps, the shape the
// history reconstructor consumes.
func (c *Client) SessionRuns(ctx context.Context, sessionID string) ([]history.RawRecord, error) {
	var body struct {
		Runs []history.RawRecord `json:"runs"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("/sessions/%s/runs", sessionID))
	if err != nil {
		return nil, fmt.Errorf("loading session runs: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("loading session runs: %s", resp.Status())
	}

	return body.Runs, nil
}

// DeleteSession removes a session and its runs.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/sessions/%s", sessionID))
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if resp.StatusCode() == 404 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if resp.IsError() {
		return fmt.Errorf("deleting session: %s", resp.Status())
	}

	return nil
}

// StartRun starts a streaming run and returns the raw response body: a
// stream of JSON event frames for the extractor. The caller owns closing
// the returned reader. An empty sessionID starts a new session; the
// assigned id arrives on the streamed events.
func (c *Client) StartRun(ctx context.Context, agentID, sessionID, message string) (io.ReadCloser, error) {
	form := map[string]string{
		"message": message,
		"stream":  "true",
	}
	if sessionID != "" {
		form["session_id"] = sessionID
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetFormData(form).
		Post(fmt.Sprintf("/agents/%s/runs", agentID))
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}

	if resp.IsError() {
		defer resp.RawBody().Close()
		body, _ := io.ReadAll(resp.RawBody())
		if resp.StatusCode() == 404 {
			return nil, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
		}
		return nil, fmt.Errorf("starting run: %s: %s", resp.Status(), body)
	}

	return resp.RawBody(), nil
}
