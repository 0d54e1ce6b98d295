package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quillworksco/quill/pkg/agent"
	"github.com/quillworksco/quill/pkg/run"
	"github.com/quillworksco/quill/pkg/storage"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AgentInfo describes one served agent in the /agents listing.
type AgentInfo struct {
	AgentID     string `json:"agent_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Model       string `json:"model,omitempty"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleListAgents returns the agents this server can run.
func (s *Server) handleListAgents(c *fiber.Ctx) error {
	agents := make([]AgentInfo, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, AgentInfo{
			AgentID:     a.ID(),
			Name:        a.Name(),
			Description: a.Description(),
			Model:       a.Model(),
		})
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })

	return c.JSON(fiber.Map{
		"count":  len(agents),
		"agents": agents,
	})
}

// handleRun executes one agent run. Form fields: message (required),
// session_id (empty starts a new session), stream (anything but "false"
// streams newline-delimited JSON event frames).
func (s *Server) handleRun(c *fiber.Ctx) error {
	a, ok := s.agents[c.Params("id")]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "agent not found"})
	}

	message := c.FormValue("message")
	if strings.TrimSpace(message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message required"})
	}

	streaming := c.FormValue("stream") != "false"
	req := agent.RunRequest{
		SessionID: c.FormValue("session_id"),
		Message:   message,
		Streaming: streaming,
	}

	// Use context.Background() instead of c.Context(): fasthttp recycles its
	// RequestCtx after the handler returns, but the run keeps executing in a
	// goroutine that feeds the response stream.
	if !streaming {
		result, err := a.Run(context.Background(), req, nil)
		if err != nil {
			s.logger.Error("run failed", "agent", a.ID(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
		}

		return c.JSON(run.Event{
			Event:     run.EventRunCompleted,
			RunID:     result.RunID,
			SessionID: result.SessionID,
			Content:   result.Content,
			Tools:     result.Tools,
			CreatedAt: float64(time.Now().UnixNano()) / float64(time.Second),
		})
	}

	// io.Pipe + SetBodyStream(-1) gives chunked transfer with per-frame
	// backpressure; SetBodyStreamWriter would buffer frames internally.
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()

		enc := json.NewEncoder(pw)
		_, err := a.Run(context.Background(), req, func(ev run.Event) {
			if err := enc.Encode(ev); err != nil {
				s.logger.Debug("client went away mid-stream", "agent", a.ID(), "error", err)
			}
		})
		if err != nil {
			// The error frame already went out through the emitter.
			s.logger.Error("run failed", "agent", a.ID(), "error", err)
		}
	}()

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// handleListSessions returns sessions, newest activity first. The
// component_id query parameter filters to one agent.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions, err := s.storer.ListSessions(c.Context(), c.Query("component_id"))
	if err != nil {
		s.logger.Error("listing sessions failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list sessions"})
	}

	return c.JSON(fiber.Map{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// handleSessionRuns returns a session's persisted run records in creation
// order.
func (s *Server) handleSessionRuns(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := s.storer.GetSession(c.Context(), id); err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
		}
		s.logger.Error("loading session failed", "session_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load session"})
	}

	records, err := s.storer.ListRuns(c.Context(), id)
	if err != nil {
		s.logger.Error("listing runs failed", "session_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list runs"})
	}

	return c.JSON(fiber.Map{
		"count": len(records),
		"runs":  records,
	})
}

// handleDeleteSession removes a session and its runs.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.storer.DeleteSession(c.Context(), id); err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
		}
		s.logger.Error("deleting session failed", "session_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete session"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
