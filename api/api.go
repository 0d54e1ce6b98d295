// Package api provides the HTTP API serving the copywriter agent: run
// execution with streaming responses, and session management.
package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/quillworksco/quill/pkg/agent"
	"github.com/quillworksco/quill/pkg/storage"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":7777")
	ListenAddr string
}

// Server is the agent API server.
type Server struct {
	config Config
	storer storage.Driver
	agents map[string]*agent.Agent
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The storer is injected so it can be
// shared with the agents, which persist runs through the same driver.
func NewServer(config Config, storer storage.Driver, agents []*agent.Agent, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		storer: storer,
		agents: make(map[string]*agent.Agent, len(agents)),
		logger: logger,
		app:    app,
	}
	for _, a := range agents {
		s.agents[a.ID()] = a
	}

	app.Get("/health", s.handleHealth)
	app.Get("/agents", s.handleListAgents)
	app.Post("/agents/:id/runs", s.handleRun)
	app.Get("/sessions", s.handleListSessions)
	app.Get("/sessions/:id/runs", s.handleSessionRuns)
	app.Delete("/sessions/:id", s.handleDeleteSession)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
