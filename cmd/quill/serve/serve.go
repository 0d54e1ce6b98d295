// Package servecmder provides the serve command running the agent API
// server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/quillworksco/quill/api"
	"github.com/quillworksco/quill/pkg/agent"
	"github.com/quillworksco/quill/pkg/agent/tools"
	"github.com/quillworksco/quill/pkg/config"
	"github.com/quillworksco/quill/pkg/eventstream"
	"github.com/quillworksco/quill/pkg/eventstream/kafka"
	"github.com/quillworksco/quill/pkg/eventstream/nop"
	"github.com/quillworksco/quill/pkg/logger"
	"github.com/quillworksco/quill/pkg/storage"
	"github.com/quillworksco/quill/pkg/storage/inmemory"
	"github.com/quillworksco/quill/pkg/storage/postgres"
	"github.com/quillworksco/quill/pkg/storage/sqlite"
)

// agentID is the id the copywriter agent is served under.
const agentID = "copywriter"

// fallbackInstructions keeps the agent usable when no prompts file is
// present.
const fallbackInstructions = `You are an expert marketing copywriter for social media creators.
Write in the creator's voice. Use the transcript tools to study a creator's
style before writing for them, and the search tool for current facts.`

type ServeCommander struct {
	listen          string
	storageProvider string
	sqlitePath      string
	postgresDSN     string
	model           string
	userID          string
	historyRuns     uint
	promptsPath     string
	transcriptsDir  string
	searchBaseURL   string
	searchResults   uint
	eventsProvider  string
	eventsBrokers   string
	eventsTopic     string
	debug           bool

	logger *slog.Logger
}

var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagStorageProvider: {
		Name: "storage", ViperKey: "storage.provider",
		Description: "Session store backend (sqlite, postgres, inmemory)",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path",
		Description: "Path to the SQLite database file",
	},
	config.FlagPostgresDSN: {
		Name: "postgres-dsn", ViperKey: "storage.postgres_dsn",
		Description: "Postgres connection string",
	},
	config.FlagModel: {
		Name: "model", Shorthand: "m", ViperKey: "agent.model",
		Description: "Chat model the agent generates with",
	},
	config.FlagHistoryRuns: {
		Name: "history-runs", ViperKey: "agent.history_runs",
		Description: "How many prior runs to replay into the model context",
	},
	config.FlagPrompts: {
		Name: "prompts", ViperKey: "agent.prompts_path",
		Description: "Path to the agent instructions markdown file",
	},
	config.FlagTranscriptsDir: {
		Name: "transcripts-dir", ViperKey: "transcribe.transcripts_dir",
		Description: "Directory holding creator transcript files",
	},
	config.FlagEventsProvider: {
		Name: "events-provider", ViperKey: "events.provider",
		Description: "Run event publisher (none, kafka)",
	},
	config.FlagEventsBrokers: {
		Name: "events-brokers", ViperKey: "events.brokers",
		Description: "Comma-separated Kafka bootstrap brokers",
	},
	config.FlagEventsTopic: {
		Name: "events-topic", ViperKey: "events.topic",
		Description: "Kafka topic for run events",
	},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagModel,
	config.FlagHistoryRuns,
	config.FlagPrompts,
	config.FlagTranscriptsDir,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

const serveLongDesc string = `Run the quill agent API server.

The server executes agent runs against the configured chat model, streams
run events to clients, and persists every completed run in the session
store.

The model API key is read from the OPENAI_API_KEY environment variable.
Web search is enabled when TAVILY_API_KEY is set.

Examples:
  quill serve
  quill serve --listen :7777 --storage sqlite --sqlite quill.db
  quill serve --storage postgres --postgres-dsn postgres://localhost/quill`

const serveShortDesc string = "Run the quill agent API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

			cmder.listen = v.GetString("api.listen")
			cmder.storageProvider = v.GetString("storage.provider")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			cmder.model = v.GetString("agent.model")
			cmder.userID = v.GetString("agent.user_id")
			cmder.historyRuns = v.GetUint("agent.history_runs")
			cmder.promptsPath = v.GetString("agent.prompts_path")
			cmder.transcriptsDir = v.GetString("transcribe.transcripts_dir")
			cmder.searchBaseURL = v.GetString("search.base_url")
			cmder.searchResults = v.GetUint("search.max_results")
			cmder.eventsProvider = v.GetString("events.provider")
			cmder.eventsBrokers = v.GetString("events.brokers")
			cmder.eventsTopic = v.GetString("events.topic")

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, serveFlags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, serveFlags, config.FlagHistoryRuns, &cmder.historyRuns)
	config.AddStringFlag(cmd, serveFlags, config.FlagPrompts, &cmder.promptsPath)
	config.AddStringFlag(cmd, serveFlags, config.FlagTranscriptsDir, &cmder.transcriptsDir)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := c.newStorageDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	agentTools, closeTools, err := c.newTools()
	if err != nil {
		return err
	}
	defer closeTools()

	a := agent.New(agent.Config{
		ID:           agentID,
		Name:         "Copywriter",
		Description:  "Writes marketing copy in a creator's voice.",
		Model:        c.model,
		UserID:       c.userID,
		Instructions: c.loadInstructions(),
		HistoryRuns:  c.historyRuns,
	}, openai.NewClient(os.Getenv("OPENAI_API_KEY")), driver,
		agent.WithTools(agentTools...),
		agent.WithPublisher(publisher),
		agent.WithLogger(c.logger),
	)

	server := api.NewServer(api.Config{ListenAddr: c.listen}, driver, []*agent.Agent{a}, c.logger)

	c.logger.Info("starting agent server",
		"listen", c.listen,
		"model", c.model,
		"storage", c.storageProvider,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

func (c *ServeCommander) newStorageDriver() (storage.Driver, error) {
	switch c.storageProvider {
	case "postgres":
		driver, err := postgres.NewDriver(context.Background(), c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres driver: %w", err)
		}
		c.logger.Info("using Postgres storage")
		return driver, nil
	case "sqlite", "":
		driver, err := sqlite.NewSQLiteDriver(c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite driver: %w", err)
		}
		c.logger.Info("using SQLite storage", "path", c.sqlitePath)
		return driver, nil
	case "inmemory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %q", c.storageProvider)
	}
}

func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
	switch c.eventsProvider {
	case "kafka":
		if c.eventsBrokers == "" {
			return nil, fmt.Errorf("events.brokers required for the kafka publisher")
		}
		brokers := strings.Split(c.eventsBrokers, ",")
		c.logger.Info("publishing run events to Kafka",
			"brokers", c.eventsBrokers, "topic", c.eventsTopic)
		return kafka.NewPublisher(brokers, c.eventsTopic), nil
	case "none", "":
		return nop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown events provider: %q", c.eventsProvider)
	}
}

// newTools builds the agent toolset: the transcript library tools, plus web
// search when a Tavily key is present.
func (c *ServeCommander) newTools() ([]agent.Tool, func(), error) {
	store, err := tools.NewTranscriptStore(c.transcriptsDir, c.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening transcript store: %w", err)
	}

	agentTools := []agent.Tool{
		tools.NewListCreators(store),
		tools.NewCreatorTranscripts(store),
	}

	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		agentTools = append(agentTools,
			tools.NewTavilySearch(c.searchBaseURL, key, c.searchResults))
	} else {
		c.logger.Info("TAVILY_API_KEY not set, web search disabled")
	}

	return agentTools, func() { _ = store.Close() }, nil
}

func (c *ServeCommander) loadInstructions() string {
	data, err := os.ReadFile(c.promptsPath)
	if err != nil {
		c.logger.Warn("prompts file not readable, using built-in instructions",
			"path", c.promptsPath, "error", err)
		return fallbackInstructions
	}
	return string(data)
}
