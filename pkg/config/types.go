package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent quill configuration stored as config.toml
// in the .quill/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Storage    StorageConfig    `toml:"storage"`
	API        APIConfig        `toml:"api"`
	Client     ClientConfig     `toml:"client"`
	Agent      AgentConfig      `toml:"agent"`
	Search     SearchConfig     `toml:"search"`
	Transcribe TranscribeConfig `toml:"transcribe"`
	Events     EventsConfig     `toml:"events"`
}

// StorageConfig holds session store settings for the API server.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// quill server (e.g. quill chat, quill sessions). Values are full URLs
// (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
	AgentID   string `toml:"agent_id,omitempty"`
}

// AgentConfig holds the copywriter agent's runtime settings.
type AgentConfig struct {
	Model       string `toml:"model,omitempty"`
	UserID      string `toml:"user_id,omitempty"`
	HistoryRuns uint   `toml:"history_runs,omitempty"`
	PromptsPath string `toml:"prompts_path,omitempty"`
}

// SearchConfig holds web search tool settings.
type SearchConfig struct {
	BaseURL    string `toml:"base_url,omitempty"`
	MaxResults uint   `toml:"max_results,omitempty"`
}

// TranscribeConfig holds speech-to-text pipeline settings.
type TranscribeConfig struct {
	BaseURL        string `toml:"base_url,omitempty"`
	Model          string `toml:"model,omitempty"`
	TranscriptsDir string `toml:"transcripts_dir,omitempty"`
	FFmpegPath     string `toml:"ffmpeg_path,omitempty"`
}

// EventsConfig holds run-lifecycle event publishing settings.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"client.agent_id": {
		get: func(c *Config) string { return c.Client.AgentID },
		set: func(c *Config, v string) error { c.Client.AgentID = v; return nil },
	},
	"agent.model": {
		get: func(c *Config) string { return c.Agent.Model },
		set: func(c *Config, v string) error { c.Agent.Model = v; return nil },
	},
	"agent.user_id": {
		get: func(c *Config) string { return c.Agent.UserID },
		set: func(c *Config, v string) error { c.Agent.UserID = v; return nil },
	},
	"agent.history_runs": {
		get: func(c *Config) string {
			if c.Agent.HistoryRuns == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Agent.HistoryRuns), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for agent.history_runs: %w", err)
			}
			c.Agent.HistoryRuns = uint(n)
			return nil
		},
	},
	"agent.prompts_path": {
		get: func(c *Config) string { return c.Agent.PromptsPath },
		set: func(c *Config, v string) error { c.Agent.PromptsPath = v; return nil },
	},
	"search.base_url": {
		get: func(c *Config) string { return c.Search.BaseURL },
		set: func(c *Config, v string) error { c.Search.BaseURL = v; return nil },
	},
	"search.max_results": {
		get: func(c *Config) string {
			if c.Search.MaxResults == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Search.MaxResults), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for search.max_results: %w", err)
			}
			c.Search.MaxResults = uint(n)
			return nil
		},
	},
	"transcribe.base_url": {
		get: func(c *Config) string { return c.Transcribe.BaseURL },
		set: func(c *Config, v string) error { c.Transcribe.BaseURL = v; return nil },
	},
	"transcribe.model": {
		get: func(c *Config) string { return c.Transcribe.Model },
		set: func(c *Config, v string) error { c.Transcribe.Model = v; return nil },
	},
	"transcribe.transcripts_dir": {
		get: func(c *Config) string { return c.Transcribe.TranscriptsDir },
		set: func(c *Config, v string) error { c.Transcribe.TranscriptsDir = v; return nil },
	},
	"transcribe.ffmpeg_path": {
		get: func(c *Config) string { return c.Transcribe.FFmpegPath },
		set: func(c *Config, v string) error { c.Transcribe.FFmpegPath = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
