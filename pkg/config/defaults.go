package config

const (
	defaultStorageProvider = "sqlite"
	defaultSQLitePath      = "quill.db"

	defaultAPIListen       = ":7777"
	defaultClientAPITarget = "http://localhost:7777"
	defaultClientAgentID   = "copywriter"

	defaultAgentModel       = "gpt-4o"
	defaultAgentUserID      = "influencer-copywriter"
	defaultAgentHistoryRuns = 10
	defaultAgentPrompts     = "prompts/copywriter.md"

	defaultSearchBaseURL    = "https://api.tavily.com"
	defaultSearchMaxResults = 5

	defaultTranscribeBaseURL = "https://api.groq.com/openai/v1"
	defaultTranscribeModel   = "whisper-large-v3"
	defaultTranscriptsDir    = "transcriptions"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "quill.runs"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultStorageProvider,
			SQLitePath: defaultSQLitePath,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
			AgentID:   defaultClientAgentID,
		},
		Agent: AgentConfig{
			Model:       defaultAgentModel,
			UserID:      defaultAgentUserID,
			HistoryRuns: defaultAgentHistoryRuns,
			PromptsPath: defaultAgentPrompts,
		},
		Search: SearchConfig{
			BaseURL:    defaultSearchBaseURL,
			MaxResults: defaultSearchMaxResults,
		},
		Transcribe: TranscribeConfig{
			BaseURL:        defaultTranscribeBaseURL,
			Model:          defaultTranscribeModel,
			TranscriptsDir: defaultTranscriptsDir,
			FFmpegPath:     "ffmpeg",
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
