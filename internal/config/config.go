package config

import "time"

// Config is the root configuration for aios.
type Config struct {
	Gateway      GatewayConfig      `json:"gateway"`
	Models       ModelsConfig       `json:"models"`
	Events       EventsConfig       `json:"events"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Tools        ToolsConfig        `json:"tools"`
	Storage      StorageConfig      `json:"storage"`
	Janitor      JanitorConfig      `json:"janitor"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver        string         `json:"driver"` // "anthropic", "openai", "mistral", "ollama", "gemini"
	Model         string         `json:"model"`
	BaseURL       string         `json:"base_url,omitempty"`
	Auth          AuthConfig     `json:"auth"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	ContextWindow int            `json:"context_window,omitempty"` // 0 = registry default for the model
	Timeout       Duration       `json:"timeout,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key or ${{ .Env.VAR }} template
	Token  string `json:"token,omitempty"`   // Bearer token, takes precedence over APIKey
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// OrchestratorConfig bounds the plan/execute stages and their workers.
type OrchestratorConfig struct {
	PlanMaxSteps    int `json:"plan_max_steps"`
	ExecuteMaxSteps int `json:"execute_max_steps"`
	ExploreMaxSteps int `json:"explore_max_steps"`
	WorkerMaxSteps  int `json:"worker_max_steps"`
	MaxWorkers      int `json:"max_workers"`
	ToolResultCap   int `json:"tool_result_cap"`  // bytes
	CharsPerToken   int `json:"chars_per_token"`  // heuristic ratio
	ResponseReserve int `json:"response_reserve"` // tokens kept free for the reply
}

// ToolsConfig configures the capability registry.
type ToolsConfig struct {
	Roots   []string      `json:"roots"` // filesystem roots readable by file tools (default: cwd)
	Web     WebConfig     `json:"web"`
	Shell   ShellConfig   `json:"shell"`
	Plugins PluginsConfig `json:"plugins"`
}

// WebConfig groups the web tools.
type WebConfig struct {
	Search WebSearchConfig `json:"search"`
	Fetch  WebFetchConfig  `json:"fetch"`
}

// WebSearchConfig configures web_search.
type WebSearchConfig struct {
	Provider   string `json:"provider"` // "duckduckgo" (default), "google", "bing"
	APIKey     string `json:"api_key,omitempty"`
	EngineID   string `json:"engine_id,omitempty"` // google custom search engine id
	MaxResults int    `json:"max_results"`
}

// WebFetchConfig configures web_fetch.
type WebFetchConfig struct {
	Timeout   Duration `json:"timeout"`
	MaxBodyKB int      `json:"max_body_kb"`
	UserAgent string   `json:"user_agent"`
}

// ShellConfig configures run_command.
type ShellConfig struct {
	Enabled bool     `json:"enabled"`
	Timeout Duration `json:"timeout"`
}

// PluginsConfig configures WASM plugin tools.
type PluginsConfig struct {
	Dir     string   `json:"dir"`     // plugin directory (default: $AIOS_PATH/plugins)
	Enabled []string `json:"enabled"` // enabled plugin names (empty = all)
}

// StorageConfig locates persistent data.
type StorageConfig struct {
	DBPath      string `json:"db_path"`
	EventLogDir string `json:"event_log_dir"`
}

// JanitorConfig schedules cleanup of finished tasks.
type JanitorConfig struct {
	Schedule string `json:"schedule"` // cron expression or @every descriptor
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
