package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// standardizes it to JSON, unmarshals it into Config, and applies defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvTemplates(string(data))

	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18430
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}

	o := &cfg.Orchestrator
	if o.PlanMaxSteps == 0 {
		o.PlanMaxSteps = 15
	}
	if o.ExecuteMaxSteps == 0 {
		o.ExecuteMaxSteps = 30
	}
	if o.ExploreMaxSteps == 0 {
		o.ExploreMaxSteps = 10
	}
	if o.WorkerMaxSteps == 0 {
		o.WorkerMaxSteps = 20
	}
	if o.MaxWorkers == 0 {
		o.MaxWorkers = 4
	}
	if o.ToolResultCap == 0 {
		o.ToolResultCap = 32 * 1024
	}
	if o.CharsPerToken == 0 {
		o.CharsPerToken = 4
	}
	if o.ResponseReserve == 0 {
		o.ResponseReserve = 4096
	}

	t := &cfg.Tools
	if t.Web.Search.Provider == "" {
		t.Web.Search.Provider = "duckduckgo"
	}
	if t.Web.Search.MaxResults == 0 {
		t.Web.Search.MaxResults = 5
	}
	if t.Web.Fetch.Timeout == 0 {
		t.Web.Fetch.Timeout = Duration(30 * time.Second)
	}
	if t.Web.Fetch.MaxBodyKB == 0 {
		t.Web.Fetch.MaxBodyKB = 512
	}
	if t.Web.Fetch.UserAgent == "" {
		t.Web.Fetch.UserAgent = "aios/1.0 (web_fetch)"
	}
	if t.Shell.Timeout == 0 {
		t.Shell.Timeout = Duration(30 * time.Second)
	}
	if t.Plugins.Dir == "" {
		t.Plugins.Dir = filepath.Join(AiosPath(), "plugins")
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(AiosPath(), "aios.db")
	}
	if cfg.Storage.EventLogDir == "" {
		cfg.Storage.EventLogDir = filepath.Join(AiosPath(), "events")
	}
	if cfg.Janitor.Schedule == "" {
		cfg.Janitor.Schedule = "@every 10m"
	}
	// Auth resolution is deferred to models.ResolveAuth() at model init time.
}
