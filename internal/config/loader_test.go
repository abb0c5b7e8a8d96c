package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
	// comments and trailing commas are accepted
	"gateway": {
		"host": "0.0.0.0",
		"port": 9999,
	},
	"models": {
		"default": "claude",
		"providers": {
			"claude": {
				"driver": "anthropic",
				"model": "claude-sonnet-4-20250514",
				"auth": {
					"api_key": "${{ .Env.ANTHROPIC_API_KEY }}"
				},
				"max_tokens": 4096,
				"timeout": "45s"
			}
		}
	},
	"orchestrator": {"plan_max_steps": 8, "max_workers": 2},
	"tools": {"web": {"search": {"provider": "bing", "api_key": "k"}}}
}`)
	t.Setenv("ANTHROPIC_API_KEY", "test-key-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Gateway.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Gateway.Port)
	}
	p, ok := cfg.Models.Providers["claude"]
	if !ok {
		t.Fatal("expected claude provider")
	}
	if p.Auth.APIKey != "test-key-123" {
		t.Errorf("expected api_key test-key-123, got %s", p.Auth.APIKey)
	}
	if p.Timeout.Duration() != 45*time.Second {
		t.Errorf("expected timeout 45s, got %s", p.Timeout.Duration())
	}
	if cfg.Orchestrator.PlanMaxSteps != 8 {
		t.Errorf("expected plan_max_steps 8, got %d", cfg.Orchestrator.PlanMaxSteps)
	}
	if cfg.Orchestrator.ExecuteMaxSteps != 30 {
		t.Errorf("expected default execute_max_steps 30, got %d", cfg.Orchestrator.ExecuteMaxSteps)
	}
	if cfg.Tools.Web.Search.Provider != "bing" {
		t.Errorf("expected bing, got %s", cfg.Tools.Web.Search.Provider)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AIOS_PATH", "/tmp/aios-defaults")
	cfg, err := Load(writeConfig(t, `{}`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		got, want any
	}{
		{"gateway host", cfg.Gateway.Host, "127.0.0.1"},
		{"gateway port", cfg.Gateway.Port, 18430},
		{"buffer size", cfg.Events.BufferSize, 1024},
		{"plan steps", cfg.Orchestrator.PlanMaxSteps, 15},
		{"explore steps", cfg.Orchestrator.ExploreMaxSteps, 10},
		{"tool result cap", cfg.Orchestrator.ToolResultCap, 32 * 1024},
		{"search provider", cfg.Tools.Web.Search.Provider, "duckduckgo"},
		{"plugins dir", cfg.Tools.Plugins.Dir, "/tmp/aios-defaults/plugins"},
		{"db path", cfg.Storage.DBPath, "/tmp/aios-defaults/aios.db"},
		{"janitor", cfg.Janitor.Schedule, "@every 10m"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, tt.got)
		}
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.jsonc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.Port != 18430 {
		t.Errorf("expected default port, got %d", cfg.Gateway.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"gateway": `)); err == nil {
		t.Error("expected parse error")
	}
}

func TestExpandEnvTemplates(t *testing.T) {
	t.Setenv("TEST_KEY", "my-secret")
	result := expandEnvTemplates(`{"key": "${{ .Env.TEST_KEY }}"}`)
	expected := `{"key": "my-secret"}`
	if result != expected {
		t.Errorf("expected %s, got %s", expected, result)
	}
}
