package models

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/budget"
	"github.com/anonx3247/aios-chat-sub000/internal/config"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
)

func TestResolveAuth(t *testing.T) {
	t.Setenv("MY_CUSTOM_KEY", "custom-api-key-value")
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic-key")
	t.Setenv("OPENAI_API_KEY", "env-openai-key")
	t.Setenv("GEMINI_API_KEY", "")

	tests := []struct {
		name     string
		cfg      config.ProviderConfig
		creds    secrets.Credentials
		wantKind AuthKind
		want     string
		wantErr  string
	}{
		{
			name:     "direct api key",
			cfg:      config.ProviderConfig{Driver: "anthropic", Auth: config.AuthConfig{APIKey: "sk-ant-test-123"}},
			wantKind: AuthAPIKey,
			want:     "sk-ant-test-123",
		},
		{
			name:     "bearer token wins over api key",
			cfg:      config.ProviderConfig{Driver: "anthropic", Auth: config.AuthConfig{APIKey: "sk-ant", Token: "bearer-token-xyz"}},
			wantKind: AuthBearerToken,
			want:     "bearer-token-xyz",
		},
		{
			name:     "env var syntax",
			cfg:      config.ProviderConfig{Driver: "anthropic", Auth: config.AuthConfig{APIKey: "${MY_CUSTOM_KEY}"}},
			wantKind: AuthAPIKey,
			want:     "custom-api-key-value",
		},
		{
			name:     "anthropic env fallback",
			cfg:      config.ProviderConfig{Driver: "anthropic"},
			wantKind: AuthAPIKey,
			want:     "env-anthropic-key",
		},
		{
			name:     "claude alias",
			cfg:      config.ProviderConfig{Driver: "claude"},
			wantKind: AuthAPIKey,
			want:     "env-anthropic-key",
		},
		{
			name:     "openai env fallback",
			cfg:      config.ProviderConfig{Driver: "openai"},
			wantKind: AuthAPIKey,
			want:     "env-openai-key",
		},
		{
			name:     "run credentials override config",
			cfg:      config.ProviderConfig{Driver: "anthropic", Auth: config.AuthConfig{Token: "bearer"}},
			creds:    secrets.Credentials{"anthropic_api_key": "from-user"},
			wantKind: AuthAPIKey,
			want:     "from-user",
		},
		{
			name:     "ollama needs nothing",
			cfg:      config.ProviderConfig{Driver: "ollama"},
			wantKind: AuthNone,
		},
		{
			name:    "gemini missing",
			cfg:     config.ProviderConfig{Driver: "gemini"},
			wantErr: "GEMINI_API_KEY not set",
		},
		{
			name:    "unknown driver",
			cfg:     config.ProviderConfig{Driver: "acme"},
			wantErr: "unknown driver",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := ResolveAuth(tt.cfg, tt.creds)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveAuth: %v", err)
			}
			if auth.Kind != tt.wantKind {
				t.Errorf("expected kind %d, got %d", tt.wantKind, auth.Kind)
			}
			if auth.Value != tt.want {
				t.Errorf("expected value %q, got %q", tt.want, auth.Value)
			}
		})
	}
}

func TestCreateModel_UnknownDriver(t *testing.T) {
	_, err := CreateModel(context.Background(), config.ProviderConfig{Driver: "unknown-driver"}, ResolvedAuth{})
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected 'unknown driver' error, got %v", err)
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := NewRegistry(config.ModelsConfig{Default: "main"})
	_, err := reg.Resolve(context.Background(), "nonexistent")
	if !errors.Is(err, errUnknownProvider) {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestRegistry_DefaultName(t *testing.T) {
	reg := NewRegistry(config.ModelsConfig{
		Providers: map[string]config.ProviderConfig{"only": {Driver: "ollama"}},
	})
	if reg.DefaultName() != "only" {
		t.Errorf("expected single provider to become default, got %q", reg.DefaultName())
	}

	reg = NewRegistry(config.ModelsConfig{})
	if _, err := reg.Resolve(context.Background(), ""); !errors.Is(err, errNoDefaultModel) {
		t.Errorf("expected errNoDefaultModel, got %v", err)
	}
}

func TestRegistry_CachesPerCredential(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	reg := NewRegistry(config.ModelsConfig{
		Default: "claude",
		Providers: map[string]config.ProviderConfig{
			"claude": {Driver: "anthropic", Model: "claude-sonnet-4-5"},
		},
	})
	var seen []string
	reg.create = func(_ context.Context, _ config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
		seen = append(seen, auth.Value)
		return nil, nil
	}

	ctx := context.Background()
	first, err := reg.Resolve(ctx, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	again, _ := reg.Resolve(ctx, "claude")
	if first != again {
		t.Error("expected cached provider for the same credentials")
	}

	userCtx := secrets.WithCredentials(ctx, secrets.Credentials{"anthropic_api_key": "user-key"})
	other, _ := reg.Resolve(userCtx, "")
	if other == first {
		t.Error("expected a separate provider for overridden credentials")
	}
	if len(seen) != 2 || seen[0] != "env-key" || seen[1] != "user-key" {
		t.Errorf("expected clients for [env-key user-key], got %v", seen)
	}
	if first.ContextWindow != 200000 {
		t.Errorf("expected 200000 context window, got %d", first.ContextWindow)
	}
	if first.Oracle == nil {
		t.Error("expected an anthropic token oracle")
	}
}

func TestRegistry_CreateError(t *testing.T) {
	reg := NewRegistry(config.ModelsConfig{
		Providers: map[string]config.ProviderConfig{"local": {Driver: "ollama"}},
	})
	boom := errors.New("boom")
	reg.create = func(context.Context, config.ProviderConfig, ResolvedAuth) (model.ToolCallingChatModel, error) {
		return nil, boom
	}
	if _, err := reg.Resolve(context.Background(), ""); !errors.Is(err, boom) {
		t.Fatalf("expected create error, got %v", err)
	}
}

func TestResolveContextWindow(t *testing.T) {
	tests := []struct {
		cfg  config.ProviderConfig
		want int
	}{
		{config.ProviderConfig{Driver: "anthropic", Model: "claude-opus-4"}, 200000},
		{config.ProviderConfig{Driver: "openai", Model: "gpt-4o-mini"}, 128000},
		{config.ProviderConfig{Driver: "openai", Model: "gpt-4"}, 8192},
		{config.ProviderConfig{Driver: "openai", Model: "gpt-4.1-mini"}, 1000000},
		{config.ProviderConfig{Driver: "gemini", Model: "gemini-2.5-pro"}, 1000000},
		{config.ProviderConfig{Driver: "ollama", Model: "llama3"}, 8192},
		{config.ProviderConfig{Driver: "ollama", Model: "llama3", ContextWindow: 32768}, 32768},
		{config.ProviderConfig{Driver: "openai", Model: "mystery"}, fallbackContextWindow},
	}
	for _, tt := range tests {
		if got := resolveContextWindow(tt.cfg); got != tt.want {
			t.Errorf("%s/%s: expected %d, got %d", tt.cfg.Driver, tt.cfg.Model, tt.want, got)
		}
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"status 401: invalid x-api-key", ErrAuth},
		{"429 Too Many Requests", ErrRateLimited},
		{"prompt is too long: 210000 tokens", ErrContextTooLong},
		{"not_found_error: model claude-x", ErrModelNotFound},
		{"dial tcp: connection refused", ErrConnection},
	}
	for _, tt := range tests {
		if err := HandleError(errors.New(tt.msg)); !errors.Is(err, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.msg, tt.want, err)
		}
	}

	plain := errors.New("something odd")
	if HandleError(plain) != plain {
		t.Error("expected unclassified errors to pass through")
	}
	if HandleError(nil) != nil {
		t.Error("expected nil for nil")
	}
	wrapped := HandleError(&ErrModelUnavailable{Provider: "ollama", Body: "bad gateway"})
	if !errors.Is(wrapped, ErrConnection) {
		t.Errorf("expected unavailable backend to classify as connection error, got %v", wrapped)
	}
}

func TestRunnerBudget(t *testing.T) {
	r := NewRunner(NewRegistry(config.ModelsConfig{}), RunnerConfig{ResponseReserve: 4096, CharsPerToken: 3})

	b := r.budgetFor(&Provider{ContextWindow: 200000})
	if b.Target != 200000-4096 {
		t.Errorf("expected target %d, got %d", 200000-4096, b.Target)
	}
	if b.Budgeter.Heuristic.CharsPerToken != 3 {
		t.Errorf("expected chars per token 3, got %d", b.Budgeter.Heuristic.CharsPerToken)
	}

	b = r.budgetFor(&Provider{ContextWindow: 8192, Config: config.ProviderConfig{MaxTokens: 8000}})
	if b.Target != minTarget {
		t.Errorf("expected target floor %d, got %d", minTarget, b.Target)
	}
}

func TestRunnerBudgetFitsInstructionAndTranscript(t *testing.T) {
	r := NewRunner(NewRegistry(config.ModelsConfig{}), RunnerConfig{ResponseReserve: 1024})
	b := r.budgetFor(&Provider{ContextWindow: 8192})
	tools := []*schema.ToolInfo{{
		Name: "read_file",
		Desc: strings.Repeat("d", 400),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"path": {Type: schema.String, Desc: "file path", Required: true},
		}),
	}}
	b.Tools = tools

	msgs := []*schema.Message{schema.SystemMessage(strings.Repeat("i", 12000))}
	for i := 0; i < 20; i++ {
		msgs = append(msgs, schema.UserMessage(strings.Repeat("u", 2000)))
	}

	got := agent.TrimMessages(context.Background(), *b, msgs)
	if len(got) >= len(msgs) {
		t.Fatalf("expected the transcript to be trimmed, kept %d of %d", len(got), len(msgs))
	}
	if got[0].Role != schema.System {
		t.Errorf("expected the instruction to be kept, got %s", got[0].Role)
	}

	h := budget.Heuristic{}
	prompt := h.WindowTokens(budget.FromMessages(got)) + h.TurnTokens(budget.Turn{ToolPayloads: toolPayloads(t, tools)})
	if prompt > 8192-1024 {
		t.Errorf("expected prompt within %d tokens, got %d", 8192-1024, prompt)
	}
}

func toolPayloads(t *testing.T, infos []*schema.ToolInfo) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, info := range infos {
		s, err := info.ParamsOneOf.ToJSONSchema()
		if err != nil {
			t.Fatalf("tool schema: %v", err)
		}
		data, err := json.Marshal(map[string]any{"name": info.Name, "description": info.Desc, "parameters": s})
		if err != nil {
			t.Fatalf("marshal tool: %v", err)
		}
		out = append(out, data)
	}
	return out
}

func TestRunnerPropagatesResolveError(t *testing.T) {
	r := NewRunner(NewRegistry(config.ModelsConfig{}), RunnerConfig{})
	_, err := r.Run(context.Background(), agent.Request{Name: "planner"})
	if !errors.Is(err, errNoDefaultModel) {
		t.Fatalf("expected errNoDefaultModel, got %v", err)
	}
}
