package models

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

const (
	defaultClaudeModel     = "claude-sonnet-4-5"
	defaultClaudeMaxTokens = 4096
)

// NewClaude creates an Anthropic ChatModel. Bearer tokens (OAuth) are sent
// in the Authorization header instead of x-api-key.
func NewClaude(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultClaudeModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	conf := &claude.Config{
		APIKey:      auth.Value,
		Model:       modelName,
		MaxTokens:   maxTokens,
		Temperature: temperature(cfg.Options),
		TopP:        topP(cfg.Options),
		HTTPClient:  &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		conf.BaseURL = &baseURL
	}
	if auth.Kind == AuthBearerToken {
		conf.APIKey = "unused"
		conf.HTTPClient.Transport = &bearerTransport{inner: http.DefaultTransport, token: auth.Value}
	}
	return claude.NewChatModel(ctx, conf)
}

// bearerTransport swaps the API key header for a Bearer token.
type bearerTransport struct {
	inner http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Del("X-Api-Key")
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.inner.RoundTrip(req)
}
