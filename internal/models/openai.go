package models

import (
	"context"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

const (
	defaultOpenAIModel    = "gpt-4o"
	defaultMistralBaseURL = "https://api.mistral.ai/v1"
	defaultMistralModel   = "mistral-small-latest"
)

// NewOpenAI creates an OpenAI ChatModel.
func NewOpenAI(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	return newOpenAICompatible(ctx, cfg, auth, time.Minute)
}

// NewMistral creates a Mistral ChatModel through its OpenAI-compatible API.
func NewMistral(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	if cfg.Model == "" {
		cfg.Model = defaultMistralModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMistralBaseURL
	}
	return newOpenAICompatible(ctx, cfg, auth, 5*time.Minute)
}

func newOpenAICompatible(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth, defaultTimeout time.Duration) (model.ToolCallingChatModel, error) {
	conf := &einoopenai.ChatModelConfig{
		APIKey:      auth.Value,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout.Duration(),
		Temperature: temperature(cfg.Options),
		TopP:        topP(cfg.Options),
	}
	if conf.Timeout <= 0 {
		conf.Timeout = defaultTimeout
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		conf.MaxCompletionTokens = &maxTokens
	}
	return einoopenai.NewChatModel(ctx, conf)
}
