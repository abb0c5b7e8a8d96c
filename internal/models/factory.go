package models

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

// CreateModel creates a model.ToolCallingChatModel from a provider config.
func CreateModel(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	switch normalizeDriver(cfg.Driver) {
	case "anthropic":
		return NewClaude(ctx, cfg, auth)
	case "openai":
		return NewOpenAI(ctx, cfg, auth)
	case "mistral":
		return NewMistral(ctx, cfg, auth)
	case "gemini":
		return NewGemini(ctx, cfg, auth)
	case "ollama":
		return NewOllama(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}
}

func temperature(opts map[string]any) *float32 {
	if v, ok := opts["temperature"].(float64); ok {
		t := float32(v)
		return &t
	}
	return nil
}

func topP(opts map[string]any) *float32 {
	if v, ok := opts["top_p"].(float64); ok {
		p := float32(v)
		return &p
	}
	return nil
}
