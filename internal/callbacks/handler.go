// Package callbacks provides eino callback handlers that feed model and tool
// activity into metrics and debug logs.
package callbacks

import (
	"context"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	ub "github.com/cloudwego/eino/utils/callbacks"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
)

// Observer receives model and tool call observations.
type Observer interface {
	ObserveModelCall(model, status string, promptTokens, completionTokens int)
	ObserveToolCall(tool, status string)
}

const logPayloadMax = 1000

// NewHandler creates a callback handler reporting to obs. Install it with
// callbacks.AppendGlobalHandlers.
func NewHandler(obs Observer) callbacks.Handler {
	modelHandler := &ub.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *callbacks.RunInfo, input *model.CallbackInput) context.Context {
			slog.Debug("model call", "agent", events.AgentFromContext(ctx), "model", info.Name, "messages", len(input.Messages))
			return ctx
		},
		OnEnd: func(ctx context.Context, info *callbacks.RunInfo, output *model.CallbackOutput) context.Context {
			var in, out int
			if output.Message != nil && output.Message.ResponseMeta != nil && output.Message.ResponseMeta.Usage != nil {
				in = output.Message.ResponseMeta.Usage.PromptTokens
				out = output.Message.ResponseMeta.Usage.CompletionTokens
			}
			obs.ObserveModelCall(info.Name, "ok", in, out)
			return ctx
		},
		OnError: func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			slog.Warn("model call failed", "agent", events.AgentFromContext(ctx), "model", info.Name, "error", err)
			obs.ObserveModelCall(info.Name, "error", 0, 0)
			return ctx
		},
	}

	toolHandler := &ub.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *callbacks.RunInfo, input *tool.CallbackInput) context.Context {
			slog.Debug("tool call", "agent", events.AgentFromContext(ctx), "tool", info.Name,
				"arguments", truncatePayload(input.ArgumentsInJSON, logPayloadMax))
			return ctx
		},
		OnEnd: func(ctx context.Context, info *callbacks.RunInfo, output *tool.CallbackOutput) context.Context {
			slog.Debug("tool result", "agent", events.AgentFromContext(ctx), "tool", info.Name,
				"result", truncatePayload(output.Response, logPayloadMax))
			obs.ObserveToolCall(info.Name, "ok")
			return ctx
		},
		OnError: func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			obs.ObserveToolCall(info.Name, "error")
			return ctx
		},
	}

	return ub.NewHandlerHelper().
		ChatModel(modelHandler).
		Tool(toolHandler).
		Handler()
}

func truncatePayload(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
