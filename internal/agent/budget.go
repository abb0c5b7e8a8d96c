package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"

	"github.com/anonx3247/aios-chat-sub000/internal/budget"
)

// MinTranscriptTarget is the smallest transcript budget left after the
// system messages and tool definitions are accounted for.
const MinTranscriptTarget = 256

// BudgetConfig configures transcript trimming before each model call.
type BudgetConfig struct {
	Budgeter budget.Budgeter
	// Target is the prompt budget: the context window minus the response
	// reserve. Leading system messages and Tools are subtracted from it
	// before the transcript is trimmed.
	Target int
	// Tools are the definitions sent alongside the messages.
	Tools []*schema.ToolInfo
}

// NewBudgetMiddleware returns a middleware that keeps leading system messages
// and trims the rest of the transcript to the newest fitting suffix.
func NewBudgetMiddleware(cfg BudgetConfig) adk.AgentMiddleware {
	return adk.AgentMiddleware{
		BeforeChatModel: func(ctx context.Context, state *adk.ChatModelAgentState) error {
			state.Messages = TrimMessages(ctx, cfg, state.Messages)
			return nil
		},
	}
}

// TrimMessages applies the budget to msgs and returns the kept messages.
// A kept tool result always comes with the assistant message that called it,
// which can add turns beyond the budget; a tool result with no call in the
// transcript is dropped, which can leave fewer than budget.MinTurns turns.
func TrimMessages(ctx context.Context, cfg BudgetConfig, msgs []*schema.Message) []*schema.Message {
	if cfg.Target <= 0 {
		return msgs
	}
	head := 0
	for head < len(msgs) && msgs[head].Role == schema.System {
		head++
	}
	system, rest := msgs[:head], msgs[head:]

	overhead := cfg.overhead(ctx, system)
	target := max(cfg.Target-overhead, MinTranscriptTarget)

	kept := len(cfg.Budgeter.Trim(ctx, budget.FromMessages(rest), target))
	if kept == len(rest) {
		return msgs
	}
	start := len(rest) - kept
	// providers reject a tool result whose call is missing
	for start > 0 && rest[start].Role == schema.Tool {
		start--
	}
	suffix := rest[start:]
	for len(suffix) > 1 && suffix[0].Role == schema.Tool {
		suffix = suffix[1:]
	}
	slog.Debug("transcript trimmed", "messages", len(rest), "kept", len(suffix), "target", target, "overhead", overhead)

	out := make([]*schema.Message, 0, len(system)+len(suffix))
	out = append(out, system...)
	return append(out, suffix...)
}

// overhead estimates the tokens spent on system messages and tool
// definitions, which are sent on every call regardless of trimming.
func (cfg BudgetConfig) overhead(ctx context.Context, system []*schema.Message) int {
	w := budget.FromMessages(system)
	if defs := toolDefinitions(ctx, cfg.Tools); len(defs) > 0 {
		w = append(w, budget.Turn{Role: "tools", ToolPayloads: defs})
	}
	if len(w) == 0 {
		return 0
	}
	if cfg.Budgeter.Oracle != nil {
		if n, err := cfg.Budgeter.Oracle.Count(ctx, w); err == nil {
			return n
		}
	}
	return cfg.Budgeter.Heuristic.WindowTokens(w)
}

func toolDefinitions(ctx context.Context, infos []*schema.ToolInfo) []json.RawMessage {
	defs := make([]json.RawMessage, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		def := map[string]any{"name": info.Name, "description": info.Desc}
		if info.ParamsOneOf != nil {
			if s, err := info.ParamsOneOf.ToJSONSchema(); err == nil {
				def["parameters"] = s
			}
		}
		data, err := json.Marshal(def)
		if err != nil {
			slog.DebugContext(ctx, "tool definition not measured", "tool", info.Name, "error", err)
			continue
		}
		defs = append(defs, data)
	}
	return defs
}
