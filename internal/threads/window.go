package threads

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/anonx3247/aios-chat-sub000/internal/budget"
)

// Window returns the thread as a budget window. Tool invocation payloads are
// truncated to toolResultCap bytes each; zero keeps the budget default.
func (s *Store) Window(ctx context.Context, threadID string, toolResultCap int) (budget.Window, error) {
	msgs, err := s.Messages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if toolResultCap <= 0 {
		toolResultCap = budget.DefaultToolResultCap
	}

	w := make(budget.Window, 0, len(msgs))
	for _, m := range msgs {
		turn := budget.Turn{Role: m.Role, Text: m.Content}
		for _, inv := range m.ToolInvocations {
			inv.Result = budget.TruncateToolResult(inv.Result, toolResultCap)
			if data, err := json.Marshal(inv); err == nil {
				turn.ToolPayloads = append(turn.ToolPayloads, data)
			}
		}
		w = append(w, turn)
	}
	return w, nil
}

// ToMessages renders a window as chat messages. Tool payloads are appended to
// the turn's text since the original tool calls are not replayed.
func ToMessages(w budget.Window) []*schema.Message {
	out := make([]*schema.Message, 0, len(w))
	for _, t := range w {
		text := t.Text
		if len(t.ToolPayloads) > 0 {
			var b strings.Builder
			b.WriteString(text)
			b.WriteString("\n\n[tool activity]")
			for _, p := range t.ToolPayloads {
				b.WriteString("\n")
				b.Write(p)
			}
			text = b.String()
		}
		switch t.Role {
		case RoleUser:
			out = append(out, schema.UserMessage(text))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(text, nil))
		case RoleSystem:
			out = append(out, schema.SystemMessage(text))
		}
	}
	return out
}
