package budget

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicOracle counts tokens with the Anthropic count_tokens endpoint.
type AnthropicOracle struct {
	client anthropic.Client
	model  string
}

// NewAnthropicOracle creates an oracle for model. opts carry the credentials.
func NewAnthropicOracle(model string, opts ...option.RequestOption) *AnthropicOracle {
	return &AnthropicOracle{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Count returns the input token count the API reports for w.
func (o *AnthropicOracle) Count(ctx context.Context, w Window) (int, error) {
	msgs := anthropicMessages(w)
	if len(msgs) == 0 {
		return 0, nil
	}
	resp, err := o.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(o.model),
		Messages: msgs,
	})
	if err != nil {
		return 0, fmt.Errorf("anthropic count tokens: %w", err)
	}
	return int(resp.InputTokens), nil
}

// anthropicMessages renders a window as alternating user/assistant text
// messages starting with a user turn, as the API requires. Tool payloads are
// inlined as text; the count stays exact for the text actually sent.
func anthropicMessages(w Window) []anthropic.MessageParam {
	type block struct {
		assistant bool
		text      strings.Builder
	}
	var blocks []*block
	for _, t := range w {
		text := renderTurn(t)
		if text == "" {
			continue
		}
		assistant := t.Role == "assistant"
		if len(blocks) == 0 && assistant {
			b := &block{}
			b.text.WriteString("(earlier conversation omitted)")
			blocks = append(blocks, b)
		}
		if n := len(blocks); n > 0 && blocks[n-1].assistant == assistant {
			blocks[n-1].text.WriteString("\n\n")
			blocks[n-1].text.WriteString(text)
			continue
		}
		b := &block{assistant: assistant}
		b.text.WriteString(text)
		blocks = append(blocks, b)
	}

	out := make([]anthropic.MessageParam, 0, len(blocks))
	for _, b := range blocks {
		if b.assistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(b.text.String())))
		} else {
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(b.text.String())))
		}
	}
	return out
}

func renderTurn(t Turn) string {
	parts := make([]string, 0, 1+len(t.ToolPayloads))
	if strings.TrimSpace(t.Text) != "" {
		parts = append(parts, t.Text)
	}
	for _, p := range t.ToolPayloads {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, "\n")
}
