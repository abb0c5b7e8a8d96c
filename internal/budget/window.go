// Package budget fits conversation history into a token budget.
package budget

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"
)

// Turn is one entry of a conversation window.
type Turn struct {
	Role         string            `json:"role"`
	Text         string            `json:"text"`
	ToolPayloads []json.RawMessage `json:"tool_payloads,omitempty"`
}

// Window is an ordered sequence of turns, oldest first. Functions in this
// package never mutate a Window in place.
type Window []Turn

// Suffix returns the last n turns of w.
func (w Window) Suffix(n int) Window {
	if n >= len(w) {
		return w
	}
	if n <= 0 {
		return w[len(w):]
	}
	return w[len(w)-n:]
}

// FromMessages converts eino messages to a Window. Tool calls of assistant
// messages and the content of tool messages become structured payloads.
func FromMessages(msgs []*schema.Message) Window {
	w := make(Window, 0, len(msgs))
	for _, m := range msgs {
		turn := Turn{Role: string(m.Role), Text: m.Content}
		for _, tc := range m.ToolCalls {
			if data, err := json.Marshal(tc); err == nil {
				turn.ToolPayloads = append(turn.ToolPayloads, data)
			}
		}
		if m.Role == schema.Tool {
			turn.Text = ""
			if data, err := json.Marshal(m.Content); err == nil {
				turn.ToolPayloads = append(turn.ToolPayloads, data)
			}
		}
		w = append(w, turn)
	}
	return w
}
