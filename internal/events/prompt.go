package events

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrPromptCancelled is returned when the user dismisses a prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")

type PromptRequestPayload struct {
	Token    string `json:"token"`
	Question string `json:"question"`
	Agent    string `json:"agent,omitempty"`
}

func (PromptRequestPayload) EventType() EventType { return EventPromptRequest }

type PromptResponsePayload struct {
	Token     string `json:"token"`
	Value     string `json:"value"`
	Cancelled bool   `json:"cancelled"`
}

func (PromptResponsePayload) EventType() EventType { return EventPromptResponse }

// Prompter publishes prompt_request events and blocks until Respond is called
// with the matching token.
type Prompter struct {
	pub     Publisher
	mu      sync.Mutex
	pending map[string]chan PromptResponsePayload
}

// NewPrompter creates a Prompter publishing on pub.
func NewPrompter(pub Publisher) *Prompter {
	return &Prompter{
		pub:     pub,
		pending: make(map[string]chan PromptResponsePayload),
	}
}

// Ask publishes the question for threadID and waits for an answer.
func (p *Prompter) Ask(ctx context.Context, threadID, question string) (string, error) {
	token := uuid.New().String()
	ch := make(chan PromptResponsePayload, 1)

	p.mu.Lock()
	p.pending[token] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, token)
		p.mu.Unlock()
	}()

	p.pub.Publish(NewTypedEvent(SourceOrchestrator, threadID, PromptRequestPayload{
		Token:    token,
		Question: question,
		Agent:    AgentFromContext(ctx),
	}))

	select {
	case resp := <-ch:
		if resp.Cancelled {
			return "", ErrPromptCancelled
		}
		return resp.Value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Respond delivers an answer. It reports false when no prompt waits on the token.
func (p *Prompter) Respond(resp PromptResponsePayload) bool {
	p.mu.Lock()
	ch, ok := p.pending[resp.Token]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- resp:
		return true
	default:
		return false
	}
}

// Pending returns the number of prompts awaiting an answer.
func (p *Prompter) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
