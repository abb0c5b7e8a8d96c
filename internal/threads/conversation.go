package threads

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
)

// SubscribeFunc matches events.Bus.SubscribeThread.
type SubscribeFunc func(threadID string, handler events.Subscriber, eventTypes ...events.EventType) func()

// Conversations records orchestration runs as thread messages: the request
// as a user message and, once the run's result is published, the summary as
// an assistant message carrying the tool calls observed on the thread.
type Conversations struct {
	store         *Store
	subscribe     SubscribeFunc
	toolResultCap int
}

// NewConversations creates a recorder over store, listening through subscribe.
func NewConversations(store *Store, subscribe SubscribeFunc, toolResultCap int) *Conversations {
	return &Conversations{store: store, subscribe: subscribe, toolResultCap: toolResultCap}
}

// History returns the thread's messages rendered for a model.
func (c *Conversations) History(ctx context.Context, threadID string) ([]*schema.Message, error) {
	w, err := c.store.Window(ctx, threadID, c.toolResultCap)
	if err != nil {
		return nil, err
	}
	return ToMessages(w), nil
}

// Begin saves request on the thread (creating the thread if needed) and
// starts collecting tool calls until the next orchestration result.
func (c *Conversations) Begin(ctx context.Context, threadID, request string) error {
	if _, err := c.store.EnsureThread(ctx, threadID, titleFrom(request)); err != nil {
		return err
	}
	if _, err := c.store.SaveMessage(ctx, threadID, RoleUser, request, nil); err != nil {
		return err
	}

	ex := &exchange{
		store:       c.store,
		threadID:    threadID,
		calls:       make(map[string]int),
		unsubscribe: make(chan func(), 1),
	}
	ex.unsubscribe <- c.subscribe(threadID, ex.observe,
		events.EventToolCall, events.EventToolResult, events.EventOrchestrationResult)
	return nil
}

type exchange struct {
	store    *Store
	threadID string

	mu          sync.Mutex
	invocations []ToolInvocation
	calls       map[string]int
	done        bool
	unsubscribe chan func()
}

func (x *exchange) observe(e events.Event) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.done {
		return
	}

	switch e.Type {
	case events.EventToolCall:
		p, ok := events.ExtractPayload[events.ToolCallPayload](e)
		if !ok {
			return
		}
		inv := ToolInvocation{ToolCallID: p.CallID, ToolName: p.Name, Agent: p.Agent, State: "call"}
		if json.Valid([]byte(p.Arguments)) {
			inv.Args = json.RawMessage(p.Arguments)
		}
		if p.CallID != "" {
			x.calls[p.CallID] = len(x.invocations)
		}
		x.invocations = append(x.invocations, inv)

	case events.EventToolResult:
		p, ok := events.ExtractPayload[events.ToolResultPayload](e)
		if !ok {
			return
		}
		if i, ok := x.calls[p.CallID]; ok && p.CallID != "" {
			x.invocations[i].Result = p.Result
			x.invocations[i].State = "result"
			return
		}
		x.invocations = append(x.invocations, ToolInvocation{
			ToolCallID: p.CallID, ToolName: p.Name, Agent: p.Agent, Result: p.Result, State: "result",
		})

	case events.EventOrchestrationResult:
		p, ok := events.ExtractPayload[events.OrchestrationResultPayload](e)
		if !ok {
			return
		}
		x.done = true
		content := p.Summary
		if content == "" && p.Error != "" {
			content = "Error: " + p.Error
		}
		if _, err := x.store.SaveMessage(context.Background(), x.threadID, RoleAssistant, content, x.invocations); err != nil {
			slog.Warn("save orchestration summary", "thread", x.threadID, "error", err)
		}
		(<-x.unsubscribe)()
	}
}

func titleFrom(request string) string {
	const max = 60
	r := []rune(request)
	if len(r) <= max {
		return request
	}
	return string(r[:max]) + "…"
}
