package callbacks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

type observation struct {
	kind, name, status string
	in, out            int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveModelCall(model, status string, in, out int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{"model", model, status, in, out})
}

func (r *recordingObserver) ObserveToolCall(tool, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{kind: "tool", name: tool, status: status})
}

func TestHandlerModelCalls(t *testing.T) {
	rec := &recordingObserver{}
	h := NewHandler(rec)
	info := &callbacks.RunInfo{Name: "claude", Component: components.ComponentOfChatModel}
	ctx := context.Background()

	h.OnStart(ctx, info, &model.CallbackInput{Messages: []*schema.Message{schema.UserMessage("hi")}})
	h.OnEnd(ctx, info, &model.CallbackOutput{Message: &schema.Message{
		Role:         schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 12, CompletionTokens: 3}},
	}})
	h.OnError(ctx, info, errors.New("overloaded"))

	want := []observation{
		{"model", "claude", "ok", 12, 3},
		{"model", "claude", "error", 0, 0},
	}
	if len(rec.obs) != len(want) {
		t.Fatalf("expected %d observations, got %v", len(want), rec.obs)
	}
	for i := range want {
		if rec.obs[i] != want[i] {
			t.Errorf("observation %d: expected %+v, got %+v", i, want[i], rec.obs[i])
		}
	}
}

func TestHandlerToolCalls(t *testing.T) {
	rec := &recordingObserver{}
	h := NewHandler(rec)
	info := &callbacks.RunInfo{Name: "read_file", Component: components.ComponentOfTool}
	ctx := context.Background()

	h.OnStart(ctx, info, &tool.CallbackInput{ArgumentsInJSON: `{"path": "a"}`})
	h.OnEnd(ctx, info, &tool.CallbackOutput{Response: "content"})
	h.OnError(ctx, info, errors.New("denied"))

	if len(rec.obs) != 2 || rec.obs[0].status != "ok" || rec.obs[1].status != "error" || rec.obs[1].name != "read_file" {
		t.Errorf("unexpected observations %v", rec.obs)
	}
}

func TestTruncatePayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 100, "hello"},
		{"exact", strings.Repeat("a", 50), 50, strings.Repeat("a", 50)},
		{"long", strings.Repeat("x", 200), 100, strings.Repeat("x", 100) + "... (truncated)"},
		{"zero max", "hello world", 0, "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncatePayload(tt.in, tt.max); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
