package events

import (
	"context"
	"testing"
)

func TestThreadIDContext(t *testing.T) {
	ctx := context.Background()
	if got := ThreadIDFromContext(ctx); got != "" {
		t.Errorf("expected empty thread id, got %q", got)
	}
	ctx = ContextWithThreadID(ctx, "th_42")
	if got := ThreadIDFromContext(ctx); got != "th_42" {
		t.Errorf("expected th_42, got %q", got)
	}
}

func TestAgentContext(t *testing.T) {
	ctx := ContextWithAgent(context.Background(), "planner")
	ctx = ContextWithAgent(ctx, "explorer-1")
	if got := AgentFromContext(ctx); got != "explorer-1" {
		t.Errorf("expected innermost agent explorer-1, got %q", got)
	}
}
