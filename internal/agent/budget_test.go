package agent

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/anonx3247/aios-chat-sub000/internal/budget"
)

func longText(n int) string { return strings.Repeat("a", n) }

func TestTrimMessagesKeepsSystemAndSuffix(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage("you plan"),
		schema.UserMessage(longText(2000)),
		schema.AssistantMessage(longText(2000), nil),
		schema.UserMessage("short"),
		schema.AssistantMessage("ok", nil),
	}
	cfg := BudgetConfig{Target: 300}
	got := TrimMessages(t.Context(), cfg, msgs)

	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].Role != schema.System {
		t.Errorf("expected system message first, got %s", got[0].Role)
	}
	if got[1].Content != "short" || got[2].Content != "ok" {
		t.Errorf("expected newest suffix, got %q %q", got[1].Content, got[2].Content)
	}
}

func TestTrimMessagesSubtractsSystemAndTools(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage(longText(3200)),
		schema.UserMessage(longText(2000)),
		schema.UserMessage("short"),
		schema.AssistantMessage("ok", nil),
	}
	tools := []*schema.ToolInfo{{Name: "view_tasks", Desc: longText(400)}}

	got := TrimMessages(t.Context(), BudgetConfig{Target: 1000, Tools: tools}, msgs)
	if len(got) != 3 {
		t.Fatalf("expected system plus 2 newest messages, got %d", len(got))
	}
	if got[1].Content != "short" {
		t.Errorf("expected the long user message to be trimmed, got %q", got[1].Content)
	}

	got = TrimMessages(t.Context(), BudgetConfig{Target: 2000}, msgs)
	if len(got) != len(msgs) {
		t.Errorf("expected everything to fit a larger budget, got %d messages", len(got))
	}
}

func TestTrimMessagesKeepsToolCallWithResult(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage(longText(4000)),
		schema.AssistantMessage("", []schema.ToolCall{{ID: "c1", Function: schema.FunctionCall{Name: "view_tasks", Arguments: longText(4000)}}}),
		schema.ToolMessage("[]", "c1"),
		schema.AssistantMessage("done", nil),
	}
	got := TrimMessages(t.Context(), BudgetConfig{Target: 20}, msgs)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].Role != schema.Assistant || len(got[0].ToolCalls) != 1 {
		t.Errorf("expected the tool call to lead the suffix, got %s with %d calls", got[0].Role, len(got[0].ToolCalls))
	}
	if got[1].Role != schema.Tool || got[2].Content != "done" {
		t.Errorf("expected tool result then answer, got %s %q", got[1].Role, got[2].Content)
	}
}

func TestTrimMessagesDropsOrphanToolResult(t *testing.T) {
	msgs := []*schema.Message{
		schema.ToolMessage(longText(4000), "c0"),
		schema.ToolMessage("x", "c1"),
		schema.AssistantMessage("done", nil),
	}
	got := TrimMessages(t.Context(), BudgetConfig{Target: 20}, msgs)
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].Role != schema.Assistant {
		t.Errorf("expected assistant message, got %s", got[0].Role)
	}
}

func TestTrimMessagesWithinBudget(t *testing.T) {
	msgs := []*schema.Message{schema.UserMessage("hi"), schema.AssistantMessage("hello", nil)}
	got := TrimMessages(t.Context(), BudgetConfig{Target: 1000}, msgs)
	if len(got) != 2 {
		t.Errorf("expected untouched transcript, got %d messages", len(got))
	}
}

func TestTrimMessagesDisabled(t *testing.T) {
	msgs := []*schema.Message{schema.UserMessage(longText(10000)), schema.UserMessage(longText(10000)), schema.UserMessage("x")}
	got := TrimMessages(t.Context(), BudgetConfig{Budgeter: budget.Budgeter{}}, msgs)
	if len(got) != 3 {
		t.Errorf("expected no trimming with zero target, got %d", len(got))
	}
}
