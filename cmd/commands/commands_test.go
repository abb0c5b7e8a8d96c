package commands

import (
	"strings"
	"testing"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCommand()
	want := []string{"serve", "run", "attach", "session", "threads", "secrets", "status", "mcp-serve"}
	have := map[string]bool{}
	for _, c := range root.Commands {
		have[c.Name] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestRenderEvent(t *testing.T) {
	tests := []struct {
		name  string
		event events.Event
		want  string
	}{
		{
			name: "task created",
			event: events.NewTypedEvent(events.SourceStore, "t", events.TaskCreatedPayload{
				Task: events.TaskRecord{ID: "task_1", Title: "Write tests", Type: "execute"},
			}),
			want: "Write tests",
		},
		{
			name: "worker failed",
			event: events.NewTypedEvent(events.SourceDispatcher, "t", events.WorkerDonePayload{
				Kind: events.BatchExecution, Index: 2, Outcome: events.OutcomeRecord{Summary: "disk full\nmore"},
			}),
			want: "disk full",
		},
		{
			name: "tool call",
			event: events.NewTypedEvent(events.SourceDispatcher, "t", events.ToolCallPayload{
				Agent: "explorer", Name: "read_file", Arguments: `{"path": "go.mod"}`,
			}),
			want: "read_file",
		},
		{
			name:  "prompt",
			event: events.NewTypedEvent(events.SourceOrchestrator, "t", events.PromptRequestPayload{Question: "Which branch?"}),
			want:  "Which branch?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderEvent(tt.event)
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in %q", tt.want, got)
			}
		})
	}

	stream := events.NewTypedEvent(events.SourceDispatcher, "t", events.AssistantStreamPayload{Content: "partial"})
	if got := renderEvent(stream); got != "" {
		t.Errorf("expected stream deltas to be hidden, got %q", got)
	}
}

func TestWorkerFailedShowsFirstLineOnly(t *testing.T) {
	e := events.NewTypedEvent(events.SourceDispatcher, "t", events.WorkerDonePayload{
		Kind: events.BatchExecution, Outcome: events.OutcomeRecord{Summary: "disk full\nmore"},
	})
	if got := renderEvent(e); strings.Contains(got, "more") {
		t.Errorf("expected only the first summary line, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"a  b\n c", 10, "a b c"},
		{"héllo world", 5, "héllo…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d): expected %q, got %q", tt.in, tt.n, tt.want, got)
		}
	}
}

func TestResultFromEvent(t *testing.T) {
	e := events.NewTypedEvent(events.SourceOrchestrator, "t", events.OrchestrationResultPayload{
		SessionID: "s-1",
		Success:   true,
		Summary:   "All done",
		TasksSummary: []map[string]any{
			{"title": "Write tests", "type": "execute", "status": "done"},
		},
	})
	res, ok := resultFromEvent(e)
	if !ok {
		t.Fatal("expected result to decode")
	}
	if res.SessionID != "s-1" || !res.Success || res.Summary != "All done" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.TasksSummary) != 1 || res.TasksSummary[0].Status != sessions.TaskDone {
		t.Errorf("unexpected tasks %+v", res.TasksSummary)
	}

	out := renderResult(res)
	if !strings.Contains(out, "All done") || !strings.Contains(out, "Write tests") {
		t.Errorf("expected summary and tasks in output, got %q", out)
	}
}
