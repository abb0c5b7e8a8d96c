package orchestrator

import (
	"errors"
	"strings"
	"testing"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/dispatch"
	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
)

func newStageTools(t *testing.T) (*stageTools, *sessions.Store) {
	t.Helper()
	store := sessions.NewStore(sessions.NewMemoryRepository(), events.NewRecorder(nil))
	sess := store.CreateSession(t.Context(), "th_1")
	p := New(Deps{Store: store}, Config{})
	return &stageTools{p: p, sessionID: sess.ID, threadID: "th_1"}, store
}

func TestCreateTaskTool(t *testing.T) {
	st, store := newStageTools(t)
	ctx := t.Context()

	out, err := st.createTask().InvokableRun(ctx, `{"title": "write report"}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Created execute task ") {
		t.Errorf("unexpected output %q", out)
	}
	if pending := store.PendingExecuteTasks(st.sessionID); len(pending) != 1 || pending[0].Title != "write report" {
		t.Errorf("expected one staged execute task, got %v", pending)
	}

	for _, args := range []string{`{"title": " "}`, `{"title": "x", "type": "deploy"}`, `not json`} {
		if _, err := st.createTask().InvokableRun(ctx, args); err == nil {
			t.Errorf("%s: expected error", args)
		}
	}
}

func TestCreateTaskMissingSessionIsFatal(t *testing.T) {
	st, _ := newStageTools(t)
	st.sessionID = "sess_missing"

	_, err := st.createTask().InvokableRun(t.Context(), `{"title": "x"}`)
	var fatal *agent.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected a fatal error, got %v", err)
	}
	if !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestUpdateAndViewTasks(t *testing.T) {
	st, store := newStageTools(t)
	ctx := t.Context()
	task, _ := store.AddTask(ctx, st.sessionID, "t1", "details", sessions.TaskExplore)

	out, err := st.viewTasks().InvokableRun(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, task.ID) || !strings.Contains(out, `"status":"staged"`) {
		t.Errorf("unexpected view %q", out)
	}

	tests := []struct {
		args    string
		prefix  string
		wantErr bool
	}{
		{`{"task_id": "` + task.ID + `", "status": "done", "result": "found it"}`, "Task " + task.ID + " is now done", false},
		{`{"task_id": "` + task.ID + `", "status": "in_progress"}`, "No change", false},
		{`{"task_id": "` + task.ID + `", "status": "paused"}`, "", true},
	}
	for _, tt := range tests {
		out, err := st.updateTask().InvokableRun(ctx, tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: unexpected error %v", tt.args, err)
			continue
		}
		if !strings.HasPrefix(out, tt.prefix) {
			t.Errorf("%s: expected prefix %q, got %q", tt.args, tt.prefix, out)
		}
	}
}

func TestViewTasksEmpty(t *testing.T) {
	st, _ := newStageTools(t)
	out, err := st.viewTasks().InvokableRun(t.Context(), "{}")
	if err != nil || out != "No tasks yet." {
		t.Errorf("expected empty view, got %q %v", out, err)
	}
}

func TestFanOutToolsValidateInput(t *testing.T) {
	st, _ := newStageTools(t)
	ctx := t.Context()
	if _, err := st.explore().InvokableRun(ctx, `{"prompts": ["", "  "]}`); err == nil {
		t.Error("expected explore to reject blank prompts")
	}
	if _, err := st.execute().InvokableRun(ctx, `{"assignments": [{"task_ids": []}]}`); err == nil {
		t.Error("expected execute to reject empty assignments")
	}
}

func TestFormatOutcomes(t *testing.T) {
	got := formatOutcomes("Exploration", []string{"q1", "q2"}, []dispatch.Outcome{
		{Success: true, Summary: "answer"},
		{Summary: "Error: boom", Errors: []string{"boom"}},
	})
	want := "### Exploration 1 (ok): q1\nanswer\n\n### Exploration 2 (failed): q2\nError: boom\nerrors: [\"boom\"]"
	if got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
}
