package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
)

// invoke calls the tool named name from req's capability set.
func invoke(ctx context.Context, req agent.Request, name, args string) (string, error) {
	for _, t := range req.Tools {
		info, err := t.Info(ctx)
		if err != nil {
			return "", err
		}
		if info.Name == name {
			return t.InvokableRun(ctx, args)
		}
	}
	return "", fmt.Errorf("tool %s not offered to %s", name, req.Name)
}

func toolNames(ctx context.Context, ts []tool.InvokableTool) []string {
	var names []string
	for _, t := range ts {
		info, _ := t.Info(ctx)
		names = append(names, info.Name)
	}
	return names
}

type fixture struct {
	store *sessions.Store
	rec   *events.Recorder
	sess  *sessions.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := events.NewRecorder(nil)
	store := sessions.NewStore(sessions.NewMemoryRepository(), rec)
	return &fixture{store: store, rec: rec, sess: store.CreateSession(t.Context(), "th_1")}
}

func (f *fixture) dispatcher(r agent.RunnerFunc, maxWorkers int) *Dispatcher {
	return New(Config{Runner: r, Store: f.store, Publisher: f.rec, MaxWorkers: maxWorkers})
}

func TestExploreOrderAndFailures(t *testing.T) {
	f := newFixture(t)
	prompts := []string{"p0", "p1", "p2", "p3", "p4", "p5"}
	failing := map[string]bool{"p1": true, "p4": true}

	d := f.dispatcher(func(ctx context.Context, req agent.Request) (agent.Result, error) {
		prompt := req.Messages[0].Content
		// later requests finish first
		idx := int(prompt[1] - '0')
		time.Sleep(time.Duration(len(prompts)-idx) * 3 * time.Millisecond)
		if failing[prompt] {
			return agent.Result{}, errors.New("model unavailable")
		}
		if _, err := invoke(ctx, req, submitFindings, fmt.Sprintf(`{"findings": "answer %s"}`, prompt)); err != nil {
			t.Errorf("submit_findings: %v", err)
		}
		return agent.Result{}, nil
	}, 0)

	outcomes, err := d.Explore(t.Context(), f.sess.ID, "th_1", prompts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != len(prompts) {
		t.Fatalf("expected %d outcomes, got %d", len(prompts), len(outcomes))
	}
	failures := 0
	for i, o := range outcomes {
		if !o.Success {
			failures++
			if !failing[prompts[i]] {
				t.Errorf("outcome %d: unexpected failure %q", i, o.Summary)
			}
			if !strings.HasPrefix(o.Summary, "Error:") || len(o.Errors) != 1 {
				t.Errorf("outcome %d: expected synthesized error, got %+v", i, o)
			}
			continue
		}
		if want := "answer " + prompts[i]; o.Summary != want {
			t.Errorf("outcome %d: expected %q, got %q", i, want, o.Summary)
		}
	}
	if failures != 2 {
		t.Errorf("expected 2 failures, got %d", failures)
	}
}

func TestExploreEventOrdering(t *testing.T) {
	f := newFixture(t)
	prompts := []string{"a", "b", "c", "d"}
	d := f.dispatcher(func(_ context.Context, req agent.Request) (agent.Result, error) {
		if req.Messages[0].Content == "a" {
			time.Sleep(20 * time.Millisecond)
		}
		return agent.Result{Text: "raw", Transcript: []string{"raw"}}, nil
	}, 0)

	if _, err := d.Explore(t.Context(), f.sess.ID, "th_1", prompts); err != nil {
		t.Fatal(err)
	}

	evs := f.rec.OfType(events.EventExplorationStarted, events.EventExplorationWorkerStarted,
		events.EventExplorationWorkerDone, events.EventExplorationComplete)
	if len(evs) != 2+2*len(prompts) {
		t.Fatalf("expected %d events, got %d", 2+2*len(prompts), len(evs))
	}
	if evs[0].Type != events.EventExplorationStarted {
		t.Errorf("expected batch start first, got %s", evs[0].Type)
	}
	for i := range prompts {
		ev := evs[1+i]
		if ev.Type != events.EventExplorationWorkerStarted {
			t.Fatalf("event %d: expected worker_started, got %s", 1+i, ev.Type)
		}
		p, _ := events.ExtractPayload[events.WorkerStartedPayload](ev)
		if p.Index != i {
			t.Errorf("expected worker_started index %d, got %d", i, p.Index)
		}
	}
	last := evs[len(evs)-1]
	complete, ok := events.GetBatchCompletePayload(last)
	if !ok || last.Type != events.EventExplorationComplete {
		t.Fatalf("expected batch complete last, got %s", last.Type)
	}
	if len(complete.Outcomes) != len(prompts) {
		t.Errorf("expected %d outcomes in complete event, got %d", len(prompts), len(complete.Outcomes))
	}
	// "a" is the slowest worker, so its done event is the last one
	done, _ := events.GetWorkerDonePayload(evs[len(evs)-2])
	if done.Index != 0 {
		t.Errorf("expected slow worker 0 to finish last, got %d", done.Index)
	}
}

func TestExploreScenarioWorkerThrows(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(func(_ context.Context, req agent.Request) (agent.Result, error) {
		if req.Name == "explorer-2" {
			panic("tool crashed")
		}
		return agent.Result{Transcript: []string{"found " + req.Messages[0].Content}}, nil
	}, 2)

	outcomes, err := d.Explore(t.Context(), f.sess.ID, "th_1", []string{"x", "y", "z"})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[1].Success || !strings.Contains(outcomes[1].Summary, "tool crashed") {
		t.Errorf("expected synthesized error for worker 2, got %+v", outcomes[1])
	}
	if !outcomes[0].Success || outcomes[2].Summary != "found z" {
		t.Errorf("expected siblings to succeed, got %+v %+v", outcomes[0], outcomes[2])
	}
	complete := f.rec.OfType(events.EventExplorationComplete)
	if len(complete) != 1 {
		t.Fatalf("expected 1 complete event, got %d", len(complete))
	}
	p, _ := events.GetBatchCompletePayload(complete[0])
	if len(p.Outcomes) != 3 || p.Outcomes[1].Success {
		t.Errorf("unexpected complete payload %+v", p.Outcomes)
	}
}

func TestExploreFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		res     agent.Result
		err     error
		success bool
		summary string
	}{
		{"raw text", agent.Result{Text: "b", Transcript: []string{"a", "b"}}, nil, true, "a\n\nb"},
		{"step limit keeps text", agent.Result{Transcript: []string{"partial"}}, agent.ErrStepLimit, true, "partial"},
		{"step limit without text", agent.Result{}, fmt.Errorf("wrapped: %w", agent.ErrStepLimit), false, "Error: explorer ran out of steps without findings"},
		{"nothing", agent.Result{}, nil, false, "Error: explorer produced no findings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.dispatcher(func(context.Context, agent.Request) (agent.Result, error) { return tt.res, tt.err }, 0)
			outcomes, err := d.Explore(t.Context(), f.sess.ID, "th_1", []string{"q"})
			if err != nil {
				t.Fatal(err)
			}
			if outcomes[0].Success != tt.success || outcomes[0].Summary != tt.summary {
				t.Errorf("expected {%v %q}, got %+v", tt.success, tt.summary, outcomes[0])
			}
		})
	}
}

func TestExploreCapabilities(t *testing.T) {
	f := newFixture(t)
	var got agent.Request
	d := f.dispatcher(func(_ context.Context, req agent.Request) (agent.Result, error) {
		got = req
		return agent.Result{Transcript: []string{"ok"}}, nil
	}, 0)
	if _, err := d.Explore(t.Context(), f.sess.ID, "th_1", []string{"q"}); err != nil {
		t.Fatal(err)
	}
	names := toolNames(t.Context(), got.Tools)
	if len(names) != 1 || names[0] != submitFindings {
		t.Errorf("expected only submit_findings without a registry, got %v", names)
	}
	if got.MaxSteps != DefaultExploreMaxSteps {
		t.Errorf("expected %d steps, got %d", DefaultExploreMaxSteps, got.MaxSteps)
	}
	if len(got.ReturnDirectly) != 1 || got.ReturnDirectly[0] != submitFindings {
		t.Errorf("expected submit_findings to end the run, got %v", got.ReturnDirectly)
	}
}

func TestNestedDispatchRejected(t *testing.T) {
	f := newFixture(t)
	var d *Dispatcher
	var nestedErr error
	d = f.dispatcher(func(ctx context.Context, _ agent.Request) (agent.Result, error) {
		_, nestedErr = d.Explore(ctx, f.sess.ID, "th_1", []string{"deeper"})
		return agent.Result{Transcript: []string{"ok"}}, nil
	}, 0)

	if _, err := d.Explore(t.Context(), f.sess.ID, "th_1", []string{"q"}); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(nestedErr, ErrNested) {
		t.Errorf("expected ErrNested, got %v", nestedErr)
	}
}

func TestMaxWorkersBoundsConcurrency(t *testing.T) {
	f := newFixture(t)
	var running, peak atomic.Int32
	d := f.dispatcher(func(context.Context, agent.Request) (agent.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return agent.Result{Transcript: []string{"ok"}}, nil
	}, 2)

	outcomes, err := d.Explore(t.Context(), f.sess.ID, "th_1", make([]string, 8))
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 8 {
		t.Errorf("expected 8 outcomes, got %d", len(outcomes))
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent workers, got %d", peak.Load())
	}
}

func TestExecuteUpdatesTasksAndReports(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	var ids []string
	for _, title := range []string{"write intro", "write body", "write outro"} {
		task, err := f.store.AddTask(ctx, f.sess.ID, title, "section "+title, sessions.TaskExecute)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, task.ID)
	}

	var mu sync.Mutex
	briefings := map[string]string{}
	d := f.dispatcher(func(ctx context.Context, req agent.Request) (agent.Result, error) {
		mu.Lock()
		briefings[req.Name] = req.Messages[0].Content
		mu.Unlock()
		for _, id := range ids {
			if !strings.Contains(req.Messages[0].Content, id) {
				continue
			}
			if _, err := invoke(ctx, req, updateTaskStatus, fmt.Sprintf(`{"task_id": %q, "status": "in_progress"}`, id)); err != nil {
				return agent.Result{}, err
			}
			if _, err := invoke(ctx, req, updateTaskStatus, fmt.Sprintf(`{"task_id": %q, "status": "done", "result": "ok"}`, id)); err != nil {
				return agent.Result{}, err
			}
		}
		if _, err := invoke(ctx, req, reportCompletion, `{"success": true, "summary": "all written"}`); err != nil {
			return agent.Result{}, err
		}
		return agent.Result{}, nil
	}, 0)

	outcomes, err := d.Execute(ctx, f.sess.ID, "th_1", []ExecuteAssignment{
		{TaskIDs: ids[:2], Context: "use a formal tone"},
		{TaskIDs: ids[2:]},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, o := range outcomes {
		if !o.Success || o.Summary != "all written" {
			t.Errorf("outcome %d: unexpected %+v", i, o)
		}
	}
	for _, s := range f.store.TasksSummary(f.sess.ID) {
		if s.Status != sessions.TaskDone {
			t.Errorf("expected %q done, got %s", s.Title, s.Status)
		}
	}
	if b := briefings["executor-1"]; !strings.Contains(b, "write intro") || !strings.Contains(b, "use a formal tone") {
		t.Errorf("unexpected briefing %q", b)
	}
	if n := len(f.rec.OfType(events.EventExecutionWorkerDone)); n != 2 {
		t.Errorf("expected 2 execution_worker_done, got %d", n)
	}
}

func TestExecuteWithoutReport(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	task, err := f.store.AddTask(ctx, f.sess.ID, "t", "", sessions.TaskExecute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		finish  bool
		success bool
	}{
		{"tasks left staged", false, false},
		{"tasks done", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.dispatcher(func(ctx context.Context, req agent.Request) (agent.Result, error) {
				if tt.finish {
					if _, err := invoke(ctx, req, updateTaskStatus, fmt.Sprintf(`{"task_id": %q, "status": "done"}`, task.ID)); err != nil {
						return agent.Result{}, err
					}
				}
				return agent.Result{Text: "finished"}, nil
			}, 0)
			outcomes, err := d.Execute(ctx, f.sess.ID, "th_1", []ExecuteAssignment{{TaskIDs: []string{task.ID}}})
			if err != nil {
				t.Fatal(err)
			}
			if outcomes[0].Success != tt.success || outcomes[0].Summary != "finished" {
				t.Errorf("expected success=%v, got %+v", tt.success, outcomes[0])
			}
		})
	}
}

func TestUpdateTaskStatusTool(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	task, err := f.store.AddTask(ctx, f.sess.ID, "t", "", sessions.TaskExecute)
	if err != nil {
		t.Fatal(err)
	}
	d := f.dispatcher(nil, 0)
	tl := d.updateTaskStatusTool(f.sess.ID)

	if _, err := tl.InvokableRun(ctx, `{"task_id": "x", "status": "finished"}`); err == nil {
		t.Error("expected invalid status error")
	}
	out, err := tl.InvokableRun(ctx, `{"task_id": "missing", "status": "done"}`)
	if err != nil || !strings.HasPrefix(out, "No change") {
		t.Errorf("expected tolerant no-op, got %q %v", out, err)
	}
	out, err = tl.InvokableRun(ctx, fmt.Sprintf(`{"task_id": %q, "status": "cancelled", "result": "not needed"}`, task.ID))
	if err != nil || !strings.Contains(out, "cancelled") {
		t.Errorf("expected cancelled, got %q %v", out, err)
	}
	got, _ := f.store.Get(f.sess.ID)
	if got.Tasks[task.ID].Result != "not needed" {
		t.Errorf("expected result recorded, got %v", got.Tasks[task.ID].Result)
	}
}
