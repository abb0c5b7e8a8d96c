// Package orchestrator runs the two-stage Plan → Execute pipeline that turns
// one user request into a supervised plan and carries it out.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/dispatch"
	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/tools"
)

const (
	DefaultPlanMaxSteps    = 15
	DefaultExecuteMaxSteps = 30

	stagePlan    = "plan"
	stageExecute = "execute"

	// ReasonExecutionIncomplete is recorded on tasks left unfinished by the Execute stage.
	ReasonExecutionIncomplete = "execution incomplete"
)

// ErrEmptyTask is returned when the request text is blank.
var ErrEmptyTask = errors.New("orchestrator: empty task description")

// Prompter blocks until the user answers a question on a thread.
type Prompter interface {
	Ask(ctx context.Context, threadID, question string) (string, error)
}

// Transcript keeps the conversation of a thread across runs.
type Transcript interface {
	// History returns earlier messages of the thread, oldest first.
	History(ctx context.Context, threadID string) ([]*schema.Message, error)
	// Begin records the request before the run starts.
	Begin(ctx context.Context, threadID, request string) error
}

// Deps are the collaborators of a Pipeline. Store, Runner and Dispatcher are required.
type Deps struct {
	Store      *sessions.Store
	Publisher  events.Publisher
	Runner     agent.Runner
	Dispatcher *dispatch.Dispatcher
	Tools      *tools.Registry
	// Prompter answers ask_user. Nil makes ask_user report that nobody is listening.
	Prompter Prompter
	// Transcript feeds thread history to the planner and records the run. May be nil.
	Transcript Transcript
	Metrics    *Metrics
}

// Config tunes the stages.
type Config struct {
	PlanMaxSteps    int
	ExecuteMaxSteps int
	// Tier forces "compact" or "full" instructions; empty derives it from ContextWindow.
	Tier          string
	ContextWindow int
}

// Result is the final outcome of one orchestration.
type Result struct {
	SessionID    string                 `json:"session_id" yaml:"session_id"`
	Success      bool                   `json:"success" yaml:"success"`
	Summary      string                 `json:"summary" yaml:"summary"`
	TasksSummary []sessions.TaskSummary `json:"tasks_summary" yaml:"tasks_summary"`
	Error        string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

// Pipeline owns the Plan and Execute stages.
type Pipeline struct {
	deps Deps
	cfg  Config
	tier Tier
}

// New creates a Pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	if cfg.PlanMaxSteps <= 0 {
		cfg.PlanMaxSteps = DefaultPlanMaxSteps
	}
	if cfg.ExecuteMaxSteps <= 0 {
		cfg.ExecuteMaxSteps = DefaultExecuteMaxSteps
	}
	return &Pipeline{deps: deps, cfg: cfg, tier: ResolveTier(cfg.Tier, cfg.ContextWindow)}
}

// StartOrchestration runs a request to completion on threadID. A previous
// session of the thread is discarded. creds override stored credentials for
// this run. The returned error is non-nil only when the run could not start;
// stage failures are reported in Result.
func (p *Pipeline) StartOrchestration(ctx context.Context, threadID, task string, creds secrets.Credentials) (Result, error) {
	run, err := p.Launch(ctx, threadID, task, creds)
	if err != nil {
		return Result{}, err
	}
	return run.Wait(), nil
}

// Run is an orchestration executing in the background.
type Run struct {
	SessionID string
	done      chan struct{}
	result    Result
}

// Done is closed when the run finishes.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes and returns its result.
func (r *Run) Wait() Result {
	<-r.done
	return r.result
}

// Launch creates the session synchronously and runs the pipeline in a goroutine.
func (p *Pipeline) Launch(ctx context.Context, threadID, task string, creds secrets.Credentials) (*Run, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}
	if threadID == "" {
		return nil, errors.New("orchestrator: empty thread id")
	}

	var history []*schema.Message
	if p.deps.Transcript != nil {
		var err error
		if history, err = p.deps.Transcript.History(ctx, threadID); err != nil {
			slog.Warn("load thread history", "thread", threadID, "error", err)
		}
		if err := p.deps.Transcript.Begin(ctx, threadID, task); err != nil {
			slog.Warn("record request", "thread", threadID, "error", err)
		}
	}

	sess := p.deps.Store.CreateSession(ctx, threadID)
	run := &Run{SessionID: sess.ID, done: make(chan struct{})}

	ctx = events.ContextWithThreadID(ctx, threadID)
	ctx = secrets.WithCredentials(ctx, creds)
	go func() {
		defer close(run.done)
		run.result = p.run(ctx, sess, task, history)
	}()
	return run, nil
}

// SessionSnapshot returns the current session of threadID.
func (p *Pipeline) SessionSnapshot(threadID string) (*sessions.Session, bool) {
	return p.deps.Store.Snapshot(threadID)
}

func (p *Pipeline) run(ctx context.Context, sess *sessions.Session, task string, history []*schema.Message) (res Result) {
	p.deps.Metrics.runStarted()
	stage, started := stagePlan, time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("orchestration panicked", "session", sess.ID, "stage", stage, "panic", r)
			p.deps.Metrics.ObserveStage(stage, "error", time.Since(started))
			res = p.fail(ctx, sess, stage, fmt.Errorf("%s stage: internal error: %v", stage, r))
		}
		outcome := "success"
		switch {
		case res.Error != "":
			outcome = "error"
		case !res.Success:
			outcome = "incomplete"
		}
		p.deps.Metrics.runFinished(outcome)
		p.publishResult(sess, res)
	}()

	slog.Info("orchestration started", "session", sess.ID, "thread", sess.ThreadID)

	msgs := append(history[:len(history):len(history)], schema.UserMessage(task))
	plan, err := p.runStage(ctx, sess, stagePlan, msgs)
	if err != nil {
		p.deps.Metrics.ObserveStage(stagePlan, "error", time.Since(started))
		return p.fail(ctx, sess, stagePlan, err)
	}
	p.deps.Metrics.ObserveStage(stagePlan, "ok", time.Since(started))

	pending := p.deps.Store.PendingExecuteTasks(sess.ID)
	if len(pending) == 0 {
		p.deps.Store.UpdateStatus(ctx, sess.ID, sessions.StatusComplete, "")
		slog.Info("orchestration complete without execution", "session", sess.ID)
		return p.result(sess.ID, true, plan.Text, "")
	}

	stage = stageExecute
	p.deps.Store.UpdateStatus(ctx, sess.ID, sessions.StatusExecuting, "")
	started = time.Now()
	exec, err := p.runStage(ctx, sess, stageExecute, []*schema.Message{
		schema.UserMessage(executeBriefing(task, plan.Text, pending)),
	})
	if err != nil {
		p.deps.Metrics.ObserveStage(stageExecute, "error", time.Since(started))
		return p.fail(ctx, sess, stageExecute, err)
	}

	remaining := p.deps.Store.PendingExecuteTasks(sess.ID)
	if len(remaining) == 0 {
		p.deps.Metrics.ObserveStage(stageExecute, "ok", time.Since(started))
		p.deps.Store.UpdateStatus(ctx, sess.ID, sessions.StatusComplete, "")
		summary := exec.Text
		if summary == "" {
			summary = fmt.Sprintf("Completed %d tasks", p.countDone(sess.ID))
		}
		slog.Info("orchestration complete", "session", sess.ID)
		return p.result(sess.ID, true, summary, "")
	}

	// Nothing broke, but the run stopped short: cancel what is left and
	// report a soft failure without session error text.
	p.deps.Metrics.ObserveStage(stageExecute, "incomplete", time.Since(started))
	cancelled := p.deps.Store.CleanupIncompleteTasks(ctx, sess.ID, ReasonExecutionIncomplete)
	cancelled += p.deps.Store.CancelStagedTasks(ctx, sess.ID, sessions.TaskExecute, ReasonExecutionIncomplete)
	p.deps.Store.UpdateStatus(ctx, sess.ID, sessions.StatusComplete, "")
	slog.Warn("orchestration incomplete", "session", sess.ID, "cancelled", cancelled)

	summary := exec.Text
	if summary == "" {
		summary = fmt.Sprintf("Execution incomplete: %d tasks were not finished", len(remaining))
	}
	return p.result(sess.ID, false, summary, "")
}

// runStage runs one macro-stage. Running out of steps is not a failure:
// the stage result is judged by the tasks it left behind.
func (p *Pipeline) runStage(ctx context.Context, sess *sessions.Session, stage string, msgs []*schema.Message) (agent.Result, error) {
	st := &stageTools{p: p, sessionID: sess.ID, threadID: sess.ThreadID}
	var capabilities []tool.InvokableTool
	instruction := instructionFor(stage, p.tier)
	maxSteps := p.cfg.PlanMaxSteps
	if stage == stagePlan {
		capabilities = st.planSet()
		instruction += capabilityNotes(p.deps.Tools)
	} else {
		capabilities = st.executeSet()
		maxSteps = p.cfg.ExecuteMaxSteps
	}

	name := "planner"
	if stage == stageExecute {
		name = "executor"
	}
	res, err := p.deps.Runner.Run(events.ContextWithAgent(ctx, name), agent.Request{
		Name:        name,
		Instruction: instruction,
		Messages:    msgs,
		Tools:       capabilities,
		MaxSteps:    maxSteps,
		OnEvent: agent.HandlerFunc(&agent.EventStream{
			Pub:       p.deps.Publisher,
			Source:    events.SourceOrchestrator,
			ThreadID:  sess.ThreadID,
			SessionID: sess.ID,
			Agent:     name,
			Finished:  func(f agent.Finish) { p.deps.Metrics.ObserveSteps(name, f.Steps) },
		}),
	})
	if errors.Is(err, agent.ErrStepLimit) {
		slog.Warn("stage ran out of steps", "stage", stage, "session", sess.ID, "steps", res.Steps)
		err = nil
	}
	if err != nil {
		return res, fmt.Errorf("%s stage: %w", stage, err)
	}
	return res, nil
}

// fail implements the stage failure path: cancel in-flight tasks, mark the
// session errored and report the failure text.
func (p *Pipeline) fail(ctx context.Context, sess *sessions.Session, stage string, err error) Result {
	text := err.Error()
	slog.Error("orchestration failed", "session", sess.ID, "stage", stage, "error", err)
	p.deps.Store.CleanupIncompleteTasks(ctx, sess.ID, "stage failed: "+text)
	p.deps.Store.UpdateStatus(ctx, sess.ID, sessions.StatusError, text)
	return p.result(sess.ID, false, "", text)
}

func (p *Pipeline) result(sessionID string, success bool, summary, errText string) Result {
	return Result{
		SessionID:    sessionID,
		Success:      success,
		Summary:      strings.TrimSpace(summary),
		TasksSummary: p.deps.Store.TasksSummary(sessionID),
		Error:        errText,
	}
}

func (p *Pipeline) countDone(sessionID string) int {
	n := 0
	for _, t := range p.deps.Store.TasksSummary(sessionID) {
		if t.Type == sessions.TaskExecute && t.Status == sessions.TaskDone {
			n++
		}
	}
	return n
}

func (p *Pipeline) publishResult(sess *sessions.Session, res Result) {
	if p.deps.Publisher == nil {
		return
	}
	summary := make([]map[string]any, len(res.TasksSummary))
	for i, t := range res.TasksSummary {
		summary[i] = map[string]any{"title": t.Title, "type": string(t.Type), "status": string(t.Status)}
	}
	p.deps.Publisher.Publish(events.NewTypedEventWithSession(events.SourceOrchestrator, sess.ThreadID, sess.ID,
		events.OrchestrationResultPayload{
			SessionID:    sess.ID,
			Success:      res.Success,
			Summary:      res.Summary,
			TasksSummary: summary,
			Error:        res.Error,
		}))
}
