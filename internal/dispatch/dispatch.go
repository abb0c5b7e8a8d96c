// Package dispatch fans a stage's request out to concurrent sub-agent
// workers and gathers their outcomes in request order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/tools"
)

// ErrNested is returned when a worker tries to dispatch workers of its own.
var ErrNested = errors.New("dispatch: nested fan-out is not supported")

const (
	DefaultExploreMaxSteps = 10
	DefaultExecuteMaxSteps = 20
)

// Outcome is the result of one worker, correlated to its request by position.
type Outcome struct {
	Success bool     `json:"success"`
	Summary string   `json:"summary"`
	Errors  []string `json:"errors,omitempty"`
}

func (o Outcome) record() events.OutcomeRecord {
	return events.OutcomeRecord{Success: o.Success, Summary: o.Summary, Errors: o.Errors}
}

func failed(summary string, err error) Outcome {
	o := Outcome{Summary: summary}
	if err != nil {
		o.Errors = []string{err.Error()}
	}
	return o
}

// Config wires a Dispatcher.
type Config struct {
	Runner agent.Runner
	// Tools provides the external capabilities. Nil means none.
	Tools     *tools.Registry
	Store     *sessions.Store
	Publisher events.Publisher
	// MaxWorkers bounds concurrently running workers; zero runs all at once.
	MaxWorkers      int
	ExploreMaxSteps int
	ExecuteMaxSteps int
}

// Dispatcher runs exploration and execution batches.
type Dispatcher struct {
	cfg Config
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.ExploreMaxSteps <= 0 {
		cfg.ExploreMaxSteps = DefaultExploreMaxSteps
	}
	if cfg.ExecuteMaxSteps <= 0 {
		cfg.ExecuteMaxSteps = DefaultExecuteMaxSteps
	}
	return &Dispatcher{cfg: cfg}
}

type workerKey struct{}

// IsWorker reports whether ctx belongs to a dispatched worker.
func IsWorker(ctx context.Context) bool {
	v, _ := ctx.Value(workerKey{}).(bool)
	return v
}

func (d *Dispatcher) publish(threadID, sessionID string, p events.EventPayload) {
	if d.cfg.Publisher == nil {
		return
	}
	d.cfg.Publisher.Publish(events.NewTypedEventWithSession(events.SourceDispatcher, threadID, sessionID, p))
}

// workFunc runs worker i. It may panic; it must not block past ctx.
type workFunc func(ctx context.Context, i int) Outcome

// fanOut is the template shared by both batch kinds. It blocks until every
// worker has settled. A failing worker never cancels its siblings.
func (d *Dispatcher) fanOut(ctx context.Context, kind events.BatchKind, sessionID, threadID string, requests []any, work workFunc) ([]Outcome, error) {
	if IsWorker(ctx) {
		return nil, ErrNested
	}

	n := len(requests)
	d.publish(threadID, sessionID, events.BatchStartedPayload{Kind: kind, SessionID: sessionID, Count: n, Requests: requests})
	for i, req := range requests {
		d.publish(threadID, sessionID, events.WorkerStartedPayload{Kind: kind, SessionID: sessionID, Index: i, Request: req})
	}
	slog.Info("batch started", "kind", kind, "session", sessionID, "workers", n)

	outcomes := make([]Outcome, n)
	wctx := context.WithValue(ctx, workerKey{}, true)

	var g errgroup.Group
	if d.cfg.MaxWorkers > 0 {
		g.SetLimit(d.cfg.MaxWorkers)
	}
	for i := range requests {
		g.Go(func() error {
			out := settle(wctx, kind, i, work)
			outcomes[i] = out
			d.publish(threadID, sessionID, events.WorkerDonePayload{Kind: kind, SessionID: sessionID, Index: i, Outcome: out.record()})
			return nil
		})
	}
	_ = g.Wait()

	records := make([]events.OutcomeRecord, n)
	failures := 0
	for i, o := range outcomes {
		records[i] = o.record()
		if !o.Success {
			failures++
		}
	}
	d.publish(threadID, sessionID, events.BatchCompletePayload{Kind: kind, SessionID: sessionID, Outcomes: records})
	slog.Info("batch complete", "kind", kind, "session", sessionID, "workers", n, "failed", failures)
	return outcomes, nil
}

// settle runs one worker and converts a panic into a failed outcome.
func settle(ctx context.Context, kind events.BatchKind, i int, work workFunc) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker panicked", "kind", kind, "index", i, "panic", r, "stack", string(debug.Stack()))
			out = failed(fmt.Sprintf("Error: worker %d crashed: %v", i+1, r), fmt.Errorf("panic: %v", r))
		}
	}()
	return work(ctx, i)
}

// stream returns the OnEvent callback republishing a worker's stream.
func (d *Dispatcher) stream(threadID, sessionID, name string) func(agent.StreamEvent) {
	return agent.HandlerFunc(&agent.EventStream{
		Pub:       d.cfg.Publisher,
		Source:    events.SourceDispatcher,
		ThreadID:  threadID,
		SessionID: sessionID,
		Agent:     name,
	})
}
