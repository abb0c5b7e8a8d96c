package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cron "github.com/netresearch/go-cron"

	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
)

// DefaultSchedule sweeps every ten minutes.
const DefaultSchedule = "@every 10m"

// SessionSource is the part of sessions.Store the janitor needs.
type SessionSource interface {
	List() []*sessions.Session
	ClearCompletedTasks(ctx context.Context, sessionID string) int
}

// Janitor periodically drops done and cancelled tasks from finished sessions.
type Janitor struct {
	src    SessionSource
	expr   *CronExpr
	minAge time.Duration
	now    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewJanitor creates a janitor on schedule (DefaultSchedule when empty).
// Sessions whose last activity is more recent than minAge are left alone so
// clients can still read their final snapshot.
func NewJanitor(src SessionSource, schedule string, minAge time.Duration) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	expr, err := ParseCron(schedule)
	if err != nil {
		return nil, err
	}
	return &Janitor{src: src, expr: expr, minAge: minAge, now: time.Now}, nil
}

// Schedule returns the janitor's cron expression.
func (j *Janitor) Schedule() string { return j.expr.String() }

// Start begins sweeping on schedule. Calling Start twice is a no-op.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return
	}
	j.cron = cron.New(cron.WithParser(parser))
	j.cron.Schedule(j.expr.schedule, cron.FuncJob(func() {
		j.Sweep(context.Background())
	}))
	j.cron.Start()
	slog.Info("janitor started", "schedule", j.expr.String())
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	slog.Info("janitor stopped")
}

// Sweep clears completed tasks of every finished session old enough and
// returns how many tasks were removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	cutoff := j.now().Add(-j.minAge)
	removed := 0
	for _, sess := range j.src.List() {
		if !sess.Status.Terminal() || sess.LastActivityAt.After(cutoff) {
			continue
		}
		if n := j.src.ClearCompletedTasks(ctx, sess.ID); n > 0 {
			slog.Debug("janitor cleared tasks", "session", sess.ID, "count", n)
			removed += n
		}
	}
	if removed > 0 {
		slog.Info("janitor sweep", "removed", removed)
	}
	return removed
}
