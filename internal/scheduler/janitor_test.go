package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
)

func seedSession(t *testing.T, store *sessions.Store, threadID string, status sessions.Status) *sessions.Session {
	t.Helper()
	ctx := context.Background()
	sess := store.CreateSession(ctx, threadID)
	done, err := store.AddTask(ctx, sess.ID, "done", "", sessions.TaskExecute)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	store.UpdateTaskStatus(ctx, sess.ID, done.ID, sessions.TaskDone, "ok")
	if _, err := store.AddTask(ctx, sess.ID, "staged", "", sessions.TaskExecute); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	store.UpdateStatus(ctx, sess.ID, status, "")
	return sess
}

func TestJanitorSweep(t *testing.T) {
	store := sessions.NewStore(sessions.NewMemoryRepository(), events.NewRecorder(nil))
	finished := seedSession(t, store, "th_done", sessions.StatusComplete)
	running := seedSession(t, store, "th_running", sessions.StatusExecuting)

	j, err := NewJanitor(store, "", 0)
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	j.now = func() time.Time { return time.Now().Add(time.Second) }

	if n := j.Sweep(context.Background()); n != 1 {
		t.Fatalf("expected 1 task removed, got %d", n)
	}
	sess, _ := store.Get(finished.ID)
	if len(sess.Tasks) != 1 {
		t.Errorf("expected the staged task to remain, got %d tasks", len(sess.Tasks))
	}
	sess, _ = store.Get(running.ID)
	if len(sess.Tasks) != 2 {
		t.Errorf("expected running session untouched, got %d tasks", len(sess.Tasks))
	}

	if n := j.Sweep(context.Background()); n != 0 {
		t.Errorf("expected nothing left to sweep, got %d", n)
	}
}

func TestJanitorRespectsMinAge(t *testing.T) {
	store := sessions.NewStore(sessions.NewMemoryRepository(), events.NewRecorder(nil))
	seedSession(t, store, "th_recent", sessions.StatusError)

	j, err := NewJanitor(store, "@every 1h", time.Hour)
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	if n := j.Sweep(context.Background()); n != 0 {
		t.Errorf("expected recent session skipped, got %d removed", n)
	}

	j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if n := j.Sweep(context.Background()); n != 1 {
		t.Errorf("expected old session swept, got %d removed", n)
	}
}

func TestJanitorSchedule(t *testing.T) {
	store := sessions.NewStore(sessions.NewMemoryRepository(), nil)
	if _, err := NewJanitor(store, "bogus", 0); err == nil {
		t.Error("expected invalid schedule to be rejected")
	}

	j, err := NewJanitor(store, "", 0)
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	if j.Schedule() != DefaultSchedule {
		t.Errorf("expected %q, got %q", DefaultSchedule, j.Schedule())
	}
	j.Start()
	j.Start()
	j.Stop()
	j.Stop()
}
