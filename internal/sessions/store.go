package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
)

// ErrSessionNotFound signals an operation against a session that does not exist.
// AddTask returns it as a fatal error; every other operation tolerates the miss.
var ErrSessionNotFound = errors.New("session not found")

// Store owns the session/task lifecycle and publishes a notification for every mutation.
type Store struct {
	repo Repository
	pub  events.Publisher
	now  func() time.Time
}

// NewStore creates a Store over repo, publishing on pub.
func NewStore(repo Repository, pub events.Publisher) *Store {
	return &Store{repo: repo, pub: pub, now: time.Now}
}

func (s *Store) publish(threadID, sessionID string, payload events.EventPayload) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(events.NewTypedEventWithSession(events.SourceStore, threadID, sessionID, payload))
}

// CreateSession starts a new planning session for threadID, discarding any
// existing session of that thread together with its tasks.
func (s *Store) CreateSession(_ context.Context, threadID string) *Session {
	now := s.now()
	sess := &Session{
		ID:             generateSessionID(),
		ThreadID:       threadID,
		Status:         StatusPlanning,
		Tasks:          make(map[string]*Task),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if old := s.repo.Put(sess); old != nil {
		slog.Debug("session replaced", "thread", threadID, "old", old.ID, "new", sess.ID)
	}
	s.publish(threadID, sess.ID, events.SessionPayload{
		Kind:      events.EventSessionCreated,
		SessionID: sess.ID,
		Status:    string(sess.Status),
	})
	return sess.Clone()
}

// UpdateStatus sets the session status and error text. The emitted event is
// session_complete, session_error or session_updated depending on status.
func (s *Store) UpdateStatus(_ context.Context, sessionID string, status Status, errText string) {
	updated, ok := s.repo.Update(sessionID, func(sess *Session) bool {
		sess.Status = status
		sess.Error = errText
		sess.LastActivityAt = s.now()
		return true
	})
	if !ok {
		return
	}

	kind := events.EventSessionUpdated
	switch status {
	case StatusComplete:
		kind = events.EventSessionComplete
	case StatusError:
		kind = events.EventSessionError
	}
	s.publish(updated.ThreadID, updated.ID, events.SessionPayload{
		Kind:      kind,
		SessionID: updated.ID,
		Status:    string(status),
		Error:     errText,
	})
}

// AddTask creates a staged task. A missing session is a caller bug and is
// reported as ErrSessionNotFound; callers must not swallow it.
func (s *Store) AddTask(_ context.Context, sessionID, title, description string, typ TaskType) (*Task, error) {
	task := &Task{
		ID:          GenerateTaskID(),
		SessionID:   sessionID,
		Title:       title,
		Description: description,
		Type:        typ,
		Status:      TaskStaged,
		CreatedAt:   s.now(),
	}
	updated, ok := s.repo.Update(sessionID, func(sess *Session) bool {
		sess.Tasks[task.ID] = task.Clone()
		sess.LastActivityAt = task.CreatedAt
		return true
	})
	if !ok {
		return nil, fmt.Errorf("add task %q: %w: %s", title, ErrSessionNotFound, sessionID)
	}
	s.publish(updated.ThreadID, sessionID, events.TaskCreatedPayload{Task: task.Record()})
	return task, nil
}

// UpdateTaskStatus moves a task forward. It is a silent no-op when the session
// or task is missing or when the transition would leave done/cancelled.
// The returned task is nil when nothing changed.
func (s *Store) UpdateTaskStatus(_ context.Context, sessionID, taskID string, status TaskStatus, result any) *Task {
	var changed *Task
	updated, ok := s.repo.Update(sessionID, func(sess *Session) bool {
		task, ok := sess.Tasks[taskID]
		if !ok {
			return false
		}
		next := task.Clone()
		now := s.now()
		if !next.applyStatus(status, result, now) {
			return false
		}
		sess.Tasks[taskID] = next
		sess.LastActivityAt = now
		changed = next.Clone()
		return true
	})
	if !ok {
		slog.Debug("task update ignored", "session", sessionID, "task", taskID, "status", status)
		return nil
	}
	s.publish(updated.ThreadID, sessionID, events.TaskUpdatedPayload{Task: changed.Record()})
	return changed
}

// CleanupIncompleteTasks cancels every in_progress task with result=reason and
// emits one task_updated per task. It returns the number of cancelled tasks.
func (s *Store) CleanupIncompleteTasks(_ context.Context, sessionID, reason string) int {
	var cancelled []*Task
	updated, ok := s.repo.Update(sessionID, func(sess *Session) bool {
		now := s.now()
		for _, task := range sess.SortedTasks() {
			if task.Status != TaskInProgress {
				continue
			}
			next := task.Clone()
			next.applyStatus(TaskCancelled, reason, now)
			sess.Tasks[task.ID] = next
			cancelled = append(cancelled, next.Clone())
		}
		if len(cancelled) == 0 {
			return false
		}
		sess.LastActivityAt = now
		return true
	})
	if !ok {
		return 0
	}
	for _, task := range cancelled {
		s.publish(updated.ThreadID, sessionID, events.TaskUpdatedPayload{Task: task.Record()})
	}
	slog.Info("incomplete tasks cancelled", "session", sessionID, "count", len(cancelled), "reason", reason)
	return len(cancelled)
}

// CancelStagedTasks cancels the staged tasks of type typ that no worker ever
// picked up. It returns the number of cancelled tasks.
func (s *Store) CancelStagedTasks(_ context.Context, sessionID string, typ TaskType, reason string) int {
	var cancelled []*Task
	updated, ok := s.repo.Update(sessionID, func(sess *Session) bool {
		now := s.now()
		for _, task := range sess.SortedTasks() {
			if task.Type != typ || task.Status != TaskStaged {
				continue
			}
			next := task.Clone()
			next.applyStatus(TaskCancelled, reason, now)
			sess.Tasks[task.ID] = next
			cancelled = append(cancelled, next.Clone())
		}
		if len(cancelled) == 0 {
			return false
		}
		sess.LastActivityAt = now
		return true
	})
	if !ok {
		return 0
	}
	for _, task := range cancelled {
		s.publish(updated.ThreadID, sessionID, events.TaskUpdatedPayload{Task: task.Record()})
	}
	return len(cancelled)
}

// ClearCompletedTasks deletes every done or cancelled task and returns how many were removed.
func (s *Store) ClearCompletedTasks(_ context.Context, sessionID string) int {
	removed := 0
	s.repo.Update(sessionID, func(sess *Session) bool {
		for id, task := range sess.Tasks {
			if task.Status.Terminal() {
				delete(sess.Tasks, id)
				removed++
			}
		}
		return removed > 0
	})
	return removed
}

// TasksSummary returns the {title, type, status} projection of a session's tasks.
func (s *Store) TasksSummary(sessionID string) []TaskSummary {
	sess, ok := s.repo.Get(sessionID)
	if !ok {
		return nil
	}
	return sess.TasksSummary()
}

// PendingExecuteTasks returns execute tasks still staged or in progress.
func (s *Store) PendingExecuteTasks(sessionID string) []*Task {
	sess, ok := s.repo.Get(sessionID)
	if !ok {
		return nil
	}
	return sess.PendingTasks(TaskExecute)
}

// Get returns a copy of the session.
func (s *Store) Get(sessionID string) (*Session, bool) {
	return s.repo.Get(sessionID)
}

// Snapshot returns a copy of the current session for threadID.
func (s *Store) Snapshot(threadID string) (*Session, bool) {
	return s.repo.GetByThread(threadID)
}

// List returns copies of all sessions.
func (s *Store) List() []*Session {
	return s.repo.List()
}
