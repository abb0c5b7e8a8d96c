// Package sessions owns orchestration sessions and their tasks.
package sessions

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a session.
type Status string

const (
	StatusPlanning    Status = "planning"
	StatusExploring   Status = "exploring"
	StatusExecuting   Status = "executing"
	StatusWaitingUser Status = "waiting_user"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

// Terminal reports whether the session has finished.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Session is one orchestration run bound to a conversation thread.
type Session struct {
	ID             string           `json:"id" yaml:"id"`
	ThreadID       string           `json:"thread_id" yaml:"thread_id"`
	Status         Status           `json:"status" yaml:"status"`
	Error          string           `json:"error,omitempty" yaml:"error,omitempty"`
	Tasks          map[string]*Task `json:"tasks" yaml:"tasks"`
	CreatedAt      time.Time        `json:"created_at" yaml:"created_at"`
	LastActivityAt time.Time        `json:"last_activity_at" yaml:"last_activity_at"`
}

// Clone returns a deep copy. Records handed out by the store are always clones.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Tasks = make(map[string]*Task, len(s.Tasks))
	for id, t := range s.Tasks {
		cp.Tasks[id] = t.Clone()
	}
	return &cp
}

// SortedTasks returns the tasks ordered by creation time, then id.
func (s *Session) SortedTasks() []*Task {
	out := make([]*Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// TaskSummary is the read-only projection used for reporting.
type TaskSummary struct {
	Title  string     `json:"title" yaml:"title"`
	Type   TaskType   `json:"type" yaml:"type"`
	Status TaskStatus `json:"status" yaml:"status"`
}

// TasksSummary projects every task to {title, type, status}.
func (s *Session) TasksSummary() []TaskSummary {
	if s == nil {
		return nil
	}
	tasks := s.SortedTasks()
	out := make([]TaskSummary, len(tasks))
	for i, t := range tasks {
		out[i] = TaskSummary{Title: t.Title, Type: t.Type, Status: t.Status}
	}
	return out
}

// PendingTasks returns the tasks of the given type that are staged or in progress.
func (s *Session) PendingTasks(typ TaskType) []*Task {
	var out []*Task
	for _, t := range s.SortedTasks() {
		if t.Type == typ && !t.Status.Terminal() {
			out = append(out, t)
		}
	}
	return out
}

func generateSessionID() string {
	u := uuid.New().String()
	return "sess_" + strings.ReplaceAll(u[:8], "-", "")
}
