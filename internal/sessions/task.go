package sessions

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
)

// TaskType classifies what a task is for.
type TaskType string

const (
	TaskPlan    TaskType = "plan"
	TaskExplore TaskType = "explore"
	TaskExecute TaskType = "execute"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskPlan, TaskExplore, TaskExecute:
		return true
	}
	return false
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStaged     TaskStatus = "staged"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskCancelled
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return s.rank() >= 0
}

func (s TaskStatus) rank() int {
	switch s {
	case TaskStaged:
		return 0
	case TaskInProgress:
		return 1
	case TaskDone, TaskCancelled:
		return 2
	}
	return -1
}

// CanTransition reports whether a task may move from s to next.
// Transitions only move forward: staged → in_progress → done|cancelled.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

// Task is a trackable unit of work created during planning.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	SessionID   string     `json:"session_id" yaml:"session_id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Type        TaskType   `json:"type" yaml:"type"`
	Status      TaskStatus `json:"status" yaml:"status"`
	Result      any        `json:"result,omitempty" yaml:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Clone returns a copy of the task. Result is shared; it is treated as immutable.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.StartedAt != nil {
		ts := *t.StartedAt
		cp.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}

// Record converts the task to its wire form.
func (t *Task) Record() events.TaskRecord {
	return events.TaskRecord{
		ID:          t.ID,
		SessionID:   t.SessionID,
		Title:       t.Title,
		Description: t.Description,
		Type:        string(t.Type),
		Status:      string(t.Status),
		Result:      t.Result,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// applyStatus moves the task to next, stamping StartedAt/CompletedAt at most once.
func (t *Task) applyStatus(next TaskStatus, result any, now time.Time) bool {
	if !t.Status.CanTransition(next) {
		return false
	}
	t.Status = next
	if next == TaskInProgress && t.StartedAt == nil {
		ts := now
		t.StartedAt = &ts
	}
	if next.Terminal() && t.CompletedAt == nil {
		ts := now
		t.CompletedAt = &ts
	}
	if result != nil {
		t.Result = result
	}
	return true
}

// GenerateTaskID creates a unique task identifier.
func GenerateTaskID() string {
	u := uuid.New().String()
	return "task_" + strings.ReplaceAll(u[:8], "-", "")
}
