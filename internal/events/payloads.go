package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// SESSION EVENTS
// =============================================================================

// SessionPayload is shared by the four session lifecycle events; the concrete
// event type is carried by Kind.
type SessionPayload struct {
	Kind      EventType `json:"-"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

func (p SessionPayload) EventType() EventType {
	if p.Kind == "" {
		return EventSessionUpdated
	}
	return p.Kind
}

// =============================================================================
// TASK EVENTS
// =============================================================================

// TaskRecord is the full task record as pushed to clients.
type TaskRecord struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Result      any        `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type TaskCreatedPayload struct {
	Task TaskRecord `json:"task"`
}

func (TaskCreatedPayload) EventType() EventType { return EventTaskCreated }

type TaskUpdatedPayload struct {
	Task TaskRecord `json:"task"`
}

func (TaskUpdatedPayload) EventType() EventType { return EventTaskUpdated }

// =============================================================================
// FAN-OUT EVENTS
// =============================================================================

// BatchKind distinguishes the two fan-out flavours.
type BatchKind string

const (
	BatchExploration BatchKind = "exploration"
	BatchExecution   BatchKind = "execution"
)

// OutcomeRecord mirrors a worker outcome on the wire.
type OutcomeRecord struct {
	Success bool     `json:"success"`
	Summary string   `json:"summary"`
	Errors  []string `json:"errors,omitempty"`
}

type BatchStartedPayload struct {
	Kind      BatchKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Count     int       `json:"count"`
	Requests  []any     `json:"requests"`
}

func (p BatchStartedPayload) EventType() EventType {
	if p.Kind == BatchExecution {
		return EventExecutionStarted
	}
	return EventExplorationStarted
}

type WorkerStartedPayload struct {
	Kind      BatchKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Index     int       `json:"index"`
	Request   any       `json:"request"`
}

func (p WorkerStartedPayload) EventType() EventType {
	if p.Kind == BatchExecution {
		return EventExecutionWorkerStarted
	}
	return EventExplorationWorkerStarted
}

type WorkerDonePayload struct {
	Kind      BatchKind     `json:"kind"`
	SessionID string        `json:"session_id"`
	Index     int           `json:"index"`
	Outcome   OutcomeRecord `json:"outcome"`
}

func (p WorkerDonePayload) EventType() EventType {
	if p.Kind == BatchExecution {
		return EventExecutionWorkerDone
	}
	return EventExplorationWorkerDone
}

type BatchCompletePayload struct {
	Kind      BatchKind       `json:"kind"`
	SessionID string          `json:"session_id"`
	Outcomes  []OutcomeRecord `json:"outcomes"`
}

func (p BatchCompletePayload) EventType() EventType {
	if p.Kind == BatchExecution {
		return EventExecutionComplete
	}
	return EventExplorationComplete
}

// =============================================================================
// PASSTHROUGH EVENTS
// =============================================================================

type ToolCallPayload struct {
	Agent     string `json:"agent"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

func (ToolCallPayload) EventType() EventType { return EventToolCall }

type ToolResultPayload struct {
	Agent  string `json:"agent"`
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

func (ToolResultPayload) EventType() EventType { return EventToolResult }

type AssistantStreamPayload struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

func (AssistantStreamPayload) EventType() EventType { return EventAssistantStream }

type OrchestrationResultPayload struct {
	SessionID    string           `json:"session_id"`
	Success      bool             `json:"success"`
	Summary      string           `json:"summary"`
	TasksSummary []map[string]any `json:"tasks_summary"`
	Error        string           `json:"error,omitempty"`
}

func (OrchestrationResultPayload) EventType() EventType { return EventOrchestrationResult }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

// NewTypedEvent builds an event routed to threadID.
func NewTypedEvent(source EventSource, threadID string, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		ThreadID:  threadID,
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

// NewTypedEventWithSession builds an event routed to threadID and tagged with a session.
func NewTypedEventWithSession(source EventSource, threadID, sessionID string, payload EventPayload) Event {
	e := NewTypedEvent(source, threadID, payload)
	e.SessionID = sessionID
	return e
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

func GetTaskUpdatedPayload(e Event) (TaskUpdatedPayload, bool) {
	return ExtractPayload[TaskUpdatedPayload](e)
}

func GetWorkerDonePayload(e Event) (WorkerDonePayload, bool) {
	return ExtractPayload[WorkerDonePayload](e)
}

func GetBatchCompletePayload(e Event) (BatchCompletePayload, bool) {
	return ExtractPayload[BatchCompletePayload](e)
}

func GetSessionPayload(e Event) (SessionPayload, bool) {
	p, ok := ExtractPayload[SessionPayload](e)
	if ok {
		p.Kind = e.Type
	}
	return p, ok
}

func GetPromptRequestPayload(e Event) (PromptRequestPayload, bool) {
	return ExtractPayload[PromptRequestPayload](e)
}
