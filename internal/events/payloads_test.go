package events

import (
	"testing"
	"time"
)

func TestTypedEvent_TaskUpdated(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	evt := NewTypedEventWithSession(SourceStore, "th_1", "sess_1", TaskUpdatedPayload{Task: TaskRecord{
		ID:        "task_1",
		SessionID: "sess_1",
		Title:     "write report",
		Type:      "execute",
		Status:    "done",
		Result:    "ok",
		StartedAt: &now,
	}})

	if evt.Type != EventTaskUpdated {
		t.Fatalf("expected type %q, got %q", EventTaskUpdated, evt.Type)
	}
	if evt.ThreadID != "th_1" || evt.SessionID != "sess_1" {
		t.Fatalf("expected routing th_1/sess_1, got %s/%s", evt.ThreadID, evt.SessionID)
	}
	got, ok := GetTaskUpdatedPayload(evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Task.Status != "done" {
		t.Errorf("expected status done, got %s", got.Task.Status)
	}
	if got.Task.StartedAt == nil || !got.Task.StartedAt.Equal(now) {
		t.Errorf("expected started_at %v, got %v", now, got.Task.StartedAt)
	}
	if got.Task.CompletedAt != nil {
		t.Errorf("expected nil completed_at, got %v", got.Task.CompletedAt)
	}
}

func TestSessionPayloadKind(t *testing.T) {
	tests := []struct {
		kind EventType
		want EventType
	}{
		{"", EventSessionUpdated},
		{EventSessionCreated, EventSessionCreated},
		{EventSessionComplete, EventSessionComplete},
		{EventSessionError, EventSessionError},
	}
	for _, tt := range tests {
		evt := NewTypedEvent(SourceStore, "th", SessionPayload{Kind: tt.kind, SessionID: "s", Status: "error", Error: "boom"})
		if evt.Type != tt.want {
			t.Errorf("kind %q: expected type %q, got %q", tt.kind, tt.want, evt.Type)
		}
		if _, ok := evt.Payload["Kind"]; ok {
			t.Error("kind must not leak into the payload")
		}
		p, ok := GetSessionPayload(evt)
		if !ok || p.Kind != tt.want || p.Error != "boom" {
			t.Errorf("unexpected extracted payload %+v", p)
		}
	}
}

func TestBatchPayloadTypes(t *testing.T) {
	tests := []struct {
		payload EventPayload
		want    EventType
	}{
		{BatchStartedPayload{Kind: BatchExploration}, EventExplorationStarted},
		{BatchStartedPayload{Kind: BatchExecution}, EventExecutionStarted},
		{WorkerStartedPayload{Kind: BatchExploration}, EventExplorationWorkerStarted},
		{WorkerStartedPayload{Kind: BatchExecution}, EventExecutionWorkerStarted},
		{WorkerDonePayload{Kind: BatchExploration}, EventExplorationWorkerDone},
		{WorkerDonePayload{Kind: BatchExecution}, EventExecutionWorkerDone},
		{BatchCompletePayload{Kind: BatchExploration}, EventExplorationComplete},
		{BatchCompletePayload{Kind: BatchExecution}, EventExecutionComplete},
	}
	for _, tt := range tests {
		if got := tt.payload.EventType(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestBatchCompleteRoundTrip(t *testing.T) {
	evt := NewTypedEvent(SourceDispatcher, "th", BatchCompletePayload{
		Kind: BatchExploration,
		Outcomes: []OutcomeRecord{
			{Success: true, Summary: "a"},
			{Success: false, Summary: "boom", Errors: []string{"boom"}},
		},
	})
	got, ok := GetBatchCompletePayload(evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got.Outcomes))
	}
	if got.Outcomes[1].Success || got.Outcomes[1].Errors[0] != "boom" {
		t.Errorf("unexpected second outcome %+v", got.Outcomes[1])
	}
}
