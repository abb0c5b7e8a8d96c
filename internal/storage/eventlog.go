// Package storage persists bus events for later inspection.
package storage

import (
	"log/slog"
	"time"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/storage/dirstore"
)

const (
	eventsFile = "events.jsonl"
	metaFile   = "meta.json"
	globalID   = "_global"
)

// SubscribeFunc matches events.Bus.Subscribe.
type SubscribeFunc func(handler events.Subscriber, eventTypes ...events.EventType) func()

// ThreadMeta summarizes the last orchestration seen on a thread.
type ThreadMeta struct {
	ThreadID   string    `json:"thread_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Success    bool      `json:"success"`
	Summary    string    `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
	EventCount int       `json:"event_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EventLog appends bus events to <dir>/<thread>/events.jsonl and keeps a
// meta.json per thread. Events without a thread go to _global.
type EventLog struct {
	store       *dirstore.Store
	unsubscribe func()
	counts      map[string]int
}

// NewEventLog creates an EventLog writing under dir. When subscribe is not
// nil the log subscribes to every event.
func NewEventLog(dir string, subscribe SubscribeFunc) *EventLog {
	el := &EventLog{store: dirstore.New(dir, "thread"), counts: make(map[string]int)}
	if subscribe != nil {
		el.unsubscribe = subscribe(el.Record)
	}
	return el
}

// Close unsubscribes the log from the bus.
func (el *EventLog) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

// Record appends e. Stream deltas are skipped: tool results and the final
// summary already carry their content. Record is called from the bus's
// single dispatch goroutine.
func (el *EventLog) Record(e events.Event) {
	if e.Type == events.EventAssistantStream {
		return
	}
	id := e.ThreadID
	if id == "" {
		id = globalID
	}
	if err := el.store.AppendJSONL(id, eventsFile, e); err != nil {
		slog.Warn("event log append", "thread", id, "error", err)
		return
	}
	el.counts[id]++

	if e.ThreadID == "" {
		return
	}
	switch e.Type {
	case events.EventSessionComplete, events.EventSessionError, events.EventOrchestrationResult:
		el.updateMeta(e)
	}
}

func (el *EventLog) updateMeta(e events.Event) {
	var meta ThreadMeta
	if err := el.store.ReadJSON(e.ThreadID, metaFile, &meta); err != nil {
		meta = ThreadMeta{ThreadID: e.ThreadID}
	}
	if e.SessionID != "" && e.SessionID != meta.SessionID {
		meta = ThreadMeta{ThreadID: e.ThreadID, SessionID: e.SessionID, EventCount: meta.EventCount}
	}

	switch e.Type {
	case events.EventOrchestrationResult:
		if p, ok := events.ExtractPayload[events.OrchestrationResultPayload](e); ok {
			meta.SessionID = p.SessionID
			meta.Success = p.Success
			meta.Summary = p.Summary
			meta.Error = p.Error
		}
	default:
		if p, ok := events.GetSessionPayload(e); ok {
			meta.Status = p.Status
		}
	}
	meta.EventCount += el.counts[e.ThreadID]
	el.counts[e.ThreadID] = 0
	meta.UpdatedAt = e.Timestamp

	if err := el.store.WriteJSON(e.ThreadID, metaFile, meta); err != nil {
		slog.Warn("event log meta", "thread", e.ThreadID, "error", err)
	}
}

// Read returns the last limit logged events of a thread (all when limit <= 0).
func (el *EventLog) Read(threadID string, limit int) ([]events.Event, error) {
	if threadID == "" {
		threadID = globalID
	}
	return dirstore.ReadJSONL[events.Event](el.store, threadID, eventsFile, limit)
}

// Meta returns the summary of a thread's last orchestration.
func (el *EventLog) Meta(threadID string) (ThreadMeta, error) {
	var meta ThreadMeta
	err := el.store.ReadJSON(threadID, metaFile, &meta)
	return meta, err
}

// Threads lists the threads that have a log.
func (el *EventLog) Threads() ([]string, error) {
	ids, err := el.store.List()
	if err != nil {
		return nil, err
	}
	out := ids[:0]
	for _, id := range ids {
		if id != globalID {
			out = append(out, id)
		}
	}
	return out, nil
}

// Remove deletes the log of a thread.
func (el *EventLog) Remove(threadID string) error {
	return el.store.Remove(threadID)
}
