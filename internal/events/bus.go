// Package events provides the notification channel: an in-memory bus keyed by thread id.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrBusClosed = errors.New("event bus is closed")
)

// EventType represents the type of event.
type EventType string

const (
	// Session lifecycle
	EventSessionCreated  EventType = "session_created"
	EventSessionUpdated  EventType = "session_updated"
	EventSessionComplete EventType = "session_complete"
	EventSessionError    EventType = "session_error"

	// Tasks
	EventTaskCreated EventType = "task_created"
	EventTaskUpdated EventType = "task_updated"

	// Exploration fan-out
	EventExplorationStarted       EventType = "exploration_started"
	EventExplorationWorkerStarted EventType = "exploration_worker_started"
	EventExplorationWorkerDone    EventType = "exploration_worker_done"
	EventExplorationComplete      EventType = "exploration_complete"

	// Execution fan-out
	EventExecutionStarted       EventType = "execution_started"
	EventExecutionWorkerStarted EventType = "execution_worker_started"
	EventExecutionWorkerDone    EventType = "execution_worker_done"
	EventExecutionComplete      EventType = "execution_complete"

	// Informational passthrough
	EventToolCall        EventType = "tool_call"
	EventToolResult      EventType = "tool_result"
	EventAssistantStream EventType = "assistant_stream"

	// Agent ↔ Client: Prompts
	EventPromptRequest  EventType = "prompt_request"
	EventPromptResponse EventType = "prompt_response"

	EventOrchestrationResult EventType = "orchestration_result"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceStore        EventSource = "store"
	SourceDispatcher   EventSource = "dispatcher"
	SourceOrchestrator EventSource = "orchestrator"
	SourceGateway      EventSource = "gateway"
	SourceWS           EventSource = "ws"
)

// Event is a single notification. ThreadID is the routing key for clients.
type Event struct {
	ID        string         `json:"id"`
	ThreadID  string         `json:"thread_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`
}

var eventIDCounter uint64

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	return Event{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   payload,
	}
}

func generateEventID() string {
	seq := atomic.AddUint64(&eventIDCounter, 1)
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), seq)
}

// Publisher is the outbound side of the notification channel.
type Publisher interface {
	Publish(event Event)
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

type subscription struct {
	id         int
	threadID   string
	eventTypes []EventType
	handler    Subscriber
}

// Bus is an in-memory event bus using Go channels.
// Subscribers are invoked sequentially from a single dispatch goroutine so that
// every subscriber observes events in publish order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscription
	nextID      int
	eventChan   chan Event
	ringBuffer  *RingBuffer
	closed      bool
	done        chan struct{}
	stopped     chan struct{}
}

// NewBus creates a new event bus.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	b := &Bus{
		subscribers: make(map[int]*subscription),
		eventChan:   make(chan Event, bufferSize),
		ringBuffer:  NewRingBuffer(bufferSize),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer close(b.stopped)
	for {
		select {
		case event := <-b.eventChan:
			b.ringBuffer.Add(event)
			b.notifySubscribers(event)
		case <-b.done:
			// drain what was accepted before Close
			for {
				select {
				case event := <-b.eventChan:
					b.ringBuffer.Add(event)
					b.notifySubscribers(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) notifySubscribers(event Event) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.matches(event) {
			subs = append(subs, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(event)
	}
}

func (s *subscription) matches(event Event) bool {
	if s.threadID != "" && s.threadID != event.ThreadID {
		return false
	}
	if len(s.eventTypes) == 0 {
		return true
	}
	for _, t := range s.eventTypes {
		if t == event.Type {
			return true
		}
	}
	return false
}

// Publish sends an event to the bus. It blocks while the buffer is full so that
// lifecycle notifications are never dropped; it is a no-op once the bus is closed.
// The lock is not held while waiting, so handlers may subscribe or unsubscribe.
func (b *Bus) Publish(event Event) {
	if b.isClosed() {
		return
	}
	select {
	case b.eventChan <- event:
	case <-b.done:
	}
}

// PublishAsync sends an event with context cancellation support.
func (b *Bus) PublishAsync(ctx context.Context, event Event) error {
	if b.isClosed() {
		return ErrBusClosed
	}

	select {
	case b.eventChan <- event:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Subscribe registers a handler for specific event types.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(handler Subscriber, eventTypes ...EventType) func() {
	return b.SubscribeThread("", handler, eventTypes...)
}

// SubscribeThread registers a handler receiving only events of the given thread.
// An empty threadID matches every thread.
func (b *Bus) SubscribeThread(threadID string, handler Subscriber, eventTypes ...EventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	b.subscribers[id] = &subscription{
		id:         id,
		threadID:   threadID,
		eventTypes: eventTypes,
		handler:    handler,
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// SubscribeChan returns a channel that receives events of one thread (or all
// threads when threadID is empty). Events are dropped when the channel is full.
func (b *Bus) SubscribeChan(bufSize int, threadID string, eventTypes ...EventType) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	var once sync.Once
	var closed atomic.Bool

	unsubscribe := b.SubscribeThread(threadID, func(e Event) {
		if closed.Load() {
			return
		}
		select {
		case ch <- e:
		default:
		}
	}, eventTypes...)

	return ch, func() {
		once.Do(func() {
			unsubscribe()
			closed.Store(true)
		})
	}
}

// History returns recent events from the ring buffer, optionally for one thread.
func (b *Bus) History(threadID string, limit int) []Event {
	all := b.ringBuffer.Get(b.ringBuffer.size)
	if threadID == "" {
		if limit > 0 && len(all) > limit {
			return all[len(all)-limit:]
		}
		return all
	}
	var out []Event
	for _, e := range all {
		if e.ThreadID == threadID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Close shuts down the event bus after delivering already accepted events.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()
	<-b.stopped
}

// RingBuffer is a circular buffer for storing recent events.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	size   int
	pos    int
	count  int
}

// NewRingBuffer creates a new ring buffer.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

func (r *RingBuffer) Add(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.pos] = event
	r.pos = (r.pos + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

func (r *RingBuffer) Get(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}

	result := make([]Event, n)
	start := (r.pos - n + r.size) % r.size
	for i := 0; i < n; i++ {
		result[i] = r.events[(start+i)%r.size]
	}
	return result
}

func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = 0
	r.count = 0
}
