package events

import "sync"

// Recorder is a synchronous Publisher that keeps every event in memory.
// It backs `aios run` progress output and package tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	onPub  func(Event)
}

// NewRecorder creates a Recorder. onPublish, when non-nil, is called for each event.
func NewRecorder(onPublish func(Event)) *Recorder {
	return &Recorder{onPub: onPublish}
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	fn := r.onPub
	r.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of the given types, in publish order.
func (r *Recorder) OfType(types ...EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		for _, t := range types {
			if e.Type == t {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Tee fans every event out to several publishers.
type Tee []Publisher

func (t Tee) Publish(e Event) {
	for _, p := range t {
		p.Publish(e)
	}
}
