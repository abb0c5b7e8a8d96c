package agent

import (
	"unicode/utf8"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
)

// maxEventResult bounds tool results copied into passthrough events.
const maxEventResult = 4096

// EventStream republishes a run's stream events on the notification channel.
// Text deltas become assistant_stream, tool calls and results pass through.
type EventStream struct {
	Pub       events.Publisher
	Source    events.EventSource
	ThreadID  string
	SessionID string
	Agent     string
	// Finished is called with the Finish event. May be nil.
	Finished func(Finish)
}

var _ StreamHandler = (*EventStream)(nil)

func (s *EventStream) publish(p events.EventPayload) {
	if s.Pub == nil {
		return
	}
	s.Pub.Publish(events.NewTypedEventWithSession(s.Source, s.ThreadID, s.SessionID, p))
}

func (s *EventStream) OnTextDelta(e TextDelta) {
	s.publish(events.AssistantStreamPayload{Agent: s.Agent, Content: e.Text})
}

func (s *EventStream) OnToolCall(e ToolCall) {
	s.publish(events.ToolCallPayload{Agent: s.Agent, CallID: e.ID, Name: e.Name, Arguments: e.Arguments})
}

func (s *EventStream) OnToolResult(e ToolResult) {
	s.publish(events.ToolResultPayload{Agent: s.Agent, CallID: e.CallID, Name: e.Name, Result: clip(e.Content, maxEventResult)})
}

func (s *EventStream) OnFinish(e Finish) {
	if s.Finished != nil {
		s.Finished(e)
	}
}

// clip cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
