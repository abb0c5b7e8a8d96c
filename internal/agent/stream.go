package agent

import "fmt"

// StreamEvent is one observation of a running agent. The set of variants is
// closed: TextDelta, ToolCall, ToolResult and Finish.
type StreamEvent interface {
	streamEvent()
}

// TextDelta is a chunk of generated text.
type TextDelta struct {
	Text string
}

// ToolCall is a capability invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResult is the output returned to the model for a tool call.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Finish ends a run. Err is nil on normal completion.
type Finish struct {
	Text  string
	Steps int
	Err   error
}

func (TextDelta) streamEvent()  {}
func (ToolCall) streamEvent()   {}
func (ToolResult) streamEvent() {}
func (Finish) streamEvent()     {}

// StreamHandler handles every StreamEvent variant. Implementing it is the
// compile-time guarantee that no variant is forgotten.
type StreamHandler interface {
	OnTextDelta(TextDelta)
	OnToolCall(ToolCall)
	OnToolResult(ToolResult)
	OnFinish(Finish)
}

// Dispatch routes ev to the matching handler method.
func Dispatch(ev StreamEvent, h StreamHandler) {
	switch e := ev.(type) {
	case TextDelta:
		h.OnTextDelta(e)
	case ToolCall:
		h.OnToolCall(e)
	case ToolResult:
		h.OnToolResult(e)
	case Finish:
		h.OnFinish(e)
	default:
		panic(fmt.Sprintf("agent: unknown stream event %T", ev))
	}
}

// HandlerFunc builds an OnEvent callback from a StreamHandler.
func HandlerFunc(h StreamHandler) func(StreamEvent) {
	return func(ev StreamEvent) { Dispatch(ev, h) }
}
