// Package agent runs language-model agents with a capability set and a step budget.
package agent

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ErrStepLimit is returned when a run exhausts its step budget. The Result
// returned alongside it carries the text generated so far.
var ErrStepLimit = errors.New("agent: step limit reached")

// Request describes one agent run.
type Request struct {
	// Name identifies the agent in events and logs ("planner", "explorer-1", ...).
	Name        string
	Instruction string
	Messages    []*schema.Message
	Tools       []tool.InvokableTool
	// MaxSteps caps model turns; zero uses the runtime default.
	MaxSteps int
	// ReturnDirectly names tools whose invocation ends the run.
	ReturnDirectly []string
	// OnEvent receives every StreamEvent in order. May be nil.
	OnEvent func(StreamEvent)
}

// Result is the outcome of a run.
type Result struct {
	// Text is the last assistant narration.
	Text string
	// Transcript is every assistant text segment, in order.
	Transcript []string
	Steps      int
}

// Runner invokes the language model service.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req Request) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

func (r Request) emit(ev StreamEvent) {
	if r.OnEvent != nil {
		r.OnEvent(ev)
	}
}
