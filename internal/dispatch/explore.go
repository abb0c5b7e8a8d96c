package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/tools"
)

const submitFindings = "submit_findings"

// Explore runs one unattended read-only worker per prompt. A worker that never
// calls submit_findings falls back to the text it generated.
func (d *Dispatcher) Explore(ctx context.Context, sessionID, threadID string, prompts []string) ([]Outcome, error) {
	requests := make([]any, len(prompts))
	for i, p := range prompts {
		requests[i] = p
	}
	return d.fanOut(ctx, events.BatchExploration, sessionID, threadID, requests, func(ctx context.Context, i int) Outcome {
		return d.explore(ctx, sessionID, threadID, i, prompts[i])
	})
}

func (d *Dispatcher) explore(ctx context.Context, sessionID, threadID string, i int, prompt string) Outcome {
	name := fmt.Sprintf("explorer-%d", i+1)
	findings := &submission{}

	var capabilities []tool.InvokableTool
	if d.cfg.Tools != nil {
		capabilities = d.cfg.Tools.ReadOnly()
	}
	capabilities = append(capabilities, findings.tool())

	res, err := d.cfg.Runner.Run(events.ContextWithAgent(ctx, name), agent.Request{
		Name:           name,
		Instruction:    exploreInstruction,
		Messages:       []*schema.Message{schema.UserMessage(prompt)},
		Tools:          capabilities,
		MaxSteps:       d.cfg.ExploreMaxSteps,
		ReturnDirectly: []string{submitFindings},
		OnEvent:        d.stream(threadID, sessionID, name),
	})

	if text, ok := findings.get(); ok {
		return Outcome{Success: true, Summary: text}
	}
	if err != nil && !errors.Is(err, agent.ErrStepLimit) {
		return failed(fmt.Sprintf("Error: exploration failed: %v", err), err)
	}
	if raw := strings.TrimSpace(strings.Join(res.Transcript, "\n\n")); raw != "" {
		return Outcome{Success: true, Summary: raw}
	}
	if err != nil {
		return failed("Error: explorer ran out of steps without findings", err)
	}
	return failed("Error: explorer produced no findings", nil)
}

// submission captures the argument of a terminal capability.
type submission struct {
	mu   sync.Mutex
	text string
	done bool
}

func (s *submission) get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.done
}

type findingsInput struct {
	Findings string `json:"findings"`
}

func (s *submission) tool() tool.InvokableTool {
	spec := tools.ToolSpec{
		Name:        submitFindings,
		Description: "Submit your findings. This ends your run; call it exactly once when you have the answer.",
		Parameters: map[string]tools.ParamSpec{
			"findings": {Type: "string", Description: "Concise, factual findings with sources where relevant", Required: true},
		},
	}
	return tools.NewFunc(spec, func(_ context.Context, in findingsInput) (any, error) {
		if strings.TrimSpace(in.Findings) == "" {
			return nil, fmt.Errorf("%s: findings must not be empty", submitFindings)
		}
		s.mu.Lock()
		s.text, s.done = in.Findings, true
		s.mu.Unlock()
		return "Findings submitted.", nil
	})
}
