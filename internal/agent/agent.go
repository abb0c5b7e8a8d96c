package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// DefaultMaxSteps is used when a Request leaves MaxSteps at zero.
const DefaultMaxSteps = 20

// EinoConfig configures the ADK-backed Runner.
type EinoConfig struct {
	Model model.ToolCallingChatModel
	// Budget trims the transcript before each model call. Nil disables trimming.
	Budget *BudgetConfig
	// ToolResultCap truncates oversized tool results; zero uses the budget default.
	ToolResultCap int
	// MaxToolRetries bounds tool errors converted to text per tool name.
	MaxToolRetries int
	Streaming      bool
}

// EinoRunner runs each Request as a fresh ADK ChatModelAgent (ReAct loop).
type EinoRunner struct {
	cfg EinoConfig
}

// NewEinoRunner creates a Runner over an eino tool-calling chat model.
func NewEinoRunner(cfg EinoConfig) *EinoRunner {
	return &EinoRunner{cfg: cfg}
}

var _ Runner = (*EinoRunner)(nil)

// Run executes req until the model stops calling tools, a return-directly
// tool fires, or the step budget is exhausted.
func (r *EinoRunner) Run(ctx context.Context, req Request) (Result, error) {
	if r.cfg.Model == nil {
		return Result{}, fmt.Errorf("agent %s: no chat model configured", req.Name)
	}
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	mws := []adk.AgentMiddleware{{
		WrapToolCall: NewToolRecoveryMiddleware(ToolRecoveryConfig{
			MaxRetries: r.cfg.MaxToolRetries,
			ResultCap:  r.cfg.ToolResultCap,
		}),
	}}
	if r.cfg.Budget != nil {
		bc := *r.cfg.Budget
		bc.Tools = toolInfos(ctx, req.Tools)
		mws = append(mws, NewBudgetMiddleware(bc))
	}

	cfg := &adk.ChatModelAgentConfig{
		Name:          req.Name,
		Description:   "aios orchestration agent " + req.Name,
		Instruction:   req.Instruction,
		Model:         r.cfg.Model,
		MaxIterations: maxSteps,
		Middlewares:   mws,
	}
	if len(req.Tools) > 0 {
		baseTools := make([]tool.BaseTool, len(req.Tools))
		for i, t := range req.Tools {
			baseTools[i] = t
		}
		cfg.ToolsConfig.Tools = baseTools
	}
	if len(req.ReturnDirectly) > 0 {
		cfg.ToolsConfig.ReturnDirectly = make(map[string]bool, len(req.ReturnDirectly))
		for _, name := range req.ReturnDirectly {
			cfg.ToolsConfig.ReturnDirectly[name] = true
		}
	}

	chatAgent, err := adk.NewChatModelAgent(ctx, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("agent %s: %w", req.Name, err)
	}
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent:           chatAgent,
		EnableStreaming: r.cfg.Streaming,
	})

	res, err := consumeRunnerOutput(req, runner.Run(ctx, req.Messages))
	req.emit(Finish{Text: res.Text, Steps: res.Steps, Err: err})
	return res, err
}

func toolInfos(ctx context.Context, tools []tool.InvokableTool) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			slog.Warn("tool info unavailable for budget", "error", err)
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

func consumeRunnerOutput(req Request, iter *adk.AsyncIterator[*adk.AgentEvent]) (Result, error) {
	var res Result
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			if isStepLimit(event.Err) {
				slog.Warn("agent step limit reached", "agent", req.Name, "steps", res.Steps)
				return res, fmt.Errorf("%w: %v", ErrStepLimit, event.Err)
			}
			return res, event.Err
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}

		mv := event.Output.MessageOutput
		msg, err := messageOf(req, mv)
		if err != nil {
			return res, err
		}
		if msg == nil {
			continue
		}

		if mv.Role == schema.Tool {
			req.emit(ToolResult{CallID: msg.ToolCallID, Name: mv.ToolName, Content: msg.Content})
			continue
		}

		res.Steps++
		for _, tc := range msg.ToolCalls {
			req.emit(ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}
		if text := strings.TrimSpace(msg.Content); text != "" {
			res.Text = text
			res.Transcript = append(res.Transcript, text)
		}
	}
	return res, nil
}

// messageOf materializes a message variant. Streamed assistant chunks are
// forwarded as TextDelta events while being concatenated.
func messageOf(req Request, mv *adk.MessageVariant) (*schema.Message, error) {
	if !mv.IsStreaming {
		return mv.Message, nil
	}
	if mv.MessageStream == nil {
		return nil, nil
	}
	defer mv.MessageStream.Close()

	var chunks []*schema.Message
	for {
		chunk, err := mv.MessageStream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("agent %s: stream: %w", req.Name, err)
		}
		if chunk == nil {
			continue
		}
		if mv.Role != schema.Tool && chunk.Content != "" {
			req.emit(TextDelta{Text: chunk.Content})
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return schema.ConcatMessages(chunks)
}

func isStepLimit(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "max iteration") ||
		strings.Contains(s, "exceeds max") ||
		strings.Contains(s, "max step")
}
