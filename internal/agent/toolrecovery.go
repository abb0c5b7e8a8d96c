package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/compose"

	"github.com/anonx3247/aios-chat-sub000/internal/budget"
)

// DefaultMaxToolRetries is the maximum number of times a tool error will be
// converted into a textual result before the error is propagated. The counter
// is tracked per tool name so that different tools have independent budgets.
const DefaultMaxToolRetries = 3

// FatalError marks a tool error that must end the run instead of being
// reported back to the model.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so that the recovery middleware propagates it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// ToolRecoveryConfig configures the tool-call error recovery middleware.
type ToolRecoveryConfig struct {
	// MaxRetries is the number of recoverable errors per tool name.
	// Zero means DefaultMaxToolRetries.
	MaxRetries int
	// ResultCap bounds successful results; zero means budget.DefaultToolResultCap.
	ResultCap int
}

// NewToolRecoveryMiddleware returns an Eino ToolMiddleware that converts tool
// errors into textual results so the model can adjust and retry, and
// truncates oversized results. Fatal errors and the MaxRetries-th failure of a
// tool are propagated, ending the run.
func NewToolRecoveryMiddleware(cfg ToolRecoveryConfig) compose.ToolMiddleware {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxToolRetries
	}
	resultCap := cfg.ResultCap
	if resultCap <= 0 {
		resultCap = budget.DefaultToolResultCap
	}

	var mu sync.Mutex
	counts := make(map[string]int)

	return compose.ToolMiddleware{
		Invokable: func(next compose.InvokableToolEndpoint) compose.InvokableToolEndpoint {
			return func(ctx context.Context, input *compose.ToolInput) (*compose.ToolOutput, error) {
				out, err := next(ctx, input)
				if err == nil {
					// OpenAI/Ollama reject tool_result messages with empty content.
					if out != nil && out.Result == "" {
						out.Result = "[OK]"
					}
					if out != nil {
						out.Result = budget.TruncateToolResult(out.Result, resultCap)
					}
					return out, nil
				}

				var fatal *FatalError
				if errors.As(err, &fatal) {
					slog.Error("tool failed fatally", "tool", input.Name, "error", err)
					return nil, err
				}

				mu.Lock()
				counts[input.Name]++
				count := counts[input.Name]
				mu.Unlock()

				if count >= maxRetries {
					slog.Error("tool error recovery: max retries reached, propagating error",
						"tool", input.Name,
						"attempt", count,
						"max", maxRetries,
						"error", err,
					)
					return nil, err
				}

				slog.Warn("tool error recovery: converting error to result",
					"tool", input.Name,
					"attempt", count,
					"max", maxRetries,
					"error", err,
				)
				return &compose.ToolOutput{Result: formatToolError(input.Name, count, maxRetries, err)}, nil
			}
		},
	}
}

// formatToolError builds the textual error message sent back to the model.
func formatToolError(toolName string, attempt, maxRetries int, err error) string {
	return fmt.Sprintf(
		`[TOOL_ERROR] Tool %q failed (attempt %d/%d): %s
Retry with different parameters, or report the problem in your answer.`,
		toolName, attempt, maxRetries, err,
	)
}
