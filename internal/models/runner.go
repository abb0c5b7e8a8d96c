package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonx3247/aios-chat-sub000/internal/agent"
	"github.com/anonx3247/aios-chat-sub000/internal/budget"
	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

// minTarget keeps small-window models usable when the reserve eats most of the window.
const minTarget = 1024

// RunnerConfig tunes every run made through a Runner.
type RunnerConfig struct {
	// Provider names the model provider; empty uses the registry default.
	Provider        string
	ToolResultCap   int
	CharsPerToken   int
	ResponseReserve int
	MaxToolRetries  int
	Streaming       bool
}

// RunnerConfigFrom maps orchestrator settings onto a RunnerConfig.
func RunnerConfigFrom(provider string, o config.OrchestratorConfig) RunnerConfig {
	return RunnerConfig{
		Provider:        provider,
		ToolResultCap:   o.ToolResultCap,
		CharsPerToken:   o.CharsPerToken,
		ResponseReserve: o.ResponseReserve,
	}
}

// Runner resolves the provider on every run so credentials attached to the
// run's context pick the matching client.
type Runner struct {
	reg *Registry
	cfg RunnerConfig
}

var _ agent.Runner = (*Runner)(nil)

// NewRunner creates an agent.Runner backed by the registry.
func NewRunner(reg *Registry, cfg RunnerConfig) *Runner {
	return &Runner{reg: reg, cfg: cfg}
}

// ContextWindow reports the window of the configured provider.
func (r *Runner) ContextWindow() int {
	return r.reg.ContextWindow(r.cfg.Provider)
}

func (r *Runner) Run(ctx context.Context, req agent.Request) (agent.Result, error) {
	p, err := r.reg.Resolve(ctx, r.cfg.Provider)
	if err != nil {
		return agent.Result{}, err
	}

	runner := agent.NewEinoRunner(agent.EinoConfig{
		Model:          p.Model,
		Budget:         r.budgetFor(p),
		ToolResultCap:  r.cfg.ToolResultCap,
		MaxToolRetries: r.cfg.MaxToolRetries,
		Streaming:      r.cfg.Streaming,
	})
	res, err := runner.Run(ctx, req)
	if err != nil && !errors.Is(err, agent.ErrStepLimit) {
		var fatal *agent.FatalError
		if !errors.As(err, &fatal) {
			err = fmt.Errorf("%s: %w", p.Name, HandleError(err))
		}
	}
	return res, err
}

func (r *Runner) budgetFor(p *Provider) *agent.BudgetConfig {
	reserve := r.cfg.ResponseReserve
	if p.Config.MaxTokens > reserve {
		reserve = p.Config.MaxTokens
	}
	target := p.ContextWindow - reserve
	if target < minTarget {
		target = minTarget
	}
	return &agent.BudgetConfig{
		Budgeter: budget.Budgeter{
			Oracle:    p.Oracle,
			Heuristic: budget.Heuristic{CharsPerToken: r.cfg.CharsPerToken},
		},
		Target: target,
	}
}
