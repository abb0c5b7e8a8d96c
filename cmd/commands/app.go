package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/anonx3247/aios-chat-sub000/internal/callbacks"
	"github.com/anonx3247/aios-chat-sub000/internal/config"
	"github.com/anonx3247/aios-chat-sub000/internal/dispatch"
	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/models"
	"github.com/anonx3247/aios-chat-sub000/internal/orchestrator"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/threads"
	"github.com/anonx3247/aios-chat-sub000/internal/tools"
)

// setupLogging installs the default logger on stderr. stdout stays free for
// command output and the MCP stdio transport.
func setupLogging(cmd *cli.Command, quiet bool) {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// app is the assembled orchestration stack shared by serve, run and mcp-serve.
type app struct {
	cfg      *config.Config
	bus      *events.Bus
	store    *sessions.Store
	models   *models.Registry
	tools    *tools.Registry
	pipeline *orchestrator.Pipeline
	prompter *events.Prompter
	threads  *threads.Store
	secrets  *secrets.Store
	metrics  *orchestrator.Metrics
	registry *prometheus.Registry
}

// eino callback handlers are process-global.
var installCallbacks sync.Once

// newApp wires every component. withThreads opens the conversation database
// so runs see and extend their thread history.
func newApp(ctx context.Context, cfg *config.Config, withThreads bool) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = orchestrator.MustNewMetrics(a.registry)
	installCallbacks.Do(func() {
		einocallbacks.AppendGlobalHandlers(callbacks.NewHandler(a.metrics))
	})

	a.bus = events.NewBus(cfg.Events.BufferSize)
	a.store = sessions.NewStore(sessions.NewMemoryRepository(), a.bus)
	a.prompter = events.NewPrompter(a.bus)

	cipher, err := secrets.OpenCipher(secrets.IdentityPath())
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open credential cipher: %w", err)
	}
	a.secrets = secrets.NewStore(config.CredentialsPath(), cipher)

	a.models = models.NewRegistry(cfg.Models)
	provider := a.models.DefaultName()
	if provider == "" {
		a.Close(ctx)
		return nil, fmt.Errorf("no model provider configured")
	}

	a.tools, err = tools.Setup(ctx, cfg.Tools)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("setup tools: %w", err)
	}

	o := cfg.Orchestrator
	runner := models.NewRunner(a.models, models.RunnerConfigFrom(provider, o))
	dispatcher := dispatch.New(dispatch.Config{
		Runner:          runner,
		Tools:           a.tools,
		Store:           a.store,
		Publisher:       a.bus,
		MaxWorkers:      o.MaxWorkers,
		ExploreMaxSteps: o.ExploreMaxSteps,
		ExecuteMaxSteps: o.WorkerMaxSteps,
	})

	deps := orchestrator.Deps{
		Store:      a.store,
		Publisher:  a.bus,
		Runner:     runner,
		Dispatcher: dispatcher,
		Tools:      a.tools,
		Prompter:   a.prompter,
		Metrics:    a.metrics,
	}
	if withThreads {
		a.threads, err = threads.Open(cfg.Storage.DBPath)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("open threads: %w", err)
		}
		deps.Transcript = threads.NewConversations(a.threads, a.bus.SubscribeThread, o.ToolResultCap)
	}

	a.pipeline = orchestrator.New(deps, orchestrator.Config{
		PlanMaxSteps:    o.PlanMaxSteps,
		ExecuteMaxSteps: o.ExecuteMaxSteps,
		ContextWindow:   runner.ContextWindow(),
	})
	slog.Debug("orchestrator ready", "provider", provider, "tools", len(a.tools.Names()))
	return a, nil
}

// credentials returns the stored credentials, logging read failures.
func (a *app) credentials() secrets.Credentials {
	creds, err := a.secrets.All()
	if err != nil {
		slog.Warn("load stored credentials", "error", err)
		return secrets.Credentials{}
	}
	return creds
}

// activeSessions counts sessions that have not reached a terminal status.
func (a *app) activeSessions() int {
	n := 0
	for _, s := range a.store.List() {
		if !s.Status.Terminal() {
			n++
		}
	}
	return n
}

// Close releases everything newApp opened. Safe on a partially built app.
func (a *app) Close(ctx context.Context) {
	if a.tools != nil {
		a.tools.Close(ctx)
	}
	if a.threads != nil {
		if err := a.threads.Close(); err != nil {
			slog.Warn("close threads", "error", err)
		}
	}
	if a.bus != nil {
		a.bus.Close()
	}
}
