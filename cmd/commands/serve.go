package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
	"github.com/anonx3247/aios-chat-sub000/internal/gateway"
	"github.com/anonx3247/aios-chat-sub000/internal/heartbeat"
	"github.com/anonx3247/aios-chat-sub000/internal/scheduler"
	"github.com/anonx3247/aios-chat-sub000/internal/storage"
)

// janitorMinAge keeps freshly finished sessions visible to clients.
const janitorMinAge = 5 * time.Minute

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the aios gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, false)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	eventLog := storage.NewEventLog(cfg.Storage.EventLogDir, a.bus.Subscribe)
	defer eventLog.Close()

	janitor, err := scheduler.NewJanitor(a.store, cfg.Janitor.Schedule, janitorMinAge)
	if err != nil {
		return fmt.Errorf("janitor: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	server := gateway.NewServer(gateway.Deps{
		Bus:          a.bus,
		Orchestrator: a.pipeline,
		Threads:      a.threads,
		Prompter:     a.prompter,
		Secrets:      a.secrets,
		EventLog:     eventLog,
		Metrics:      promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	}, cfg.Gateway.Host, cfg.Gateway.Port)

	// Reload rereads .env and the config file; changes apply to new model
	// clients, the running server keeps its listen address.
	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), cfg)
	reloader.OnReload(func(c *config.Config) {
		slog.Info("config reloaded; restart to apply tool and gateway changes", "default_model", c.Models.Default)
	})
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reloader.Watch(ctx, hup)

	beat := heartbeat.NewWriter(config.HeartbeatPath(), server.Addr(), heartbeat.DefaultInterval, func() heartbeat.Stats {
		return heartbeat.Stats{ActiveSessions: a.activeSessions(), WSClients: server.ClientCount()}
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	if err := beat.Start(); err != nil {
		slog.Warn("heartbeat disabled", "error", err)
	}
	defer beat.Stop()

	slog.Info("aios ready", "addr", server.Addr(), "janitor", janitor.Schedule())

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
