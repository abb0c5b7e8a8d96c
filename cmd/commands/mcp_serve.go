package commands

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"

	aiosmcp "github.com/anonx3247/aios-chat-sub000/internal/mcp"
	"github.com/anonx3247/aios-chat-sub000/internal/orchestrator"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose the orchestrator and read-only tools as an MCP server (stdio)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "filter",
				UsageText: "Plugin or tool name to expose (empty = all read-only tools)",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the MCP transport.
	setupLogging(cmd, true)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	filter := cmd.StringArg("filter")
	slog.Debug("starting MCP server", "filter", filter, "tools", len(a.tools.Names()))

	server := aiosmcp.NewServer(&mcpOrchestrator{app: a}, a.tools, filter)
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

// mcpOrchestrator records MCP runs as threads and applies stored credentials.
type mcpOrchestrator struct {
	app *app
}

func (m *mcpOrchestrator) StartOrchestration(ctx context.Context, threadID, task string, creds secrets.Credentials) (orchestrator.Result, error) {
	if _, err := m.app.threads.EnsureThread(ctx, threadID, truncate(task, 60)); err != nil {
		return orchestrator.Result{}, err
	}
	return m.app.pipeline.StartOrchestration(ctx, threadID, task, m.app.credentials().Merge(creds))
}

func (m *mcpOrchestrator) SessionSnapshot(threadID string) (*sessions.Session, bool) {
	return m.app.pipeline.SessionSnapshot(threadID)
}
