package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "aios",
		Usage: "Multi-agent task orchestrator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.StringFlag{
				Name:    "gateway",
				Usage:   "Gateway base URL (default: discovered from the heartbeat file)",
				Sources: cli.EnvVars("AIOS_GATEWAY"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewRunCommand(),
			NewAttachCommand(),
			NewSessionCommand(),
			NewThreadsCommand(),
			NewSecretsCommand(),
			NewStatusCommand(),
			NewMCPServeCommand(),
		},
	}
}
