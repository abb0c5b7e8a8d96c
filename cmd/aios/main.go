package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/anonx3247/aios-chat-sub000/cmd/commands"
	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

func main() {
	if err := config.LoadDotenv(config.DotenvPath()); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}

	cmd := commands.NewRootCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
