package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
	"github.com/anonx3247/aios-chat-sub000/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show aios gateway status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			status, hb, err := heartbeat.Check(config.HeartbeatPath(), heartbeatMaxAge)
			if err != nil {
				return fmt.Errorf("check heartbeat: %w", err)
			}

			switch status {
			case heartbeat.StatusAlive:
				health := successStyle.Render("healthy")
				if err := apiClient(cmd).Health(ctx); err != nil {
					health = errorStyle.Render("unreachable: " + err.Error())
				}
				fmt.Printf("Gateway: %s on %s (PID %d, uptime %s) %s\n",
					successStyle.Render("ALIVE"), hb.Addr, hb.PID, hb.Uptime(), health)
				fmt.Printf("Active sessions: %d, websocket clients: %d\n", hb.ActiveSessions, hb.WSClients)
			case heartbeat.StatusStale:
				fmt.Printf("Gateway: %s (PID %d, last heartbeat %s ago)\n",
					errorStyle.Render("STALE"), hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
			case heartbeat.StatusDead:
				fmt.Println("Gateway: " + mutedStyle.Render("NOT RUNNING"))
			}
			return nil
		},
	}
}
