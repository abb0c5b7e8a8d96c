package commands

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/anonx3247/aios-chat-sub000/clients/api"
	"github.com/anonx3247/aios-chat-sub000/internal/config"
	"github.com/anonx3247/aios-chat-sub000/internal/heartbeat"
)

const heartbeatMaxAge = 2 * time.Minute

// gatewayURL locates the gateway: the --gateway flag, then a live heartbeat,
// then the configured listen address.
func gatewayURL(cmd *cli.Command) string {
	if u := cmd.String("gateway"); u != "" {
		return u
	}
	if status, hb, err := heartbeat.Check(config.HeartbeatPath(), heartbeatMaxAge); err == nil && status == heartbeat.StatusAlive && hb.Addr != "" {
		return hb.URL()
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		cfg = &config.Config{}
		cfg.Gateway.Host, cfg.Gateway.Port = "127.0.0.1", 18430
	}
	return fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
}

func apiClient(cmd *cli.Command) *api.Client {
	return api.New(gatewayURL(cmd))
}
