package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"

	wsclient "github.com/anonx3247/aios-chat-sub000/clients/ws"
	"github.com/anonx3247/aios-chat-sub000/internal/events"
	wsprotocol "github.com/anonx3247/aios-chat-sub000/internal/gateway/ws"
)

// NewAttachCommand returns the attach subcommand.
func NewAttachCommand() *cli.Command {
	return &cli.Command{
		Name:      "attach",
		Usage:     "Follow a thread on the gateway, optionally starting a task",
		ArgsUsage: "[task]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "thread",
				Aliases:  []string{"t"},
				Usage:    "Thread to follow",
				Required: true,
			},
		},
		Action: runAttach,
	}
}

func runAttach(ctx context.Context, cmd *cli.Command) error {
	threadID := cmd.String("thread")
	task := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	client, err := wsclient.Dial(ctx, wsclient.URL(gatewayURL(cmd), threadID))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	frames := make(chan wsprotocol.Frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			f, err := client.ReadFrame()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	var pending string
	if task != "" {
		if pending, err = client.Orchestrate(task); err != nil {
			return fmt.Errorf("send task: %w", err)
		}
	}

	stdin := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		case f := <-frames:
			switch f.Type {
			case wsprotocol.FrameTypeResponse:
				if f.ID == pending && (f.OK == nil || !*f.OK) {
					return fmt.Errorf("orchestrate: %s", f.Error)
				}
			case wsprotocol.FrameTypeEvent:
				var e events.Event
				if err := json.Unmarshal(f.Payload, &e); err != nil {
					continue
				}
				switch e.Type {
				case events.EventPromptRequest:
					p, ok := events.GetPromptRequestPayload(e)
					if !ok {
						continue
					}
					fmt.Fprintf(os.Stderr, "%s\n> ", promptStyle.Render("? "+p.Question))
					value, cancelled := "", true
					if stdin.Scan() {
						value, cancelled = strings.TrimSpace(stdin.Text()), false
					}
					if _, err := client.RespondPrompt(p.Token, value, cancelled); err != nil {
						fmt.Fprintf(os.Stderr, "warning: send prompt response: %v\n", err)
					}
				case events.EventOrchestrationResult:
					res, ok := resultFromEvent(e)
					if !ok {
						continue
					}
					fmt.Print(renderResult(res))
					if task != "" {
						return nil
					}
				default:
					if line := renderEvent(e); line != "" {
						fmt.Fprintln(os.Stderr, line)
					}
				}
			}
		}
	}
}
