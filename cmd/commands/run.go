package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/threads"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Plan and execute a task locally, streaming progress",
		ArgsUsage: "<task>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "thread",
				Aliases: []string{"t"},
				Usage:   "Thread to continue (empty = new thread)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Only print the final result",
			},
		},
		Action: runRun,
	}
}

func runRun(ctx context.Context, cmd *cli.Command) error {
	task := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if task == "" {
		return fmt.Errorf("usage: aios run <task>")
	}
	setupLogging(cmd, true)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	var thread *threads.Thread
	if id := cmd.String("thread"); id != "" {
		thread, err = a.threads.EnsureThread(ctx, id, truncate(task, 60))
	} else {
		thread, err = a.threads.CreateThread(ctx, truncate(task, 60))
	}
	if err != nil {
		return fmt.Errorf("open thread: %w", err)
	}
	fmt.Fprintln(os.Stderr, mutedStyle.Render("thread: "+thread.ID))

	prompts := make(chan events.PromptRequestPayload, 4)
	quiet := cmd.Bool("quiet")
	unsubscribe := a.bus.SubscribeThread(thread.ID, func(e events.Event) {
		if e.Type == events.EventPromptRequest {
			if p, ok := events.GetPromptRequestPayload(e); ok {
				prompts <- p
			}
			return
		}
		if quiet {
			return
		}
		if line := renderEvent(e); line != "" {
			fmt.Fprintln(os.Stderr, line)
		}
	})
	defer unsubscribe()

	run, err := a.pipeline.Launch(ctx, thread.ID, task, a.credentials())
	if err != nil {
		return err
	}

	stdin := bufio.NewScanner(os.Stdin)
	for {
		select {
		case p := <-prompts:
			fmt.Fprintf(os.Stderr, "%s\n> ", promptStyle.Render("? "+p.Question))
			resp := events.PromptResponsePayload{Token: p.Token, Cancelled: true}
			if stdin.Scan() {
				resp.Value = strings.TrimSpace(stdin.Text())
				resp.Cancelled = false
			}
			a.prompter.Respond(resp)
		case <-run.Done():
			res := run.Wait()
			fmt.Print(renderResult(res))
			if !res.Success {
				return fmt.Errorf("orchestration failed")
			}
			return nil
		}
	}
}
