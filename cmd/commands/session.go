package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/anonx3247/aios-chat-sub000/clients/api"
)

// NewSessionCommand returns the session subcommand.
func NewSessionCommand() *cli.Command {
	return &cli.Command{
		Name:      "session",
		Usage:     "Print the current session of a thread as YAML",
		ArgsUsage: "<thread_id>",
		Action:    runSession,
	}
}

func runSession(ctx context.Context, cmd *cli.Command) error {
	threadID := cmd.Args().First()
	if threadID == "" {
		return fmt.Errorf("usage: aios session <thread_id>")
	}
	sess, err := apiClient(cmd).Session(ctx, threadID)
	if errors.Is(err, api.ErrNotFound) {
		fmt.Println("No session for this thread.")
		return nil
	}
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(sess)
}
