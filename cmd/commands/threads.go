package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

// NewThreadsCommand returns the threads subcommand.
func NewThreadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "threads",
		Usage: "Manage conversation threads",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all threads",
				Action: runThreadsList,
			},
			{
				Name:      "create",
				Usage:     "Create a thread",
				ArgsUsage: "[title]",
				Action:    runThreadsCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a thread and its history",
				ArgsUsage: "<thread_id>",
				Action:    runThreadsDelete,
			},
			{
				Name:      "messages",
				Usage:     "Show the messages of a thread",
				ArgsUsage: "<thread_id>",
				Action:    runThreadsMessages,
			},
		},
		DefaultCommand: "list",
	}
}

func runThreadsList(ctx context.Context, cmd *cli.Command) error {
	list, err := apiClient(cmd).ListThreads(ctx)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No threads found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tTITLE")
	for _, th := range list {
		title := th.Title
		if title == "" {
			title = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", th.ID, th.UpdatedAt.Local().Format("2006-01-02 15:04"), title)
	}
	return w.Flush()
}

func runThreadsCreate(ctx context.Context, cmd *cli.Command) error {
	th, err := apiClient(cmd).CreateThread(ctx, strings.Join(cmd.Args().Slice(), " "))
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	fmt.Println(th.ID)
	return nil
}

func runThreadsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: aios threads delete <thread_id>")
	}
	if err := apiClient(cmd).DeleteThread(ctx, id); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	fmt.Println("Deleted.")
	return nil
}

func runThreadsMessages(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: aios threads messages <thread_id>")
	}
	msgs, err := apiClient(cmd).Messages(ctx, id)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		fmt.Println("No messages in this thread.")
		return nil
	}
	for _, m := range msgs {
		fmt.Printf("%s %s: %s\n", mutedStyle.Render(m.CreatedAt.Local().Format("15:04:05")), roleStyle(m.Role).Render(m.Role), m.Content)
		for _, call := range m.ToolInvocations {
			fmt.Println(toolStyle.Render("    · " + call.ToolName))
		}
	}
	return nil
}
