package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
)

// NewSecretsCommand returns the secrets subcommand.
func NewSecretsCommand() *cli.Command {
	return &cli.Command{
		Name:  "secrets",
		Usage: "Manage encrypted credentials",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store a credential (value read from the terminal when omitted)",
				ArgsUsage: "<key> [value]",
				Action:    runSecretsSet,
			},
			{
				Name:      "get",
				Usage:     "Print a decrypted credential",
				ArgsUsage: "<key>",
				Action:    runSecretsGet,
			},
			{
				Name:      "delete",
				Usage:     "Remove a credential",
				ArgsUsage: "<key>",
				Action:    runSecretsDelete,
			},
			{
				Name:   "list",
				Usage:  "List known credential keys and whether they are set",
				Action: runSecretsList,
			},
		},
		DefaultCommand: "list",
	}
}

func openSecrets() (*secrets.Store, error) {
	cipher, err := secrets.OpenCipher(secrets.IdentityPath())
	if err != nil {
		return nil, err
	}
	return secrets.NewStore(config.CredentialsPath(), cipher), nil
}

func runSecretsSet(_ context.Context, cmd *cli.Command) error {
	key := cmd.Args().Get(0)
	if key == "" {
		return fmt.Errorf("usage: aios secrets set <key> [value]")
	}
	value := cmd.Args().Get(1)
	if value == "" {
		var err error
		if value, err = readSecret(fmt.Sprintf("%s: ", key)); err != nil {
			return err
		}
	}
	if value == "" {
		return errors.New("empty value")
	}

	store, err := openSecrets()
	if err != nil {
		return err
	}
	if err := store.Set(key, value); err != nil {
		return err
	}
	fmt.Printf("Stored %s.\n", key)
	return nil
}

// readSecret reads a line from the terminal without echo, or a plain line
// when stdin is piped.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read value: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read value: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runSecretsGet(_ context.Context, cmd *cli.Command) error {
	key := cmd.Args().First()
	if key == "" {
		return fmt.Errorf("usage: aios secrets get <key>")
	}
	store, err := openSecrets()
	if err != nil {
		return err
	}
	value, err := store.Get(key)
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

func runSecretsDelete(_ context.Context, cmd *cli.Command) error {
	key := cmd.Args().First()
	if key == "" {
		return fmt.Errorf("usage: aios secrets delete <key>")
	}
	store, err := openSecrets()
	if err != nil {
		return err
	}
	if err := store.Delete(key); err != nil {
		return err
	}
	fmt.Printf("Deleted %s.\n", key)
	return nil
}

func runSecretsList(_ context.Context, _ *cli.Command) error {
	store, err := openSecrets()
	if err != nil {
		return err
	}
	stored, err := store.StoredKeys()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(stored))
	for _, k := range stored {
		set[k] = true
	}
	for _, k := range secrets.Keys {
		mark := mutedStyle.Render("unset")
		if set[k] {
			mark = successStyle.Render("set")
		}
		fmt.Printf("%-20s %s\n", k, mark)
	}
	return nil
}
