package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/urfave/cli/v3"
)

func credentialsCommand() *cli.Command {
	return &cli.Command{
		Name:  "credentials",
		Usage: "Manage secrets in the encrypted credential store",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store a secret; reads it from stdin when VALUE is omitted",
				ArgsUsage: "KEY [VALUE]",
				Action:    setCredentialAction,
			},
			{
				Name:      "delete",
				Usage:     "Remove a stored secret",
				ArgsUsage: "KEY",
				Action:    deleteCredentialAction,
			},
		},
	}
}

func setCredentialAction(ctx context.Context, cmd *cli.Command) error {
	key := cmd.Args().Get(0)
	if key == "" {
		return errors.New(errors.ErrCodeMissingParameter, "credential key is required")
	}

	value := cmd.Args().Get(1)
	if cmd.Args().Len() < 2 {
		read, err := readSecret(cmd)
		if err != nil {
			return err
		}

		value = read
	}

	if value == "" {
		return errors.Newf(errors.ErrCodeMissingParameter, "no value given for credential %s", key)
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	if err := store.Save(ctx, key, value); err != nil {
		return err
	}

	fmt.Fprintln(stdout(cmd), SuccessStyle.Render("Saved credential "+key))

	return nil
}

func deleteCredentialAction(ctx context.Context, cmd *cli.Command) error {
	key := cmd.Args().Get(0)
	if key == "" {
		return errors.New(errors.ErrCodeMissingParameter, "credential key is required")
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, key); err != nil {
		return err
	}

	fmt.Fprintln(stdout(cmd), SuccessStyle.Render("Deleted credential "+key))

	return nil
}

func readSecret(cmd *cli.Command) (string, error) {
	reader := cmd.Root().Reader
	if reader == nil {
		reader = os.Stdin
	}

	line, err := bufio.NewReader(reader).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "failed to read credential value", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
