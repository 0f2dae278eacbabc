package main

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/lean-toolbox/internal/config"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata"
	"github.com/urfave/cli/v3"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the config file, or of a provider's configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Print the schema for this provider instead",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			var (
				schema string
				err    error
			)

			if name := cmd.String("provider"); name != "" {
				schema, err = marketdata.GetProviderConfigSchema(name)
			} else {
				schema, err = config.Schema()
			}

			if err != nil {
				return err
			}

			fmt.Fprintln(stdout(cmd), schema)

			return nil
		},
	}
}
