package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "lean-toolbox",
		Usage: "Download historical bars into the LEAN data layout and inspect them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "JSON or YAML config file path (optional)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:    "credentials-dir",
				Usage:   "Directory of the encrypted credential store",
				Sources: cli.EnvVars("LEAN_TOOLBOX_CREDENTIALS_DIR"),
			},
		},
		Commands: []*cli.Command{
			downloadCommand(),
			snapshotCommand(),
			serveCommand(),
			schemaCommand(),
			credentialsCommand(),
			versionCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp().Run(ctx, os.Args)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
