package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rxtech-lab/lean-toolbox/internal/api"
	"github.com/rxtech-lab/lean-toolbox/internal/jobs"
	"github.com/rxtech-lab/lean-toolbox/internal/service"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the job API: start, list and stop downloads and read snapshots over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "Listen address",
				Value: "127.0.0.1:8080",
			},
			&cli.StringFlag{
				Name:  "jobs-file",
				Usage: "Job table file (default: user config directory)",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Data provider used by every job",
				Value: string(provider.ProviderSynthetic),
			},
			&cli.StringFlag{
				Name:  "provider-config",
				Usage: "Provider configuration as JSON",
				Value: "{}",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}

	log := env.logger
	defer log.Sync() //nolint:errcheck // nothing useful to do with a failed flush

	jobsFile := cmd.String("jobs-file")
	if jobsFile == "" {
		jobsFile, err = jobs.DefaultStorePath()
		if err != nil {
			return err
		}
	}

	clientConfig, err := providerClientConfig(cmd.String("provider"), cmd.String("provider-config"), env.cfg)
	if err != nil {
		return err
	}

	client, err := marketdata.NewClient(clientConfig, log, nil)
	if err != nil {
		return err
	}

	manager := jobs.NewManager(ctx, jobs.NewFileStore(jobsFile), log)
	downloads := service.NewDownloadService(manager, client, log)
	server := api.NewServer(downloads, lean.NewSnapshotLoader(log), log)

	if err := server.Start(cmd.String("address")); err != nil {
		manager.Close()

		return err
	}

	fmt.Fprintln(stdout(cmd), SuccessStyle.Render("Listening on http://"+server.Address()))
	log.Info("Job table", zap.String("path", jobsFile))

	<-ctx.Done()

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	stopErr := server.Stop(shutdownCtx)

	downloads.Shutdown(shutdownCtx)
	manager.Close()

	return stopErr
}
