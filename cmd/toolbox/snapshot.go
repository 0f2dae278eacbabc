package main

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata/writer"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func snapshotCommand() *cli.Command {
	defaults := lean.DefaultSnapshotRequest(civil.DateOf(time.Now()))

	return &cli.Command{
		Name:  "snapshot",
		Usage: "Print one page of bars read back from LEAN archives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Trading symbol",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "resolution",
				Aliases: []string{"r"},
				Usage:   "Data resolution",
				Value:   defaults.Resolution,
			},
			&cli.StringFlag{
				Name:    "security-type",
				Aliases: []string{"t"},
				Usage:   "Security type",
				Value:   defaults.SecurityType,
			},
			&cli.StringFlag{
				Name:     "data-dir",
				Aliases:  []string{"d"},
				Usage:    "LEAN data directory",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:  "start",
				Usage: "First date in `YYYY-MM-DD` format (default: 7 days ago)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:  "end",
				Usage: "Last date in `YYYY-MM-DD` format, inclusive (default: today)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page number, starting at 1",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Records per page",
				Value: lean.DefaultPageSize,
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write every record in the window to this Parquet file",
			},
		},
		Action: snapshotAction,
	}
}

func snapshotAction(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}

	log := env.logger
	defer log.Sync() //nolint:errcheck // nothing useful to do with a failed flush

	req := lean.DefaultSnapshotRequest(civil.DateOf(time.Now()))
	req.Symbol = cmd.String("symbol")
	req.Resolution = cmd.String("resolution")
	req.SecurityType = cmd.String("security-type")
	req.DataDirectory = cmd.String("data-dir")
	req.PageNumber = int(cmd.Int("page"))
	req.PageSize = int(cmd.Int("page-size"))

	if cmd.IsSet("start") {
		req.StartDate = civil.DateOf(cmd.Timestamp("start"))
	}

	if cmd.IsSet("end") {
		req.EndDate = civil.DateOf(cmd.Timestamp("end"))
	}

	loader := lean.NewSnapshotLoader(log)

	page, err := loader.Load(ctx, req)
	if err != nil {
		return err
	}

	w := stdout(cmd)
	snapshot := page.Snapshot

	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("%s %s  %s to %s", snapshot.Symbol, snapshot.Resolution, snapshot.StartDate, snapshot.EndDate)))
	fmt.Fprintln(w, HelpStyle.Render(fmt.Sprintf("Page %d of %d  (%d records, %d files)", page.PageNumber, page.TotalPages(), page.TotalRecords, len(snapshot.SourceFiles))))

	if snapshot.RecordCount() > 0 {
		fmt.Fprintln(w, NewBarTable(snapshot.Records()).View())
	} else {
		fmt.Fprintln(w, HelpStyle.Render("No records on this page"))
	}

	exportPath := cmd.String("export")
	if exportPath == "" {
		return nil
	}

	// The export covers the whole window, so reload it as a single page.
	req.PageNumber = 1
	req.PageSize = max(page.TotalRecords, 1)

	all, err := loader.Load(ctx, req)
	if err != nil {
		return err
	}

	path, err := exportSnapshot(all.Snapshot, writer.NewDuckDBWriter(exportPath, log), log)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Exported %d records to %s", all.Snapshot.RecordCount(), path)))

	return nil
}

func exportSnapshot(snapshot *lean.LeanDataSnapshot, parquet writer.RecordWriter, log *logger.Logger) (path string, err error) {
	if err := parquet.Initialize(); err != nil {
		return "", err
	}

	defer func() {
		if closeErr := parquet.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeIOFailure, "failed to close export writer", closeErr)
		}
	}()

	for _, record := range snapshot.Records() {
		if err := parquet.Write(snapshot.Symbol, record); err != nil {
			return "", err
		}
	}

	path, err = parquet.Finalize()
	if err != nil {
		return "", err
	}

	log.Info("Snapshot exported", zap.String("path", path), zap.Int("records", snapshot.RecordCount()))

	return path, nil
}
