package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rxtech-lab/lean-toolbox/internal/calendar"
	"github.com/rxtech-lab/lean-toolbox/internal/config"
	"github.com/rxtech-lab/lean-toolbox/internal/gateway"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata/provider"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download historical bars into LEAN archives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Trading symbol (e.g., AAPL)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "security-type",
				Aliases:  []string{"t"},
				Usage:    "Security type (Equity, Forex, Crypto, Future, Option, Index, Cfd)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "resolution",
				Aliases:  []string{"r"},
				Usage:    "Data resolution (Tick, Second, Minute, Hour, Daily)",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "from",
				Aliases:  []string{"f"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:     "to",
				Usage:    "End date in `YYYY-MM-DD` format (exclusive)",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:     "data-dir",
				Aliases:  []string{"d"},
				Usage:    "Output data directory",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "exchange",
				Aliases: []string{"e"},
				Usage:   "Exchange",
				Value:   lean.DefaultExchange,
			},
			&cli.StringFlag{
				Name:    "currency",
				Aliases: []string{"c"},
				Usage:   "Currency",
				Value:   lean.DefaultCurrency,
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: fmt.Sprintf("Data provider (%s, %s, %s)", provider.ProviderPolygon, provider.ProviderBinance, provider.ProviderSynthetic),
				Value: string(provider.ProviderSynthetic),
			},
			&cli.StringFlag{
				Name:  "provider-config",
				Usage: "Provider configuration as JSON (see `schema --provider`)",
				Value: "{}",
			},
			&cli.StringFlag{
				Name:  "gateway-host",
				Usage: "Gateway host",
				Value: config.DefaultGatewayHost,
			},
			&cli.IntFlag{
				Name:  "gateway-port",
				Usage: "Gateway port",
				Value: config.DefaultGatewayPort,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Validate the request and configuration without downloading",
			},
			&cli.BoolFlag{
				Name:  "use-ib-automater",
				Usage: "Start and stop a local gateway automatically (disabled in CI environments)",
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	from := cmd.Timestamp("from")
	to := cmd.Timestamp("to")

	if !from.Before(to) {
		return errors.New(errors.ErrCodeInvalidDateRange, "Invalid date range: 'from' date must be before 'to' date")
	}

	useGateway := cmd.Bool("use-ib-automater")

	env, err := setup(ctx, cmd, useGateway)
	if err != nil {
		return err
	}

	log := env.logger
	defer log.Sync() //nolint:errcheck // nothing useful to do with a failed flush

	req := lean.DownloadRequest{
		Symbol:       cmd.String("symbol"),
		SecurityType: cmd.String("security-type"),
		Resolution:   cmd.String("resolution"),
		From:         from,
		To:           to,
		DataDir:      cmd.String("data-dir"),
		Exchange:     cmd.String("exchange"),
		Currency:     cmd.String("currency"),
	}.WithDefaults()

	log.Info("Starting data download",
		zap.String("symbol", req.Symbol),
		zap.String("security_type", req.SecurityType),
		zap.String("resolution", req.Resolution),
		zap.String("from", req.From.Format(time.DateOnly)),
		zap.String("to", req.To.Format(time.DateOnly)),
	)

	if err := req.Validate(); err != nil {
		return err
	}

	validation := calendar.ValidateDateRange(req.From, req.To, req.Resolution, time.Now())
	for _, warning := range validation.Warnings {
		log.Warn(warning)
	}

	if !validation.Valid {
		return errors.Wrap(errors.ErrCodeInvalidDateRange, "invalid date range", errors.NewValidationError(validation.Errors))
	}

	clientConfig, err := providerClientConfig(cmd.String("provider"), cmd.String("provider-config"), env.cfg)
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		log.Info("DRY RUN mode - no data will be downloaded")
		fmt.Fprintln(stdout(cmd), SuccessStyle.Render("Dry run: request and configuration are valid"))

		return nil
	}

	if err := os.MkdirAll(req.DataDir, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to create data directory %s", req.DataDir)
	}

	days := calendar.NewCalendar(log).TradingDays(civil.DateOf(req.From), civil.DateOf(req.To.Add(-time.Nanosecond)), req.Exchange)
	log.Info("Trading days in range", zap.Int("count", len(days)))

	helper := gateway.NewHelper(env.cfg, log)

	started, err := helper.StartIfNeeded(ctx, cmd.String("gateway-host"), int(cmd.Int("gateway-port")), useGateway)
	if err != nil {
		return err
	}

	if started {
		defer func() {
			log.Info("Shutting down managed gateway")
			helper.StopIfStarted()
		}()
	}

	bar := newProgress(cmd)
	defer bar.finish()

	client, err := marketdata.NewClient(clientConfig, log, bar.update)
	if err != nil {
		return err
	}

	result, err := client.Download(ctx, req)
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		log.Warn(warning)
	}

	if !result.Success {
		return errors.Newf(errors.ErrCodeIOFailure, "Download failed: %s", result.Error)
	}

	bar.finish()

	w := stdout(cmd)
	fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Download completed successfully: %d files created", len(result.Files))))

	for _, file := range result.Files {
		fmt.Fprintln(w, HelpStyle.Render("  Created: "+file))
	}

	return nil
}

// providerClientConfig parses the provider JSON and fills keychain fields it leaves out
// from the loaded configuration, which already includes stored secrets.
func providerClientConfig(providerName, rawConfig string, cfg config.Config) (marketdata.ClientConfig, error) {
	fields, err := marketdata.GetProviderKeychainFields(providerName)
	if err != nil {
		return marketdata.ClientConfig{}, err
	}

	settings := map[string]any{}
	if err := json.Unmarshal([]byte(rawConfig), &settings); err != nil {
		return marketdata.ClientConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "provider config must be a JSON object", err)
	}

	secrets := map[string]string{
		string(provider.ProviderPolygon) + ".apiKey": cfg.PolygonAPIKey,
	}

	for _, field := range fields {
		if _, ok := settings[field]; ok {
			continue
		}

		if value := secrets[providerName+"."+field]; value != "" {
			settings[field] = value
		}
	}

	filled, err := json.Marshal(settings)
	if err != nil {
		return marketdata.ClientConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to encode provider config", err)
	}

	return marketdata.ParseProviderConfig(providerName, string(filled))
}

// progress draws chunk progress once the first chunk reports.
type progress struct {
	cmd *cli.Command
	bar *progressbar.ProgressBar
}

func newProgress(cmd *cli.Command) *progress {
	return &progress{cmd: cmd}
}

func (p *progress) update(current, total float64, message string) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions64(int64(total),
			progressbar.OptionSetWriter(stderr(p.cmd)),
			progressbar.OptionSetDescription(message),
			progressbar.OptionShowCount(),
		)
	}

	//nolint:errcheck // rendering errors only affect the terminal
	p.bar.Set64(int64(current))
}

func (p *progress) finish() {
	if p.bar != nil {
		//nolint:errcheck // rendering errors only affect the terminal
		p.bar.Finish()
		p.bar = nil
	}
}
