// Package marketdata downloads bars from a data source and stores them in the LEAN layout.
package marketdata

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/lean-toolbox/internal/calendar"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/retry"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata/provider"
	"go.uber.org/zap"
)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType      provider.ProviderType `validate:"required,oneof=polygon binance synthetic"`
	PolygonApiKey     string                `validate:"required_if=ProviderType polygon"`
	RequestsPerMinute int                   `validate:"min=0"`
	// ChunkDays caps the span of a single source request. Zero uses the recommended
	// maximum for the resolution.
	ChunkDays int `validate:"min=0"`
}

// Client is the market data client responsible for downloading data from a source and
// storing it as LEAN archives.
type Client struct {
	source     provider.DataSource
	writer     *lean.DataWriter
	retry      *retry.Policy
	chunkDays  int
	logger     *logger.Logger
	onProgress provider.OnDownloadProgress
}

// NewClient creates a new market data client with the given configuration.
func NewClient(config ClientConfig, log *logger.Logger, onProgress provider.OnDownloadProgress) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	source, err := provider.NewDataSource(config.ProviderType, provider.Config{
		PolygonAPIKey:     config.PolygonApiKey,
		RequestsPerMinute: config.RequestsPerMinute,
	})
	if err != nil {
		return nil, err
	}

	client := NewClientWithSource(source, log, onProgress)
	client.chunkDays = config.ChunkDays

	return client, nil
}

// NewClientWithSource wires an existing data source.
func NewClientWithSource(source provider.DataSource, log *logger.Logger, onProgress provider.OnDownloadProgress) *Client {
	return &Client{
		source:     source,
		writer:     lean.NewDataWriter(log),
		retry:      retry.NewPolicy(log),
		chunkDays:  0,
		logger:     log,
		onProgress: onProgress,
	}
}

// WithRetryPolicy replaces the retry policy used for source requests.
func (c *Client) WithRetryPolicy(policy *retry.Policy) *Client {
	c.retry = policy

	return c
}

// Download fetches the request's bars chunk by chunk, retrying transient source failures,
// then writes them with DataWriter. A chunk that still fails after retries fails the download
// and nothing is written.
func (c *Client) Download(ctx context.Context, req lean.DownloadRequest) (*lean.WriteResult, error) {
	req = req.WithDefaults()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	chunkDays := c.chunkDays
	if chunkDays <= 0 {
		chunkDays = calendar.MaxRecommendedDays(req.Resolution)
	}

	chunks := calendar.Chunks(req.From, req.To, chunkDays)

	var bars []types.Bar

	for i, chunk := range chunks {
		chunkReq := req
		chunkReq.From = chunk[0]
		chunkReq.To = chunk[1]

		mark := len(bars)

		err := c.retry.ExecuteDefault(ctx, func(ctx context.Context) error {
			bars = bars[:mark]

			for bar, err := range c.source.FetchBars(ctx, chunkReq) {
				if err != nil {
					return err
				}

				bars = append(bars, bar)
			}

			return nil
		})
		if err != nil {
			c.logger.Error("Failed to fetch bars",
				zap.String("symbol", req.Symbol),
				zap.Time("from", chunkReq.From),
				zap.Time("to", chunkReq.To),
				zap.Error(err),
			)

			if ctx.Err() != nil {
				return nil, errors.Wrap(errors.ErrCodeSourceFetchFailed, "download cancelled", err)
			}

			return nil, errors.Wrapf(errors.ErrCodeSourceFetchFailed, err, "failed to fetch %s bars", req.Symbol)
		}

		c.logger.Debug("Fetched chunk",
			zap.String("symbol", req.Symbol),
			zap.Int("chunk", i+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("bars", len(bars)-mark),
		)

		c.progress(float64(i+1), float64(len(chunks)), fmt.Sprintf("Downloading %s", req.Symbol))
	}

	result, err := c.writer.WriteBars(ctx, req, bars)
	if err != nil {
		return result, err
	}

	c.logger.Info("Download finished",
		zap.String("symbol", req.Symbol),
		zap.String("resolution", req.Resolution),
		zap.Int("bars", len(bars)),
		zap.Int("files", len(result.Files)),
	)

	return result, nil
}

func (c *Client) progress(current, total float64, message string) {
	if c.onProgress != nil {
		c.onProgress(current, total, message)
	}
}
