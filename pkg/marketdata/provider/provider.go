// Package provider implements the data sources bars are downloaded from.
package provider

import (
	"context"
	"iter"

	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon   ProviderType = "polygon"
	ProviderBinance   ProviderType = "binance"
	ProviderSynthetic ProviderType = "synthetic"
)

type OnDownloadProgress = func(current float64, total float64, message string)

// DataSource yields the bars for one request in ascending time order.
// An error ends the sequence. Callers decide whether it is worth retrying.
type DataSource interface {
	FetchBars(ctx context.Context, req lean.DownloadRequest) iter.Seq2[types.Bar, error]
}

// Config carries what the individual sources need.
type Config struct {
	PolygonAPIKey string
	// RequestsPerMinute throttles calls to the source when positive.
	RequestsPerMinute int
}

// NewDataSource creates a data source for the provider type.
func NewDataSource(providerType ProviderType, config Config) (DataSource, error) {
	var (
		source DataSource
		err    error
	)

	switch providerType {
	case ProviderBinance:
		source = NewBinanceClient()
	case ProviderPolygon:
		source, err = NewPolygonClient(config.PolygonAPIKey)
		if err != nil {
			return nil, err
		}
	case ProviderSynthetic:
		source = NewSyntheticSource()
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}

	if config.RequestsPerMinute > 0 {
		source = NewRateLimited(source, config.RequestsPerMinute)
	}

	return source, nil
}

// failed is a sequence that yields a single error.
func failed(err error) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		yield(types.Bar{}, err)
	}
}
