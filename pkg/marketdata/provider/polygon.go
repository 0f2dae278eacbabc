package provider

import (
	"context"
	"iter"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/lean-toolbox/internal/calendar"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/shopspring/decimal"
)

const polygonPageLimit = 50000

// PolygonAggsIterator is the subset of the Polygon aggregate iterator used here.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient lists aggregates. It exists so tests can replace the REST client.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonRESTClient struct {
	client *polygon.Client
}

func (c *polygonRESTClient) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return c.client.ListAggs(ctx, params, options...)
}

type PolygonClient struct {
	apiClient PolygonAPIClient
}

func NewPolygonClient(apiKey string) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return NewPolygonClientWithAPI(&polygonRESTClient{client: polygon.New(apiKey)}), nil
}

func NewPolygonClientWithAPI(apiClient PolygonAPIClient) *PolygonClient {
	return &PolygonClient{apiClient: apiClient}
}

// FetchBars lists adjusted aggregates for the request. Timestamps are converted to the
// exchange's wall clock and stored without a zone, which is how LEAN expects equity data.
func (c *PolygonClient) FetchBars(ctx context.Context, req lean.DownloadRequest) iter.Seq2[types.Bar, error] {
	resolution, err := req.ResolutionValue()
	if err != nil {
		return failed(err)
	}

	timespan, err := TimespanFor(resolution)
	if err != nil {
		return failed(err)
	}

	location := calendar.ExchangeLocation(req.Exchange)

	return func(yield func(types.Bar, error) bool) {
		//nolint:exhaustruct // third-party struct with many optional fields
		params := models.ListAggsParams{
			Ticker:     req.Symbol,
			Multiplier: timespan.Multiplier(),
			Timespan:   timespan.Timespan(),
			From:       models.Millis(req.From),
			To:         models.Millis(req.To),
		}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(polygonPageLimit)

		aggs := c.apiClient.ListAggs(ctx, params)

		for aggs.Next() {
			agg := aggs.Item()

			bar := types.Bar{
				Time:   calendar.ToExchangeWallClock(time.Time(agg.Timestamp), location),
				Open:   decimal.NewFromFloat(agg.Open),
				High:   decimal.NewFromFloat(agg.High),
				Low:    decimal.NewFromFloat(agg.Low),
				Close:  decimal.NewFromFloat(agg.Close),
				Volume: int64(agg.Volume),
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := aggs.Err(); err != nil {
			yield(types.Bar{}, classifyPolygonError(req.Symbol, err))
		}
	}
}

func classifyPolygonError(symbol string, err error) error {
	var response *models.ErrorResponse
	if errors.As(err, &response) {
		if response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= http.StatusInternalServerError {
			return errors.Wrapf(errors.ErrCodeTransientSource, err, "polygon is temporarily unavailable for %s", symbol)
		}
	}

	return errors.Wrapf(errors.ErrCodeSourceFetchFailed, err, "error iterating polygon aggregates for %s", symbol)
}
