package provider

import (
	"context"
	"iter"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/shopspring/decimal"
)

// binancePageLimit is the largest page the klines endpoint returns.
const binancePageLimit = 1000

// Binance API error codes that clear up on their own.
const (
	binanceTooManyRequests  = -1003
	binanceTooManyOrders    = -1015
	binanceServiceOverload  = -1008
	binanceUnknownAPIStatus = -1000
)

// BinanceKlinesService is the subset of the klines service used here.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient creates klines services. It exists so tests can replace the REST client.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

type binanceRESTClient struct {
	client *binance.Client
}

func (c *binanceRESTClient) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesService{service: c.client.NewKlinesService()}
}

type binanceKlinesService struct {
	service *binance.KlinesService
}

func (s *binanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *binanceKlinesService) Interval(interval string) BinanceKlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *binanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	s.service = s.service.StartTime(startTime)

	return s
}

func (s *binanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	s.service = s.service.EndTime(endTime)

	return s
}

func (s *binanceKlinesService) Limit(limit int) BinanceKlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *binanceKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

type BinanceClient struct {
	apiClient BinanceAPIClient
}

// NewBinanceClient uses the public market data API, which needs no key.
func NewBinanceClient() *BinanceClient {
	return NewBinanceClientWithAPI(&binanceRESTClient{client: binance.NewClient("", "")})
}

func NewBinanceClientWithAPI(apiClient BinanceAPIClient) *BinanceClient {
	return &BinanceClient{apiClient: apiClient}
}

// FetchBars pages through klines from From up to (not including) To. Binance reports
// in UTC, which is also what crypto data in LEAN uses.
func (c *BinanceClient) FetchBars(ctx context.Context, req lean.DownloadRequest) iter.Seq2[types.Bar, error] {
	resolution, err := req.ResolutionValue()
	if err != nil {
		return failed(err)
	}

	timespan, err := TimespanFor(resolution)
	if err != nil {
		return failed(err)
	}

	return func(yield func(types.Bar, error) bool) {
		currentStartTime := req.From.UnixMilli()
		endTimeMillis := req.To.UnixMilli()

		for currentStartTime < endTimeMillis {
			klines, err := c.apiClient.NewKlinesService().
				Symbol(req.Symbol).
				Interval(timespan.String()).
				StartTime(currentStartTime).
				EndTime(endTimeMillis - 1).
				Limit(binancePageLimit).
				Do(ctx)
			if err != nil {
				yield(types.Bar{}, classifyBinanceError(req.Symbol, err))

				return
			}

			for _, kline := range klines {
				bar, err := barFromKline(kline)
				if err != nil {
					yield(types.Bar{}, errors.Wrapf(errors.ErrCodeSourceFetchFailed, err, "invalid kline for %s", req.Symbol))

					return
				}

				if !yield(bar, nil) {
					return
				}
			}

			if len(klines) < binancePageLimit {
				return
			}

			// the close time of the last kline + 1ms avoids duplicates
			currentStartTime = klines[len(klines)-1].CloseTime + 1
		}
	}
}

func barFromKline(kline *binance.Kline) (types.Bar, error) {
	values := make([]decimal.Decimal, 0, 5)

	for _, raw := range []string{kline.Open, kline.High, kline.Low, kline.Close, kline.Volume} {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return types.Bar{}, err
		}

		values = append(values, value)
	}

	return types.Bar{
		Time:   time.UnixMilli(kline.OpenTime).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4].IntPart(),
	}, nil
}

func classifyBinanceError(symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case binanceTooManyRequests, binanceTooManyOrders, binanceServiceOverload, binanceUnknownAPIStatus:
			return errors.Wrapf(errors.ErrCodeTransientSource, err, "binance is temporarily unavailable for %s", symbol)
		}
	}

	return errors.Wrapf(errors.ErrCodeSourceFetchFailed, err, "failed to fetch klines from Binance for %s", symbol)
}
