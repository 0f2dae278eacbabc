package provider

import (
	"context"
	"hash/fnv"
	"iter"
	"math"
	"math/rand"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rxtech-lab/lean-toolbox/internal/calendar"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/shopspring/decimal"
)

// Regular session in exchange wall clock time.
const (
	sessionOpen  = 9*time.Hour + 30*time.Minute
	sessionClose = 16 * time.Hour
)

// SyntheticSource generates plausible bars without any network access. The same symbol
// and date always produce the same bars, so repeated downloads are reproducible.
type SyntheticSource struct {
	// Volatility controls price movement per bar (0.002 = 0.2%)
	Volatility float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{
		Volatility:     0.002,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// FetchBars yields bars for every weekday in [From, To). Daily requests get one bar per
// day at midnight, intraday requests get the regular session at the resolution step.
func (s *SyntheticSource) FetchBars(ctx context.Context, req lean.DownloadRequest) iter.Seq2[types.Bar, error] {
	resolution, err := req.ResolutionValue()
	if err != nil {
		return failed(err)
	}

	return func(yield func(types.Bar, error) bool) {
		first := civil.DateOf(req.From)
		last := civil.DateOf(req.To)

		for day := first; !day.After(last); day = day.AddDays(1) {
			if err := ctx.Err(); err != nil {
				yield(types.Bar{}, errors.Wrap(errors.ErrCodeSourceFetchFailed, "synthetic download cancelled", err))

				return
			}

			if !calendar.IsTradingDay(day) {
				continue
			}

			for _, bar := range s.barsFor(req.Symbol, day, resolution) {
				if bar.Time.Before(req.From) || !bar.Time.Before(req.To) {
					continue
				}

				if !yield(bar, nil) {
					return
				}
			}
		}
	}
}

func (s *SyntheticSource) barsFor(symbol string, day civil.Date, resolution lean.Resolution) []types.Bar {
	rng := rand.New(rand.NewSource(seedFor(symbol, day)))
	price := 50 + rng.Float64()*200
	midnight := day.In(time.UTC)

	if resolution.IsDaily() {
		// a daily bar spans a whole session worth of movement
		bar, _ := s.nextBar(rng, midnight, price, s.Volatility*math.Sqrt(390), s.VolumeBase*390)

		return []types.Bar{bar}
	}

	step := resolution.Step()
	bars := make([]types.Bar, 0, int((sessionClose-sessionOpen)/step))

	for offset := sessionOpen; offset < sessionClose; offset += step {
		var bar types.Bar

		bar, price = s.nextBar(rng, midnight.Add(offset), price, s.Volatility, s.VolumeBase)
		bars = append(bars, bar)
	}

	return bars
}

// nextBar follows a geometric Brownian motion step and returns the bar and its close.
func (s *SyntheticSource) nextBar(rng *rand.Rand, at time.Time, open, volatility, volumeBase float64) (types.Bar, float64) {
	// Box-Muller transform for a normal sample
	u1 := 1 - rng.Float64()
	u2 := rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	closePrice := open * (1 + volatility*z)
	if closePrice <= 0 {
		closePrice = open * 0.99
	}

	high := math.Max(open, closePrice) + math.Abs(rng.Float64()*volatility*open*0.5)
	low := math.Min(open, closePrice) - math.Abs(rng.Float64()*volatility*open*0.5)

	if low <= 0 {
		low = math.Min(open, closePrice) * 0.99
	}

	volume := volumeBase * (1.0 + (rng.Float64()*2-1)*s.VolumeVariance)
	if volume < 0 {
		volume = volumeBase * 0.1
	}

	return types.Bar{
		Time:   at,
		Open:   decimal.NewFromFloat(open).Round(2),
		High:   decimal.NewFromFloat(high).Round(2),
		Low:    decimal.NewFromFloat(low).Round(2),
		Close:  decimal.NewFromFloat(closePrice).Round(2),
		Volume: int64(volume),
	}, closePrice
}

func seedFor(symbol string, day civil.Date) int64 {
	hash := fnv.New64a()
	//nolint:errcheck // hash writes never fail
	hash.Write([]byte(symbol + "|" + day.String()))

	return int64(hash.Sum64())
}
