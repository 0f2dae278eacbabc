package provider

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/stretchr/testify/suite"
)

type SyntheticSourceTestSuite struct {
	suite.Suite
	source *SyntheticSource
}

func TestSyntheticSourceSuite(t *testing.T) {
	suite.Run(t, new(SyntheticSourceTestSuite))
}

func (suite *SyntheticSourceTestSuite) SetupTest() {
	suite.source = NewSyntheticSource()
}

func syntheticRequest(resolution string, from, to time.Time) lean.DownloadRequest {
	return lean.DownloadRequest{
		Symbol:       "SPY",
		SecurityType: "equity",
		Resolution:   resolution,
		From:         from,
		To:           to,
		DataDir:      "/data",
	}
}

func (suite *SyntheticSourceTestSuite) TestDailySkipsWeekends() {
	// Friday 2024-01-05 through Monday 2024-01-08
	req := syntheticRequest("daily", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))

	bars, err := collect(suite.source.FetchBars(context.Background(), req))
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), bars[0].Time)
	suite.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), bars[1].Time)
}

func (suite *SyntheticSourceTestSuite) TestMinuteSession() {
	req := syntheticRequest("minute", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))

	bars, err := collect(suite.source.FetchBars(context.Background(), req))
	suite.Require().NoError(err)
	suite.Require().Len(bars, 390)
	suite.Equal(time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), bars[0].Time)
	suite.Equal(time.Date(2024, 1, 2, 15, 59, 0, 0, time.UTC), bars[len(bars)-1].Time)

	for i, bar := range bars {
		suite.True(bar.High.GreaterThanOrEqual(bar.Open), "bar %d", i)
		suite.True(bar.High.GreaterThanOrEqual(bar.Close), "bar %d", i)
		suite.True(bar.Low.LessThanOrEqual(bar.Open), "bar %d", i)
		suite.True(bar.Low.LessThanOrEqual(bar.Close), "bar %d", i)
		suite.True(bar.Low.IsPositive(), "bar %d", i)
		suite.GreaterOrEqual(bar.Volume, int64(0))

		if i > 0 {
			suite.True(bar.Time.After(bars[i-1].Time))
		}
	}
}

func (suite *SyntheticSourceTestSuite) TestHourSession() {
	req := syntheticRequest("hour", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))

	bars, err := collect(suite.source.FetchBars(context.Background(), req))
	suite.Require().NoError(err)
	suite.Len(bars, 7, "09:30 through 15:30")
}

func (suite *SyntheticSourceTestSuite) TestDeterministic() {
	req := syntheticRequest("minute", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))

	first, err := collect(suite.source.FetchBars(context.Background(), req))
	suite.Require().NoError(err)

	second, err := collect(NewSyntheticSource().FetchBars(context.Background(), req))
	suite.Require().NoError(err)

	suite.Require().Equal(len(first), len(second))

	for i := range first {
		suite.True(first[i].Equal(second[i]))
	}

	req.Symbol = "QQQ"
	other, err := collect(suite.source.FetchBars(context.Background(), req))
	suite.Require().NoError(err)
	suite.False(first[0].Equal(other[0]))
}

func (suite *SyntheticSourceTestSuite) TestRangeIsHalfOpen() {
	req := syntheticRequest("minute", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 10, 5, 0, 0, time.UTC))

	bars, err := collect(suite.source.FetchBars(context.Background(), req))
	suite.Require().NoError(err)
	suite.Require().Len(bars, 5)
	suite.Equal(req.From, bars[0].Time)
	suite.Equal(req.To.Add(-time.Minute), bars[4].Time)
}

func (suite *SyntheticSourceTestSuite) TestCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := syntheticRequest("daily", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))

	bars, err := collect(suite.source.FetchBars(ctx, req))
	suite.Error(err)
	suite.ErrorIs(err, context.Canceled)
	suite.Empty(bars)
}
