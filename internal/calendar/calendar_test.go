package calendar

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/stretchr/testify/suite"
)

type CalendarTestSuite struct {
	suite.Suite
	now time.Time
}

func TestCalendarSuite(t *testing.T) {
	suite.Run(t, new(CalendarTestSuite))
}

func (suite *CalendarTestSuite) SetupTest() {
	suite.now = time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (suite *CalendarTestSuite) TestIsTradingDay() {
	suite.True(IsTradingDay(civil.Date{Year: 2024, Month: time.January, Day: 5}))  // Friday
	suite.False(IsTradingDay(civil.Date{Year: 2024, Month: time.January, Day: 6})) // Saturday
	suite.False(IsTradingDay(civil.Date{Year: 2024, Month: time.January, Day: 7})) // Sunday
	suite.True(IsTradingDay(civil.Date{Year: 2024, Month: time.January, Day: 8}))  // Monday
}

func (suite *CalendarTestSuite) TestTradingDays() {
	cal := NewCalendar(logger.NewNop())
	days := cal.TradingDays(
		civil.Date{Year: 2024, Month: time.January, Day: 1},
		civil.Date{Year: 2024, Month: time.January, Day: 14},
		"SMART",
	)
	suite.Len(days, 10)
	suite.Equal(civil.Date{Year: 2024, Month: time.January, Day: 12}, days[len(days)-1])
}

func (suite *CalendarTestSuite) TestMaxRecommendedDays() {
	suite.Equal(1, MaxRecommendedDays("tick"))
	suite.Equal(7, MaxRecommendedDays("Second"))
	suite.Equal(30, MaxRecommendedDays("minute"))
	suite.Equal(365, MaxRecommendedDays("hour"))
	suite.Equal(3650, MaxRecommendedDays("DAILY"))
	suite.Equal(30, MaxRecommendedDays("weekly"))
}

func (suite *CalendarTestSuite) TestValidateDateRange() {
	tests := []struct {
		name       string
		start      time.Time
		end        time.Time
		resolution string
		valid      bool
		errors     int
		warnings   int
	}{
		{name: "normal", start: day(2024, 6, 1), end: day(2024, 6, 10), resolution: "minute", valid: true},
		{name: "reversed", start: day(2024, 6, 10), end: day(2024, 6, 1), resolution: "minute", errors: 1},
		{name: "empty", start: day(2024, 6, 10), end: day(2024, 6, 10), resolution: "minute", errors: 1},
		{name: "future start", start: day(2024, 7, 1), end: day(2024, 7, 2), resolution: "minute", errors: 1},
		{name: "future end", start: day(2024, 6, 10), end: day(2024, 6, 20), resolution: "minute", valid: true, warnings: 1},
		{name: "long span", start: day(2024, 1, 1), end: day(2024, 6, 1), resolution: "minute", valid: true, warnings: 1},
		{name: "long span ok for daily", start: day(2020, 1, 1), end: day(2024, 6, 1), resolution: "daily", valid: true},
		{name: "future and long", start: day(2024, 6, 1), end: day(2024, 6, 20), resolution: "tick", valid: true, warnings: 2},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			result := ValidateDateRange(tc.start, tc.end, tc.resolution, suite.now)
			suite.Equal(tc.valid, result.Valid)
			suite.Len(result.Errors, tc.errors)
			suite.Len(result.Warnings, tc.warnings)
		})
	}
}

func (suite *CalendarTestSuite) TestChunks() {
	chunks := Chunks(day(2024, 1, 1), day(2024, 1, 10), 4)
	suite.Equal([][2]time.Time{
		{day(2024, 1, 1), day(2024, 1, 5)},
		{day(2024, 1, 5), day(2024, 1, 9)},
		{day(2024, 1, 9), day(2024, 1, 10)},
	}, chunks)

	suite.Empty(Chunks(day(2024, 1, 2), day(2024, 1, 1), 4))
	suite.Len(Chunks(day(2024, 1, 1), day(2024, 1, 3), 0), 2)
}

func (suite *CalendarTestSuite) TestExchangeLocation() {
	suite.Equal(time.UTC, ExchangeLocation("UNKNOWN"))

	location := ExchangeLocation("smart")
	if location == time.UTC {
		suite.T().Skip("time zone database not available")
	}

	suite.Equal("America/New_York", location.String())
}

func (suite *CalendarTestSuite) TestToExchangeWallClock() {
	location := time.FixedZone("EST", -5*3600)
	instant := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

	wall := ToExchangeWallClock(instant, location)
	suite.Equal(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC), wall)
}
