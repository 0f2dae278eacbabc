// Package calendar holds trading-day and date-range rules used before a download starts.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"go.uber.org/zap"
)

// ValidationResult collects blocking errors and advisory warnings for a date range.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Calendar answers trading-day questions. Every weekday counts as a trading day;
// exchange holidays are not modelled.
type Calendar struct {
	logger *logger.Logger
}

func NewCalendar(log *logger.Logger) *Calendar {
	return &Calendar{
		logger: log,
	}
}

// IsTradingDay reports whether date is a weekday.
func IsTradingDay(date civil.Date) bool {
	switch date.In(time.UTC).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// TradingDays returns every trading day in [start, end].
func (c *Calendar) TradingDays(start, end civil.Date, exchange string) []civil.Date {
	var days []civil.Date

	for current := start; !current.After(end); current = current.AddDays(1) {
		if IsTradingDay(current) {
			days = append(days, current)
		}
	}

	c.logger.Debug("Resolved trading days",
		zap.Int("count", len(days)),
		zap.String("start", start.String()),
		zap.String("end", end.String()),
		zap.String("exchange", exchange),
	)

	return days
}

// MaxRecommendedDays is the largest span worth requesting in one go for a resolution.
func MaxRecommendedDays(resolution string) int {
	switch strings.ToLower(resolution) {
	case "tick":
		return 1
	case "second":
		return 7
	case "minute":
		return 30
	case "hour":
		return 365
	case "daily":
		return 3650
	default:
		return 30
	}
}

// ValidateDateRange rejects empty or reversed ranges and ranges starting after today,
// and warns about ranges reaching into the future or spanning more than the
// recommended number of days.
func ValidateDateRange(start, end time.Time, resolution string, now time.Time) ValidationResult {
	result := ValidationResult{
		Valid:    false,
		Errors:   []string{},
		Warnings: []string{},
	}

	today := civil.DateOf(now).In(now.Location())

	if !start.Before(end) {
		result.Errors = append(result.Errors, "Start date must be before end date")

		return result
	}

	if start.After(today) {
		result.Errors = append(result.Errors, "Start date cannot be in the future")

		return result
	}

	if end.After(today) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"End date %s is in the future, will only download data up to %s",
			end.Format(time.DateOnly), today.Format(time.DateOnly),
		))
		end = today
	}

	span := end.Sub(start).Hours() / 24
	if span > float64(MaxRecommendedDays(resolution)) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Date range of %.0f days is quite large for %s resolution. Consider breaking into smaller chunks if you encounter rate limiting issues.",
			span, resolution,
		))
	}

	result.Valid = true

	return result
}

// Chunks splits [from, to) into consecutive windows no longer than maxDays.
func Chunks(from, to time.Time, maxDays int) [][2]time.Time {
	if maxDays < 1 {
		maxDays = 1
	}

	var chunks [][2]time.Time

	for start := from; start.Before(to); {
		end := start.AddDate(0, 0, maxDays)
		if end.After(to) {
			end = to
		}

		chunks = append(chunks, [2]time.Time{start, end})
		start = end
	}

	return chunks
}

var exchangeZones = map[string]string{
	"SMART":  "America/New_York",
	"NYSE":   "America/New_York",
	"NASDAQ": "America/New_York",
	"ARCA":   "America/New_York",
	"LSE":    "Europe/London",
	"TSE":    "Asia/Tokyo",
	"HKEX":   "Asia/Hong_Kong",
}

// ExchangeLocation returns the exchange time zone, UTC when unknown.
func ExchangeLocation(exchange string) *time.Location {
	name, ok := exchangeZones[strings.ToUpper(strings.TrimSpace(exchange))]
	if !ok {
		return time.UTC
	}

	location, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}

	return location
}

// ToExchangeWallClock converts an instant to exchange-local wall clock time carried
// with a UTC location, the representation bars use.
func ToExchangeWallClock(t time.Time, location *time.Location) time.Time {
	local := t.In(location)

	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
}
