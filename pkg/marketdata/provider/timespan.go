package provider

import (
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
)

// Timespan is a bar interval in Binance notation.
type Timespan string

const (
	TimespanOneSecond Timespan = "1s"
	TimespanOneMinute Timespan = "1m"
	TimespanOneHour   Timespan = "1h"
	TimespanOneDay    Timespan = "1d"
)

// TimespanFor maps a LEAN resolution to a bar interval. Ticks have no bar equivalent.
func TimespanFor(resolution lean.Resolution) (Timespan, error) {
	switch resolution {
	case lean.ResolutionSecond:
		return TimespanOneSecond, nil
	case lean.ResolutionMinute:
		return TimespanOneMinute, nil
	case lean.ResolutionHour:
		return TimespanOneHour, nil
	case lean.ResolutionDaily:
		return TimespanOneDay, nil
	case lean.ResolutionTick:
		return "", errors.New(errors.ErrCodeUnsupportedResolution, "tick data cannot be downloaded as bars")
	default:
		return "", errors.Newf(errors.ErrCodeUnsupportedResolution, "unsupported resolution: %s", resolution)
	}
}

func (t Timespan) Multiplier() int {
	return 1
}

// Timespan returns the Polygon aggregate unit.
func (t Timespan) Timespan() models.Timespan {
	switch t {
	case TimespanOneSecond:
		return models.Second
	case TimespanOneMinute:
		return models.Minute
	case TimespanOneHour:
		return models.Hour
	case TimespanOneDay:
		return models.Day
	default:
		return models.Day
	}
}

func (t Timespan) String() string {
	return string(t)
}
