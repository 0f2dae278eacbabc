package types

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Bar is one OHLCV observation. Time carries no zone information of its own:
// it is exchange-local wall clock time stored with a UTC location.
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Date returns the calendar date the bar falls on.
func (b Bar) Date() civil.Date {
	return civil.DateOf(b.Time)
}

// Equal compares all five numeric fields and the timestamp.
func (b Bar) Equal(other Bar) bool {
	return b.Time.Equal(other.Time) &&
		b.Open.Equal(other.Open) &&
		b.High.Equal(other.High) &&
		b.Low.Equal(other.Low) &&
		b.Close.Equal(other.Close) &&
		b.Volume == other.Volume
}

// BarRecord is a bar loaded from disk together with the archive entry it came from.
type BarRecord struct {
	Bar
	// SourceFile is the archive path relative to the data directory joined with the entry name.
	SourceFile string `json:"sourceFile"`
}

// NewBarRecord creates a BarRecord.
func NewBarRecord(bar Bar, sourceFile string) BarRecord {
	return BarRecord{
		Bar:        bar,
		SourceFile: sourceFile,
	}
}
