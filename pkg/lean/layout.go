// Package lean reads and writes historical bars in the LEAN on-disk layout:
//
//	{dataDir}/{securityType}/{usa|generic}/{resolution}/{symbol}/{yyyyMMdd}_trade.zip
//	{dataDir}/{securityType}/{usa|generic}/daily/{symbol}/{symbol}.zip
//
// Every archive holds a single CSV entry whose rows are
// "yyyyMMdd HH:mm:ss,open,high,low,close,volume".
package lean

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
)

type Resolution string

const (
	ResolutionTick   Resolution = "tick"
	ResolutionSecond Resolution = "second"
	ResolutionMinute Resolution = "minute"
	ResolutionHour   Resolution = "hour"
	ResolutionDaily  Resolution = "daily"
)

const (
	marketUSA     = "usa"
	marketGeneric = "generic"

	securityTypeEquity = "equity"
	dateLayout         = "20060102"
)

// SupportedResolutions lists every resolution in ascending granularity.
var SupportedResolutions = []Resolution{
	ResolutionTick,
	ResolutionSecond,
	ResolutionMinute,
	ResolutionHour,
	ResolutionDaily,
}

// ParseResolution parses a resolution name case-insensitively.
func ParseResolution(value string) (Resolution, error) {
	resolution := Resolution(strings.ToLower(strings.TrimSpace(value)))
	if !resolution.IsValid() {
		return "", errors.Newf(errors.ErrCodeUnsupportedResolution, "unsupported resolution: %s", value)
	}

	return resolution, nil
}

func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionTick, ResolutionSecond, ResolutionMinute, ResolutionHour, ResolutionDaily:
		return true
	default:
		return false
	}
}

// IsDaily reports whether all dates share one archive per symbol.
func (r Resolution) IsDaily() bool {
	return r == ResolutionDaily
}

// Step is the spacing between consecutive bars. Ticks are treated as one second apart.
func (r Resolution) Step() time.Duration {
	switch r {
	case ResolutionTick, ResolutionSecond:
		return time.Second
	case ResolutionMinute:
		return time.Minute
	case ResolutionHour:
		return time.Hour
	case ResolutionDaily:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

func (r Resolution) String() string {
	return string(r)
}

// MarketFor maps a security type to its market bucket.
func MarketFor(securityType string) string {
	if strings.EqualFold(strings.TrimSpace(securityType), securityTypeEquity) {
		return marketUSA
	}

	return marketGeneric
}

// DirectoryFor returns the directory holding every archive for one symbol and resolution.
func DirectoryFor(symbol, securityType, resolution, baseDir string) string {
	return filepath.Join(
		baseDir,
		strings.ToLower(securityType),
		MarketFor(securityType),
		strings.ToLower(resolution),
		strings.ToLower(symbol),
	)
}

// FilenameFor returns the archive name for one date.
func FilenameFor(symbol, resolution string, date civil.Date) (string, error) {
	base, err := baseNameFor(strings.ToLower(symbol), resolution, date)
	if err != nil {
		return "", err
	}

	return base + ".zip", nil
}

// EntryNameFor returns the CSV entry name stored inside the archive for one date.
func EntryNameFor(symbol, resolution string, date civil.Date) (string, error) {
	base, err := baseNameFor(strings.ToLower(symbol), resolution, date)
	if err != nil {
		return "", err
	}

	return base + ".csv", nil
}

// ReaderEntryNameFor is EntryNameFor with a "{yyyyMMdd}.csv" fallback for resolutions
// the writer does not produce.
func ReaderEntryNameFor(symbol, resolution string, date civil.Date) string {
	name, err := EntryNameFor(symbol, resolution, date)
	if err != nil {
		return FormatDate(date) + ".csv"
	}

	return name
}

// EntryNameForArchive derives the CSV entry name from an archive filename.
func EntryNameForArchive(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".csv"
}

func baseNameFor(symbol, resolution string, date civil.Date) (string, error) {
	switch Resolution(strings.ToLower(strings.TrimSpace(resolution))) {
	case ResolutionTick, ResolutionSecond, ResolutionMinute, ResolutionHour:
		return FormatDate(date) + "_trade", nil
	case ResolutionDaily:
		return symbol, nil
	default:
		return "", errors.Newf(errors.ErrCodeUnsupportedResolution, "unsupported resolution: %s", resolution)
	}
}

// FormatDate renders a date as yyyyMMdd.
func FormatDate(date civil.Date) string {
	return fmt.Sprintf("%04d%02d%02d", date.Year, int(date.Month), date.Day)
}

// ParseDate parses a yyyyMMdd date.
func ParseDate(value string) (civil.Date, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return civil.Date{}, err
	}

	return civil.DateOf(t), nil
}
