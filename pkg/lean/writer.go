package lean

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"go.uber.org/zap"
)

// WriteResult reports what one WriteBars call produced. Files written before a
// failure stay on disk and are still listed.
type WriteResult struct {
	Success  bool     `json:"success"`
	Files    []string `json:"files"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// DataWriter turns a batch of bars into per-date LEAN archives.
type DataWriter struct {
	logger *logger.Logger
}

func NewDataWriter(log *logger.Logger) *DataWriter {
	return &DataWriter{
		logger: log,
	}
}

// WriteBars groups bars by calendar date and writes one archive per group, rows in
// ascending time order. Groups are written oldest first. Daily resolution maps every
// date onto the same {symbol}.zip, so the newest group is what remains.
func (w *DataWriter) WriteBars(ctx context.Context, req DownloadRequest, bars []types.Bar) (*WriteResult, error) {
	result := &WriteResult{
		Success:  false,
		Files:    []string{},
		Warnings: []string{},
		Error:    "",
	}

	resolution, err := req.ResolutionValue()
	if err != nil {
		result.Error = err.Error()

		return result, err
	}

	if len(bars) == 0 {
		result.Success = true
		result.Warnings = append(result.Warnings, fmt.Sprintf("no bars to write for %s", req.Symbol))

		return result, nil
	}

	groups := groupByDate(bars)
	dates := make([]civil.Date, 0, len(groups))

	for date := range groups {
		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	archive := NewArchiveWriter(req.DataDir)
	directory := req.Directory()

	for _, date := range dates {
		group := groups[date]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Time.Before(group[j].Time) })

		filename, err := FilenameFor(req.Symbol, string(resolution), date)
		if err != nil {
			result.Error = err.Error()

			return result, err
		}

		path, err := archive.WriteFile(ctx, directory, filename, SerializeAll(group), true)
		if err != nil {
			w.logger.Error("Failed to write bars",
				zap.String("symbol", req.Symbol),
				zap.String("date", date.String()),
				zap.Error(err),
			)

			result.Error = err.Error()

			return result, err
		}

		w.logger.Debug("Wrote bars",
			zap.String("path", path),
			zap.Int("count", len(group)),
		)

		if !slices.Contains(result.Files, path) {
			result.Files = append(result.Files, path)
		}
	}

	result.Success = true

	return result, nil
}

func groupByDate(bars []types.Bar) map[civil.Date][]types.Bar {
	groups := make(map[civil.Date][]types.Bar)
	for _, bar := range bars {
		date := bar.Date()
		groups[date] = append(groups[date], bar)
	}

	return groups
}
