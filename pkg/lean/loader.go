package lean

import (
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/internal/utils"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"go.uber.org/zap"
)

const (
	utf8BOM       = "\ufeff"
	maxLineLength = 1024 * 1024
)

// SnapshotLoader reads LEAN archives back into paginated snapshots.
type SnapshotLoader struct {
	logger *logger.Logger
	now    func() time.Time
}

func NewSnapshotLoader(log *logger.Logger) *SnapshotLoader {
	return &SnapshotLoader{
		logger: log,
		now:    time.Now,
	}
}

// Load validates the request, reads every archive for the date window and returns the
// requested page. A missing symbol directory is not an error, it produces an empty page.
// Rows that fail to parse and archives without the expected entry are skipped with a
// warning; such archives are still listed in SourceFiles. Files without a .zip extension
// are read as plain text. Records are ordered by timestamp; equal timestamps keep archive order
// (oldest date first) and then line order.
func (l *SnapshotLoader) Load(ctx context.Context, req SnapshotRequest) (*SnapshotPage, error) {
	if problems := req.Validate(); len(problems) > 0 {
		return nil, errors.NewValidationError(problems)
	}

	resolution, err := ParseResolution(req.Resolution)
	if err != nil {
		return nil, err
	}

	directory := DirectoryFor(req.Symbol, req.SecurityType, string(resolution), req.DataDirectory)
	if !utils.DirExists(directory) {
		l.logger.Warn("Data directory does not exist",
			zap.String("directory", directory),
			zap.String("symbol", req.Symbol),
		)

		return l.page(req, resolution, nil, nil)
	}

	var records []types.BarRecord

	var sourceFiles []string

	seenPaths := make(map[string]bool)
	seenSources := make(map[string]bool)

	for date := req.StartDate; !date.After(req.EndDate); date = date.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		filename, err := FilenameFor(req.Symbol, string(resolution), date)
		if err != nil {
			return nil, err
		}

		fullPath := filepath.Join(directory, filename)

		key := strings.ToLower(fullPath)
		if seenPaths[key] {
			continue
		}

		seenPaths[key] = true

		if !utils.FileExists(fullPath) {
			continue
		}

		relative, err := filepath.Rel(req.DataDirectory, fullPath)
		if err != nil {
			relative = fullPath
		}

		// Every existing archive counts as a source, even one that yields no rows.
		if !seenSources[strings.ToLower(relative)] {
			seenSources[strings.ToLower(relative)] = true
			sourceFiles = append(sourceFiles, relative)
		}

		var loaded []types.BarRecord

		if strings.EqualFold(filepath.Ext(fullPath), ".zip") {
			entryName := ReaderEntryNameFor(req.Symbol, string(resolution), date)
			loaded, err = l.readArchive(ctx, fullPath, relative, entryName, req)
		} else {
			loaded, err = l.readPlainFile(ctx, fullPath, relative, req)
		}

		if err != nil {
			return nil, err
		}

		records = append(records, loaded...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time.Before(records[j].Time)
	})

	return l.page(req, resolution, records, sourceFiles)
}

func (l *SnapshotLoader) page(req SnapshotRequest, resolution Resolution, records []types.BarRecord, sourceFiles []string) (*SnapshotPage, error) {
	snapshot, err := NewLeanDataSnapshot(uuid.Nil, req.Symbol, string(resolution), req.StartDate, req.EndDate, records, sourceFiles, l.now())
	if err != nil {
		return nil, err
	}

	page, err := snapshot.Page(req.PageNumber, req.PageSize)
	if err != nil {
		return nil, err
	}

	return &SnapshotPage{
		Snapshot:     page,
		PageNumber:   req.PageNumber,
		PageSize:     req.PageSize,
		TotalRecords: snapshot.RecordCount(),
	}, nil
}

// readArchive returns the in-window records of one archive. A missing entry only warns.
func (l *SnapshotLoader) readArchive(ctx context.Context, fullPath, relative, entryName string, req SnapshotRequest) ([]types.BarRecord, error) {
	archive, err := zip.OpenReader(fullPath)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to open archive %s", fullPath)
	}
	defer archive.Close()

	entry := findEntry(archive.File, entryName)
	if entry == nil {
		l.logger.Warn("Archive does not contain the expected entry",
			zap.String("archive", relative),
			zap.String("entry", entryName),
			zap.Error(errors.Newf(errors.ErrCodeMissingZipEntry, "missing entry %s", entryName)),
		)

		return nil, nil
	}

	reader, err := entry.Open()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to open entry %s in %s", entry.Name, fullPath)
	}
	defer reader.Close()

	return l.readRows(ctx, reader, path.Join(filepath.ToSlash(relative), entry.Name), req)
}

// readPlainFile reads rows from an uncompressed data file.
func (l *SnapshotLoader) readPlainFile(ctx context.Context, fullPath, relative string, req SnapshotRequest) ([]types.BarRecord, error) {
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to open %s", fullPath)
	}
	defer file.Close()

	return l.readRows(ctx, file, filepath.ToSlash(relative), req)
}

func (l *SnapshotLoader) readRows(ctx context.Context, reader io.Reader, sourceID string, req SnapshotRequest) ([]types.BarRecord, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var records []types.BarRecord

	lineNumber := 0

	for scanner.Scan() {
		lineNumber++

		if lineNumber%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := scanner.Text()
		if lineNumber == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}

		if IsBlank(line) {
			continue
		}

		bar, err := Parse(line)
		if err != nil {
			l.logger.Warn("Skipping malformed row",
				zap.String("source", sourceID),
				zap.Int("line", lineNumber),
				zap.Error(err),
			)

			continue
		}

		date := civil.DateOf(bar.Time)
		if date.Before(req.StartDate) || date.After(req.EndDate) {
			continue
		}

		records = append(records, types.NewBarRecord(bar, sourceID))
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to read %s", sourceID)
	}

	return records, nil
}

// findEntry resolves an entry by exact name, then case-insensitively by full name,
// then case-insensitively by base name.
func findEntry(files []*zip.File, name string) *zip.File {
	for _, f := range files {
		if f.Name == name {
			return f
		}
	}

	for _, f := range files {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}

	for _, f := range files {
		if strings.EqualFold(path.Base(f.Name), name) {
			return f
		}
	}

	return nil
}
