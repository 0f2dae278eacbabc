package lean

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rxtech-lab/lean-toolbox/internal/utils"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
)

// ArchiveWriter writes single-entry zip archives (or plain files) below a data directory.
// A reader never observes a half-written final file: content goes to a temp sibling
// first and is renamed into place.
type ArchiveWriter struct {
	baseDir string
}

func NewArchiveWriter(baseDir string) *ArchiveWriter {
	return &ArchiveWriter{
		baseDir: baseDir,
	}
}

// WriteFile writes content to directory/filename and returns the path relative to the
// data directory. When asZip is set the archive holds one entry named after filename
// with a .csv extension.
func (w *ArchiveWriter) WriteFile(ctx context.Context, directory, filename string, content []byte, asZip bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to create directory %s", directory)
	}

	payload := content
	if asZip {
		zipped, err := zipSingleEntry(EntryNameForArchive(filename), content)
		if err != nil {
			return "", errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to compress %s", filename)
		}

		payload = zipped
	}

	fullPath := filepath.Join(directory, filename)
	if err := utils.WriteFileAtomic(fullPath, payload, 0644); err != nil {
		return "", errors.Wrapf(errors.ErrCodeIOFailure, err, "failed to write %s", fullPath)
	}

	relative, err := filepath.Rel(w.baseDir, fullPath)
	if err != nil {
		return fullPath, nil //nolint:nilerr // an unrelated directory still has a usable absolute path
	}

	return relative, nil
}

func zipSingleEntry(entryName string, content []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if _, err := entry.Write(content); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
