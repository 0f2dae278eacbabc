// Package writer exports loaded bar records to analysis-friendly file formats.
package writer

import (
	"github.com/rxtech-lab/lean-toolbox/internal/types"
)

// RecordWriter defines the interface for exporting bar records to a destination.
type RecordWriter interface {
	// Initialize sets up the writer, potentially creating tables or files.
	Initialize() error
	// Write buffers a single record.
	Write(symbol string, record types.BarRecord) error
	// Finalize completes the writing process (e.g., commits transactions, exports files).
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// GetOutputPath returns the configured output file path.
	GetOutputPath() string
}
