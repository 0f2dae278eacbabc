package writer

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	barsTable = "bars"
	// priceType keeps prices exact in the exported file.
	priceType = "DECIMAL(18,6)"
)

var barColumns = []string{"seq", "symbol", "time", "open", "high", "low", "close", "volume", "source_file"}

// DuckDBWriter buffers records in an in-memory DuckDB table and copies them to a Parquet
// file on Finalize. Rows keep the order they were written in.
type DuckDBWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	sq         squirrel.StatementBuilderType
	seq        int64
	outputPath string
	logger     *logger.Logger
}

// NewDuckDBWriter creates a new DuckDBWriter that exports to outputPath.
func NewDuckDBWriter(outputPath string, log *logger.Logger) *DuckDBWriter {
	return &DuckDBWriter{
		db:         nil,
		tx:         nil,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		seq:        0,
		outputPath: outputPath,
		logger:     log,
	}
}

// Initialize opens the in-memory database, creates the table and begins a transaction.
func (w *DuckDBWriter) Initialize() (err error) {
	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeIOFailure, "failed to open DuckDB connection", err)
	}

	_, err = w.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGINT,
			symbol TEXT,
			time TIMESTAMP,
			open %s,
			high %s,
			low %s,
			close %s,
			volume BIGINT,
			source_file TEXT
		)
	`, barsTable, priceType, priceType, priceType, priceType))
	if err != nil {
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeIOFailure, "failed to create table", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeIOFailure, "failed to begin transaction", err)
	}

	return nil
}

// Write inserts one record inside the open transaction.
func (w *DuckDBWriter) Write(symbol string, record types.BarRecord) error {
	if w.tx == nil {
		return errors.New(errors.ErrCodeIOFailure, "writer not initialized or transaction is nil")
	}

	_, err := w.sq.Insert(barsTable).
		Columns(barColumns...).
		Values(
			w.seq,
			symbol,
			record.Time,
			castPrice(record.Open),
			castPrice(record.High),
			castPrice(record.Low),
			castPrice(record.Close),
			record.Volume,
			record.SourceFile,
		).
		RunWith(w.tx).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeIOFailure, "failed to insert record", err)
	}

	w.seq++

	return nil
}

// Finalize commits the transaction and exports the table to Parquet.
func (w *DuckDBWriter) Finalize() (outputPath string, err error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeIOFailure, "writer not initialized or transaction is nil")
	}

	if err = w.tx.Commit(); err != nil {
		//nolint:errcheck // the commit error is the one worth reporting
		w.tx.Rollback()
		w.tx = nil

		return "", errors.Wrap(errors.ErrCodeIOFailure, "failed to commit transaction", err)
	}

	w.tx = nil

	query, _, err := w.sq.Select(barColumns[1:]...).From(barsTable).OrderBy("seq").ToSql()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIOFailure, "failed to build export query", err)
	}

	_, err = w.db.Exec(fmt.Sprintf(`COPY (%s) TO '%s' (FORMAT PARQUET)`, query, escapeLiteral(w.outputPath)))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIOFailure, "failed to export to Parquet", err)
	}

	if w.logger != nil {
		w.logger.Info("Exported records to Parquet", zap.String("path", w.outputPath), zap.Int64("records", w.seq))
	}

	return w.outputPath, nil
}

// Close rolls back an unfinished transaction and closes the database.
func (w *DuckDBWriter) Close() error {
	var closeErrors []string

	if w.tx != nil {
		if err := w.tx.Rollback(); err != nil {
			closeErrors = append(closeErrors, fmt.Sprintf("failed to rollback transaction: %v", err))
		}

		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Sprintf("failed to close db connection: %v", err))
		}

		w.db = nil
	}

	if len(closeErrors) > 0 {
		return errors.Newf(errors.ErrCodeIOFailure, "errors occurred during close: %s", strings.Join(closeErrors, "; "))
	}

	return nil
}

func (w *DuckDBWriter) GetOutputPath() string {
	return w.outputPath
}

func castPrice(value decimal.Decimal) squirrel.Sqlizer {
	return squirrel.Expr(fmt.Sprintf("CAST(? AS %s)", priceType), value.String())
}

func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
