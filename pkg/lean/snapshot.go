package lean

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
)

const (
	DefaultPageSize       = 100
	defaultWindowDays     = 7
	defaultSecurityType   = "equity"
	supportedResolutionsT = "tick, second, minute, hour, daily"
)

// SnapshotRequest asks for one page of bars over an inclusive date window.
type SnapshotRequest struct {
	Symbol        string     `json:"symbol"`
	Resolution    string     `json:"resolution"`
	SecurityType  string     `json:"securityType"`
	DataDirectory string     `json:"dataDirectory"`
	StartDate     civil.Date `json:"startDate"`
	EndDate       civil.Date `json:"endDate"`
	PageNumber    int        `json:"pageNumber"`
	PageSize      int        `json:"pageSize"`
}

// DefaultSnapshotRequest returns a request for the week ending today with minute
// equity bars, first page of 100.
func DefaultSnapshotRequest(today civil.Date) SnapshotRequest {
	return SnapshotRequest{
		Symbol:        "",
		Resolution:    string(ResolutionMinute),
		SecurityType:  defaultSecurityType,
		DataDirectory: "",
		StartDate:     today.AddDays(-defaultWindowDays),
		EndDate:       today,
		PageNumber:    1,
		PageSize:      DefaultPageSize,
	}
}

// Validate returns every problem with the request. An empty slice means valid.
func (r SnapshotRequest) Validate() []string {
	var problems []string

	if strings.TrimSpace(r.Symbol) == "" {
		problems = append(problems, "Symbol is required.")
	}

	if strings.TrimSpace(r.Resolution) == "" {
		problems = append(problems, "Resolution is required.")
	} else if _, err := ParseResolution(r.Resolution); err != nil {
		problems = append(problems, fmt.Sprintf("Resolution '%s' is not supported. Supported values: %s.", r.Resolution, supportedResolutionsT))
	}

	if strings.TrimSpace(r.SecurityType) == "" {
		problems = append(problems, "SecurityType is required.")
	}

	if strings.TrimSpace(r.DataDirectory) == "" {
		problems = append(problems, "DataDirectory is required.")
	}

	if isZeroDate(r.StartDate) {
		problems = append(problems, "StartDate must be specified.")
	}

	if isZeroDate(r.EndDate) {
		problems = append(problems, "EndDate must be specified.")
	}

	if !isZeroDate(r.StartDate) && !isZeroDate(r.EndDate) && r.StartDate.After(r.EndDate) {
		problems = append(problems, "StartDate must be on or before EndDate.")
	}

	if r.PageNumber < 1 {
		problems = append(problems, "PageNumber must be at least 1.")
	}

	if r.PageSize < 1 {
		problems = append(problems, "PageSize must be at least 1.")
	}

	return problems
}

// LeanDataSnapshot is an immutable, time-ordered set of bar records for one symbol.
type LeanDataSnapshot struct {
	ID          uuid.UUID
	Symbol      string
	Resolution  string
	StartDate   civil.Date
	EndDate     civil.Date
	SourceFiles []string
	LoadedAt    time.Time

	records []types.BarRecord
}

// NewLeanDataSnapshot validates its inputs and copies records and sourceFiles.
// A nil id gets a fresh one.
func NewLeanDataSnapshot(
	id uuid.UUID,
	symbol, resolution string,
	startDate, endDate civil.Date,
	records []types.BarRecord,
	sourceFiles []string,
	loadedAt time.Time,
) (*LeanDataSnapshot, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if strings.TrimSpace(resolution) == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "resolution is required")
	}

	if startDate.After(endDate) {
		return nil, errors.Newf(errors.ErrCodeInvalidDateRange, "start date %s is after end date %s", startDate, endDate)
	}

	if id == uuid.Nil {
		id = uuid.New()
	}

	copiedRecords := make([]types.BarRecord, len(records))
	copy(copiedRecords, records)

	copiedSources := make([]string, len(sourceFiles))
	copy(copiedSources, sourceFiles)

	return &LeanDataSnapshot{
		ID:          id,
		Symbol:      symbol,
		Resolution:  resolution,
		StartDate:   startDate,
		EndDate:     endDate,
		SourceFiles: copiedSources,
		LoadedAt:    loadedAt,
		records:     copiedRecords,
	}, nil
}

// Records returns a copy of the records.
func (s *LeanDataSnapshot) Records() []types.BarRecord {
	out := make([]types.BarRecord, len(s.records))
	copy(out, s.records)

	return out
}

func (s *LeanDataSnapshot) RecordCount() int {
	return len(s.records)
}

// Contains reports whether date lies inside the snapshot window.
func (s *LeanDataSnapshot) Contains(date civil.Date) bool {
	return !date.Before(s.StartDate) && !date.After(s.EndDate)
}

// Page returns a new snapshot holding records [(pageNumber-1)*pageSize, +pageSize).
// Pages past the end are empty.
func (s *LeanDataSnapshot) Page(pageNumber, pageSize int) (*LeanDataSnapshot, error) {
	if pageNumber < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidPage, "page number must be at least 1, got %d", pageNumber)
	}

	if pageSize < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidPage, "page size must be at least 1, got %d", pageSize)
	}

	total := len(s.records)

	// Compare by division so large page numbers cannot overflow the offset.
	start := total
	if pageNumber-1 < pageCount(total, pageSize) {
		start = (pageNumber - 1) * pageSize
	}

	end := total
	if pageSize < total-start {
		end = start + pageSize
	}

	return NewLeanDataSnapshot(s.ID, s.Symbol, s.Resolution, s.StartDate, s.EndDate, s.records[start:end], s.SourceFiles, s.LoadedAt)
}

// SnapshotPage is one page of a snapshot plus the size of the whole result.
type SnapshotPage struct {
	Snapshot     *LeanDataSnapshot
	PageNumber   int
	PageSize     int
	TotalRecords int
}

// TotalPages is ceil(TotalRecords/PageSize), or 0 when there are no records.
func (p *SnapshotPage) TotalPages() int {
	if p.TotalRecords == 0 || p.PageSize < 1 {
		return 0
	}

	return pageCount(p.TotalRecords, p.PageSize)
}

// pageCount is ceil(total/size) without the overflow of total+size-1.
func pageCount(total, size int) int {
	pages := total / size
	if total%size != 0 {
		pages++
	}

	return pages
}

func isZeroDate(d civil.Date) bool {
	return d == civil.Date{}
}
