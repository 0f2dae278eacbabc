package lean

import (
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SnapshotTestSuite struct {
	suite.Suite
}

func TestSnapshotSuite(t *testing.T) {
	suite.Run(t, new(SnapshotTestSuite))
}

var (
	jan1 = civil.Date{Year: 2024, Month: time.January, Day: 1}
	jan5 = civil.Date{Year: 2024, Month: time.January, Day: 5}
)

func makeRecords(n int) []types.BarRecord {
	records := make([]types.BarRecord, n)
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	for i := range records {
		records[i] = types.NewBarRecord(makeBar(start.Add(time.Duration(i)*time.Minute), "1"), "src")
	}

	return records
}

func (suite *SnapshotTestSuite) TestValidateAllEmpty() {
	problems := SnapshotRequest{}.Validate()
	suite.Equal([]string{
		"Symbol is required.",
		"Resolution is required.",
		"SecurityType is required.",
		"DataDirectory is required.",
		"StartDate must be specified.",
		"EndDate must be specified.",
		"PageNumber must be at least 1.",
		"PageSize must be at least 1.",
	}, problems)
}

func (suite *SnapshotTestSuite) TestValidateUnsupportedResolutionAndRange() {
	req := SnapshotRequest{
		Symbol:        "AAPL",
		Resolution:    "weekly",
		SecurityType:  "equity",
		DataDirectory: "/data",
		StartDate:     jan5,
		EndDate:       jan1,
		PageNumber:    1,
		PageSize:      10,
	}

	suite.Equal([]string{
		"Resolution 'weekly' is not supported. Supported values: tick, second, minute, hour, daily.",
		"StartDate must be on or before EndDate.",
	}, req.Validate())
}

func (suite *SnapshotTestSuite) TestDefaultSnapshotRequest() {
	req := DefaultSnapshotRequest(jan5)
	suite.Equal("minute", req.Resolution)
	suite.Equal("equity", req.SecurityType)
	suite.Equal(1, req.PageNumber)
	suite.Equal(100, req.PageSize)
	suite.Equal(civil.Date{Year: 2023, Month: time.December, Day: 29}, req.StartDate)
	suite.Equal(jan5, req.EndDate)

	req.Symbol = "AAPL"
	req.DataDirectory = "/data"
	suite.Empty(req.Validate())
}

func (suite *SnapshotTestSuite) TestNewLeanDataSnapshotValidation() {
	_, err := NewLeanDataSnapshot(uuid.Nil, " ", "minute", jan1, jan5, nil, nil, time.Now())
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = NewLeanDataSnapshot(uuid.Nil, "AAPL", "", jan1, jan5, nil, nil, time.Now())
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = NewLeanDataSnapshot(uuid.Nil, "AAPL", "minute", jan5, jan1, nil, nil, time.Now())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidDateRange))

	snapshot, err := NewLeanDataSnapshot(uuid.Nil, "AAPL", "minute", jan1, jan1, nil, nil, time.Now())
	suite.Require().NoError(err)
	suite.NotEqual(uuid.Nil, snapshot.ID)
}

func (suite *SnapshotTestSuite) TestSnapshotCopiesInputs() {
	records := makeRecords(3)
	sources := []string{"a.zip"}

	snapshot, err := NewLeanDataSnapshot(uuid.Nil, "AAPL", "minute", jan1, jan5, records, sources, time.Now())
	suite.Require().NoError(err)

	records[0].SourceFile = "mutated"
	sources[0] = "mutated"
	suite.Equal("src", snapshot.Records()[0].SourceFile)
	suite.Equal("a.zip", snapshot.SourceFiles[0])

	out := snapshot.Records()
	out[1].SourceFile = "mutated"
	suite.Equal("src", snapshot.Records()[1].SourceFile)
}

func (suite *SnapshotTestSuite) TestContains() {
	snapshot, err := NewLeanDataSnapshot(uuid.Nil, "AAPL", "minute", jan1, jan5, nil, nil, time.Now())
	suite.Require().NoError(err)

	suite.True(snapshot.Contains(jan1))
	suite.True(snapshot.Contains(jan5))
	suite.False(snapshot.Contains(jan5.AddDays(1)))
	suite.False(snapshot.Contains(jan1.AddDays(-1)))
}

func (suite *SnapshotTestSuite) TestPage() {
	snapshot, err := NewLeanDataSnapshot(uuid.Nil, "AAPL", "minute", jan1, jan5, makeRecords(7), nil, time.Now())
	suite.Require().NoError(err)

	page, err := snapshot.Page(2, 3)
	suite.Require().NoError(err)
	suite.Equal(3, page.RecordCount())
	suite.Equal(snapshot.Records()[3].Time, page.Records()[0].Time)
	suite.Equal(snapshot.ID, page.ID)
	suite.Equal(7, snapshot.RecordCount(), "paging must not change the source")

	last, err := snapshot.Page(3, 3)
	suite.Require().NoError(err)
	suite.Equal(1, last.RecordCount())

	beyond, err := snapshot.Page(10, 3)
	suite.Require().NoError(err)
	suite.Equal(0, beyond.RecordCount())

	huge, err := snapshot.Page(math.MaxInt/2+2, 2)
	suite.Require().NoError(err)
	suite.Equal(0, huge.RecordCount())

	whole, err := snapshot.Page(1, math.MaxInt)
	suite.Require().NoError(err)
	suite.Equal(7, whole.RecordCount())

	_, err = snapshot.Page(0, 3)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPage))

	_, err = snapshot.Page(1, 0)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPage))
}

func (suite *SnapshotTestSuite) TestPaginationLaw() {
	for _, n := range []int{0, 1, 49, 50, 51, 120} {
		for _, size := range []int{1, 7, 50} {
			snapshot, err := NewLeanDataSnapshot(uuid.Nil, "AAPL", "minute", jan1, jan5, makeRecords(n), nil, time.Now())
			suite.Require().NoError(err)

			page := &SnapshotPage{Snapshot: snapshot, PageNumber: 1, PageSize: size, TotalRecords: n}
			total := 0

			for p := 1; p <= page.TotalPages(); p++ {
				slice, err := snapshot.Page(p, size)
				suite.Require().NoError(err)
				total += slice.RecordCount()

				if p == page.TotalPages() && n%size != 0 {
					suite.Equal(n%size, slice.RecordCount())
				}
			}

			suite.Equal(n, total, "n=%d size=%d", n, size)
			suite.Equal((n+size-1)/size, page.TotalPages())
		}
	}
}

func (suite *SnapshotTestSuite) TestTotalPagesEmpty() {
	page := &SnapshotPage{PageNumber: 1, PageSize: 10, TotalRecords: 0}
	suite.Equal(0, page.TotalPages())
}
