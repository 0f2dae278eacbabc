package service

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/lean-toolbox/internal/jobs"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/mocks"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type DownloadServiceTestSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	downloader *mocks.MockDownloader
	manager    *jobs.Manager
	service    *DownloadService
}

func TestDownloadServiceSuite(t *testing.T) {
	suite.Run(t, new(DownloadServiceTestSuite))
}

func (suite *DownloadServiceTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.downloader = mocks.NewMockDownloader(suite.ctrl)
	suite.manager = jobs.NewManager(context.Background(), nil, logger.NewNop())
	suite.service = NewDownloadService(suite.manager, suite.downloader, logger.NewNop())
}

func (suite *DownloadServiceTestSuite) TearDownTest() {
	suite.service.Wait()
	suite.manager.Close()
	suite.ctrl.Finish()
}

func request() lean.DownloadRequest {
	return lean.DownloadRequest{
		Symbol:       "SPY",
		SecurityType: "equity",
		Resolution:   "daily",
		From:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:           time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		DataDir:      "/data",
	}
}

func (suite *DownloadServiceTestSuite) TestCompletedDownload() {
	suite.downloader.EXPECT().Download(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req lean.DownloadRequest) (*lean.WriteResult, error) {
		suite.Equal("SMART", req.Exchange)
		suite.Equal("USD", req.Currency)

		return &lean.WriteResult{Success: true, Files: []string{"equity/usa/daily/spy.zip"}}, nil
	})

	job, err := suite.service.StartDownload(context.Background(), request())
	suite.Require().NoError(err)
	suite.Equal(types.JobStatusRunning, job.Status)

	suite.service.Wait()

	finished := suite.manager.Get(job.JobID).Unwrap()
	suite.Equal(types.JobStatusCompleted, finished.Status)
	suite.NotNil(finished.EndTime)
}

func (suite *DownloadServiceTestSuite) TestFailedDownload() {
	suite.downloader.EXPECT().Download(gomock.Any(), gomock.Any()).Return(nil, errors.New(errors.ErrCodeSourceFetchFailed, "no data"))

	job, err := suite.service.StartDownload(context.Background(), request())
	suite.Require().NoError(err)

	suite.service.Wait()

	finished := suite.manager.Get(job.JobID).Unwrap()
	suite.Equal(types.JobStatusFailed, finished.Status)
	suite.Contains(finished.Error, "no data")
}

func (suite *DownloadServiceTestSuite) TestUnsuccessfulResultFailsJob() {
	suite.downloader.EXPECT().Download(gomock.Any(), gomock.Any()).Return(&lean.WriteResult{Success: false, Error: "disk full"}, nil)

	job, err := suite.service.StartDownload(context.Background(), request())
	suite.Require().NoError(err)

	suite.service.Wait()

	finished := suite.manager.Get(job.JobID).Unwrap()
	suite.Equal(types.JobStatusFailed, finished.Status)
	suite.Contains(finished.Error, "disk full")
}

func (suite *DownloadServiceTestSuite) TestInvalidRequestRegistersNothing() {
	req := request()
	req.To = req.From

	_, err := suite.service.StartDownload(context.Background(), req)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeValidationFailed))
	suite.Empty(suite.service.Jobs())
}

func (suite *DownloadServiceTestSuite) TestStopCancelsTask() {
	started := make(chan struct{})

	suite.downloader.EXPECT().Download(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ lean.DownloadRequest) (*lean.WriteResult, error) {
		close(started)
		<-ctx.Done()

		return nil, ctx.Err()
	})

	job, err := suite.service.StartDownload(context.Background(), request())
	suite.Require().NoError(err)

	<-started
	suite.True(suite.service.StopDownload(context.Background(), job.JobID))
	suite.service.Wait()

	finished := suite.manager.Get(job.JobID).Unwrap()
	suite.Equal(types.JobStatusStopped, finished.Status, "a stopped job does not turn into Failed")
	suite.False(suite.service.StopDownload(context.Background(), job.JobID))
}

func (suite *DownloadServiceTestSuite) TestTaskOutlivesCallerContext() {
	release := make(chan struct{})

	suite.downloader.EXPECT().Download(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ lean.DownloadRequest) (*lean.WriteResult, error) {
		<-release

		return &lean.WriteResult{Success: true}, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())

	job, err := suite.service.StartDownload(ctx, request())
	suite.Require().NoError(err)

	cancel()
	close(release)
	suite.service.Wait()

	suite.Equal(types.JobStatusCompleted, suite.manager.Get(job.JobID).Unwrap().Status)
}

func (suite *DownloadServiceTestSuite) TestShutdownStopsRunningJobs() {
	suite.downloader.EXPECT().Download(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ lean.DownloadRequest) (*lean.WriteResult, error) {
		<-ctx.Done()

		return nil, ctx.Err()
	}).Times(2)

	first, err := suite.service.StartDownload(context.Background(), request())
	suite.Require().NoError(err)

	second, err := suite.service.StartDownload(context.Background(), request())
	suite.Require().NoError(err)

	suite.service.Shutdown(context.Background())

	suite.Equal(types.JobStatusStopped, suite.manager.Get(first.JobID).Unwrap().Status)
	suite.Equal(types.JobStatusStopped, suite.manager.Get(second.JobID).Unwrap().Status)
	suite.Len(suite.service.Jobs(), 2)
}
