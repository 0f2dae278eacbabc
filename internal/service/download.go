// Package service runs downloads in the background and reports them to the job manager.
package service

import (
	"context"
	"sync"

	"github.com/rxtech-lab/lean-toolbox/internal/jobs"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"go.uber.org/zap"
)

// Downloader fetches and writes the bars for one request.
type Downloader interface {
	Download(ctx context.Context, req lean.DownloadRequest) (*lean.WriteResult, error)
}

// DownloadService owns the running download tasks.
type DownloadService struct {
	jobs       *jobs.Manager
	downloader Downloader
	logger     *logger.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewDownloadService(manager *jobs.Manager, downloader Downloader, log *logger.Logger) *DownloadService {
	return &DownloadService{
		jobs:       manager,
		downloader: downloader,
		logger:     log,
		mu:         sync.Mutex{},
		cancels:    make(map[string]context.CancelFunc),
		wg:         sync.WaitGroup{},
	}
}

// StartDownload validates req, registers a job and runs the download in the background.
// The task outlives ctx and ends with StopDownload or when the download returns.
func (s *DownloadService) StartDownload(ctx context.Context, req lean.DownloadRequest) (types.JobInfo, error) {
	req = req.WithDefaults()

	if err := req.Validate(); err != nil {
		return types.JobInfo{}, err
	}

	job := s.jobs.Start(ctx, req)
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.cancels[job.JobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)

	go s.run(taskCtx, job, req)

	return job, nil
}

func (s *DownloadService) run(ctx context.Context, job types.JobInfo, req lean.DownloadRequest) {
	defer s.wg.Done()

	log := s.logger.WithCorrelationID(job.JobID)

	defer func() {
		s.mu.Lock()
		cancel, ok := s.cancels[job.JobID]
		delete(s.cancels, job.JobID)
		s.mu.Unlock()

		if ok {
			cancel()
		}
	}()

	result, err := s.downloader.Download(ctx, req)
	if err == nil && result != nil && !result.Success {
		err = errors.Newf(errors.ErrCodeIOFailure, "download of %s did not complete: %s", req.Symbol, result.Error)
	}

	if err != nil {
		log.Error("Download failed", zap.String("symbol", req.Symbol), zap.Error(err))
	} else {
		log.Info("Download completed", zap.String("symbol", req.Symbol), zap.Int("files", len(result.Files)))
	}

	// a stopped job is already terminal, so this is a no-op for it
	s.jobs.Complete(ctx, job.JobID, err)
}

// StopDownload marks the job Stopped and cancels its task. It reports whether the job
// was running.
func (s *DownloadService) StopDownload(ctx context.Context, jobID string) bool {
	stopped := s.jobs.Stop(ctx, jobID)

	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	s.mu.Unlock()

	if ok {
		cancel()
	}

	return stopped
}

// Jobs lists every known job.
func (s *DownloadService) Jobs() []types.JobInfo {
	return s.jobs.List()
}

// Manager exposes the job manager for subscriptions and lookups.
func (s *DownloadService) Manager() *jobs.Manager {
	return s.jobs
}

// Wait blocks until every started task has returned.
func (s *DownloadService) Wait() {
	s.wg.Wait()
}

// Shutdown stops every running job and waits for the tasks to return.
func (s *DownloadService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	running := make([]string, 0, len(s.cancels))

	for jobID := range s.cancels {
		running = append(running, jobID)
	}
	s.mu.Unlock()

	for _, jobID := range running {
		s.StopDownload(ctx, jobID)
	}

	s.Wait()
}
