// Package jobs tracks download jobs and notifies subscribers of every state change.
//
// The manager does not run downloads. Callers start a job, do the work elsewhere and
// report back through Complete or Stop.
package jobs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"go.uber.org/zap"
)

// Manager owns the job table.
type Manager struct {
	mu          sync.RWMutex
	jobs        map[string]types.JobInfo
	version     uint64
	subscribers map[uint64]*Subscription
	nextSubID   uint64

	persistMu sync.Mutex
	persisted uint64

	store  Store
	logger *logger.Logger
	now    func() time.Time
}

// NewManager restores the table from store (which may be nil) and republishes it.
func NewManager(ctx context.Context, store Store, log *logger.Logger) *Manager {
	m := &Manager{
		mu:          sync.RWMutex{},
		jobs:        make(map[string]types.JobInfo),
		version:     0,
		subscribers: make(map[uint64]*Subscription),
		nextSubID:   0,
		persistMu:   sync.Mutex{},
		persisted:   0,
		store:       store,
		logger:      log,
		now:         time.Now,
	}

	m.restore(ctx)

	return m
}

func (m *Manager) restore(ctx context.Context) {
	if m.store == nil {
		return
	}

	restored, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("Failed to load persisted jobs", zap.Error(err))

		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range restored {
		if job.JobID == "" {
			continue
		}

		m.jobs[job.JobID] = job
		m.publishLocked(job)
	}

	if len(restored) > 0 {
		m.logger.Info("Restored persisted jobs", zap.Int("count", len(m.jobs)))
	}
}

// Start registers a Running job for req and returns it.
func (m *Manager) Start(ctx context.Context, req lean.DownloadRequest) types.JobInfo {
	job := types.JobInfo{
		JobID:        newJobID(),
		Symbol:       req.Symbol,
		SecurityType: req.SecurityType,
		Resolution:   req.Resolution,
		Status:       types.JobStatusRunning,
		StartTime:    m.now(),
		EndTime:      nil,
		Error:        "",
	}

	m.mu.Lock()
	m.jobs[job.JobID] = job
	m.publishLocked(job)
	snapshot, version := m.snapshotLocked(), m.bumpLocked()
	m.mu.Unlock()

	m.logger.Info("Job started",
		zap.String("job_id", job.JobID),
		zap.String("symbol", job.Symbol),
		zap.String("resolution", job.Resolution),
	)

	m.persist(ctx, snapshot, version)

	return job
}

// Complete moves a Running job to Completed, or to Failed when err is non-nil.
// It reports false when the job is unknown or already terminal.
func (m *Manager) Complete(ctx context.Context, jobID string, err error) bool {
	status := types.JobStatusCompleted
	message := ""

	if err != nil {
		status = types.JobStatusFailed
		message = err.Error()
	}

	return m.transition(ctx, jobID, status, message)
}

// Stop moves a Running job to Stopped. Unknown and terminal jobs are left alone.
func (m *Manager) Stop(ctx context.Context, jobID string) bool {
	return m.transition(ctx, jobID, types.JobStatusStopped, "")
}

func (m *Manager) transition(ctx context.Context, jobID string, status types.JobStatus, message string) bool {
	m.mu.Lock()

	current, ok := m.jobs[jobID]
	if !ok || current.Status.IsTerminal() {
		m.mu.Unlock()

		return false
	}

	next := current.WithStatus(status, m.now(), message)
	m.jobs[jobID] = next
	m.publishLocked(next)
	snapshot, version := m.snapshotLocked(), m.bumpLocked()
	m.mu.Unlock()

	fields := []zap.Field{zap.String("job_id", jobID), zap.String("status", string(status))}
	if message != "" {
		fields = append(fields, zap.String("error", message))
	}

	m.logger.Info("Job finished", fields...)

	m.persist(ctx, snapshot, version)

	return true
}

// List returns a copy of every job ordered by start time.
func (m *Manager) List() []types.JobInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotLocked()
}

func (m *Manager) Get(jobID string) optional.Option[types.JobInfo] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return optional.None[types.JobInfo]()
	}

	return optional.Some(job)
}

// Subscribe returns a subscription that first receives the current table and then every
// update. buffer sizes the delivery channel.
func (m *Manager) Subscribe(buffer int) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++

	sub := newSubscription(buffer, func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	})

	current := m.snapshotLocked()
	for _, job := range current {
		sub.enqueue(job)
	}

	m.subscribers[id] = sub

	return sub
}

// Close ends every subscription.
func (m *Manager) Close() {
	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subscribers))

	for _, sub := range m.subscribers {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// publishLocked must be called with mu held for writing so updates keep transition order.
func (m *Manager) publishLocked(job types.JobInfo) {
	for _, sub := range m.subscribers {
		sub.enqueue(job)
	}
}

func (m *Manager) snapshotLocked() []types.JobInfo {
	jobs := make([]types.JobInfo, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].JobID < jobs[j].JobID
		}

		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})

	return jobs
}

// bumpLocked numbers a table state so older snapshots are never persisted over newer ones.
func (m *Manager) bumpLocked() uint64 {
	m.version++

	return m.version
}

// persist writes snapshot unless a newer one has already been written.
func (m *Manager) persist(ctx context.Context, snapshot []types.JobInfo, version uint64) {
	if m.store == nil {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if version <= m.persisted {
		return
	}

	if err := m.store.Save(context.WithoutCancel(ctx), snapshot); err != nil {
		m.logger.Error("Failed to persist jobs", zap.Error(err), zap.Int("count", len(snapshot)))

		return
	}

	m.persisted = version
}

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
