package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/internal/utils"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"golang.org/x/sys/unix"
)

const lockPollInterval = 25 * time.Millisecond

// Store persists the whole job table. Save replaces whatever was stored before.
type Store interface {
	Save(ctx context.Context, jobs []types.JobInfo) error
	Load(ctx context.Context) ([]types.JobInfo, error)
}

// FileStore keeps the job table as a JSON list in a single file.
// Access is serialized across processes with flock on a sibling ".lock" file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultStorePath is {UserConfigDir}/lean-toolbox/jobs.json.
func DefaultStorePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeJobPersisting, "failed to resolve user config directory", err)
	}

	return filepath.Join(base, "lean-toolbox", "jobs.json"), nil
}

// Path returns the file the table is stored in.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(ctx context.Context, jobs []types.JobInfo) error {
	if jobs == nil {
		jobs = []types.JobInfo{}
	}

	content, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeJobPersisting, "failed to encode job table", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeJobPersisting, "failed to create job store directory", err)
	}

	return s.withLock(ctx, unix.LOCK_EX, func() error {
		if err := utils.WriteFileAtomic(s.path, content, 0o600); err != nil {
			return errors.Wrap(errors.ErrCodeJobPersisting, "failed to write job table", err)
		}

		return nil
	})
}

func (s *FileStore) Load(ctx context.Context) ([]types.JobInfo, error) {
	if !utils.FileExists(s.path) {
		return nil, nil
	}

	var jobs []types.JobInfo

	err := s.withLock(ctx, unix.LOCK_SH, func() error {
		content, err := os.ReadFile(s.path)
		if os.IsNotExist(err) {
			return nil
		}

		if err != nil {
			return errors.Wrap(errors.ErrCodeJobPersisting, "failed to read job table", err)
		}

		if len(content) == 0 {
			return nil
		}

		if err := json.Unmarshal(content, &jobs); err != nil {
			return errors.Wrap(errors.ErrCodeJobPersisting, "failed to decode job table", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

func (s *FileStore) withLock(ctx context.Context, how int, fn func() error) error {
	file, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJobPersisting, "failed to open job store lock", err)
	}
	defer file.Close()

	for {
		err := unix.Flock(int(file.Fd()), how|unix.LOCK_NB)
		if err == nil {
			break
		}

		if err != unix.EWOULDBLOCK {
			return errors.Wrap(errors.ErrCodeJobPersisting, "failed to lock job store", err)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCodeJobPersisting, "timed out waiting for job store lock", ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}

	//nolint:errcheck // closing the descriptor releases the lock as well
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	return fn()
}
