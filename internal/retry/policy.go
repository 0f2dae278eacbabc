// Package retry runs data source calls under an exponential backoff policy tuned for
// brokerage pacing limits.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/lean-toolbox/internal/logger"
	toolboxerrors "github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second
	DefaultMaxRetries = 5

	jitterFactor = 0.25
	multiplier   = 2.0
)

var retryablePatterns = []string{
	"pacing",
	"rate limit",
	"too many requests",
	"throttle",
	"timeout",
}

// Policy retries an operation with delay min(base*2^attempt, max) randomized by ±25%.
type Policy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int

	logger *logger.Logger
}

// NewPolicy returns the default policy: 1s base, 30s cap, five retries.
func NewPolicy(log *logger.Logger) *Policy {
	return &Policy{
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		MaxRetries: DefaultMaxRetries,
		logger:     log,
	}
}

// Execute runs op until it succeeds, shouldRetry rejects its error, the retry budget
// is spent or ctx is done. The last error from op is returned.
func (p *Policy) Execute(ctx context.Context, op func(ctx context.Context) error, shouldRetry func(error) bool) error {
	attempt := 0

	operation := func() error {
		attempt++

		err := op(ctx)
		if err == nil {
			return nil
		}

		if !shouldRetry(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	notify := func(err error, delay time.Duration) {
		p.logger.Info("Operation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxRetries+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(operation, p.backOff(ctx), notify)
}

// ExecuteDefault is Execute with IsRetryable.
func (p *Policy) ExecuteDefault(ctx context.Context, op func(ctx context.Context) error) error {
	return p.Execute(ctx, op, IsRetryable)
}

func (p *Policy) backOff(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = p.BaseDelay
	exponential.MaxInterval = p.MaxDelay
	exponential.Multiplier = multiplier
	exponential.RandomizationFactor = jitterFactor
	exponential.MaxElapsedTime = 0
	exponential.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(max(p.MaxRetries, 0))), ctx)
}

// IsRetryable reports whether err looks like a pacing, throttling, timeout or network
// failure that is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if toolboxerrors.HasCode(err, toolboxerrors.ErrCodeTransientSource) {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
