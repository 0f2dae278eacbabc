package provider

import (
	"context"
	"iter"
	"time"

	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to a data source. Each FetchBars call takes one token.
type RateLimited struct {
	source  DataSource
	limiter *rate.Limiter
}

// NewRateLimited allows requestsPerMinute calls with a burst of one.
func NewRateLimited(source DataSource, requestsPerMinute int) *RateLimited {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}

	return NewRateLimitedWithLimiter(source, rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1))
}

func NewRateLimitedWithLimiter(source DataSource, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{
		source:  source,
		limiter: limiter,
	}
}

func (r *RateLimited) FetchBars(ctx context.Context, req lean.DownloadRequest) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		if err := r.limiter.Wait(ctx); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeSourceFetchFailed, "rate limiter wait failed", err))

			return
		}

		for bar, err := range r.source.FetchBars(ctx, req) {
			if !yield(bar, err) {
				return
			}

			if err != nil {
				return
			}
		}
	}
}
