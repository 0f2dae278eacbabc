package jobs

import (
	"sync"

	"github.com/rxtech-lab/lean-toolbox/internal/types"
)

// Subscription delivers job updates on C until Unsubscribe is called.
// Updates are queued without bound so a slow reader never blocks the manager.
type Subscription struct {
	C <-chan types.JobInfo

	out     chan types.JobInfo
	mu      sync.Mutex
	queue   []types.JobInfo
	signal  chan struct{}
	done    chan struct{}
	once    sync.Once
	release func()
}

func newSubscription(buffer int, release func()) *Subscription {
	if buffer < 0 {
		buffer = 0
	}

	out := make(chan types.JobInfo, buffer)
	sub := &Subscription{
		C:       out,
		out:     out,
		queue:   nil,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		release: release,
	}

	go sub.pump()

	return sub
}

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}

		close(s.done)
	})
}

func (s *Subscription) enqueue(job types.JobInfo) {
	s.mu.Lock()
	s.queue = append(s.queue, job)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()

				break
			}

			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- next:
			case <-s.done:
				return
			}
		}
	}
}
