package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ForumWatcher/internal/ports"
)

// IntervalScheduler runs a job immediately and then again after each pause.
// The pause starts when the job returns, so cycles never overlap.
type IntervalScheduler struct {
	interval atomic.Int64
	trigger  chan struct{}

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler with the given pause.
func NewIntervalScheduler(interval time.Duration) *IntervalScheduler {
	s := &IntervalScheduler{trigger: make(chan struct{}, 1)}
	s.SetInterval(interval)
	return s
}

// SetInterval changes the pause; it applies from the next wait.
func (s *IntervalScheduler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.interval.Store(int64(interval))
}

// Interval returns the current pause.
func (s *IntervalScheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Trigger cuts the current pause short. It is a no-op while a job runs and one trigger is pending.
func (s *IntervalScheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start launches the loop in a goroutine. Calling Start twice is a no-op.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		for {
			job(time.Now())

			timer := time.NewTimer(s.Interval())
			select {
			case <-timer.C:
			case <-s.trigger:
				timer.Stop()
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop ends the loop and waits for the running job, or for ctx to expire.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the loop has exited. Nil before Start.
func (s *IntervalScheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
