package redirect

import (
	"errors"
	"sync"
	"time"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = time.Second

// ErrAlreadyStarted is returned when Start is called on a scheduler that has
// already been started.
var ErrAlreadyStarted = errors.New("redirect: scheduler already started")

// Scheduler is a single-use, cancelable countdown.
type Scheduler struct {
	interval time.Duration

	mu       sync.Mutex
	started  bool
	canceled bool
	expired  bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New returns a scheduler ticking every interval. interval <= 0 uses DefaultInterval.
func New(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins counting down from seconds. onTick receives each decremented
// value (seconds-1 down to 0); onExpire runs once after the final tick.
// seconds <= 0 expires without ticking. Either callback may be nil.
func (s *Scheduler) Start(seconds int, onTick func(remaining int), onExpire func()) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	canceled := s.canceled
	s.mu.Unlock()

	if canceled {
		close(s.done)
		return nil
	}

	go s.run(seconds, onTick, onExpire)
	return nil
}

func (s *Scheduler) run(remaining int, onTick func(int), onExpire func()) {
	defer close(s.done)

	if remaining > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for remaining > 0 {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
			remaining--
			if !s.live() {
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
		}
	}

	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.expired = true
	s.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
}

func (s *Scheduler) live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.canceled
}

// Cancel stops the countdown. Once Cancel returns, onExpire will not start.
// Canceling after expiry, or more than once, does nothing.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	if !s.expired {
		s.canceled = true
	}
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed when the countdown has finished, by expiry or cancellation.
// It is never closed for a scheduler that was not started.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Expired reports whether onExpire was (or is being) invoked.
func (s *Scheduler) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}
