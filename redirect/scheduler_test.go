package redirect

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testInterval = 10 * time.Millisecond

func TestSchedulerTicksThenExpiresOnce(t *testing.T) {
	s := New(testInterval)

	var mu sync.Mutex
	var ticks []int
	var expired atomic.Int32

	if err := s.Start(5, func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}, func() {
		expired.Add(1)
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{4, 3, 2, 1, 0}
	if len(ticks) != len(want) {
		t.Fatalf("expected %d ticks, got %v", len(want), ticks)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("tick %d: expected %d, got %d", i, want[i], ticks[i])
		}
	}
	if got := expired.Load(); got != 1 {
		t.Fatalf("expected onExpire once, got %d", got)
	}
	if !s.Expired() {
		t.Fatal("expected Expired to report true")
	}
}

func TestSchedulerCancelBeforeExpiryNeverFires(t *testing.T) {
	s := New(testInterval)
	var expired atomic.Int32

	if err := s.Start(5, nil, func() { expired.Add(1) }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(2 * testInterval)
	s.Cancel()

	// Wait well past the original expiry.
	time.Sleep(10 * testInterval)
	if got := expired.Load(); got != 0 {
		t.Fatalf("expected onExpire never to fire, got %d", got)
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done to be closed after cancel")
	}
}

func TestSchedulerCancelIsIdempotent(t *testing.T) {
	s := New(testInterval)
	var expired atomic.Int32

	if err := s.Start(1, nil, func() { expired.Add(1) }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-s.Done()

	s.Cancel()
	s.Cancel()
	if got := expired.Load(); got != 1 {
		t.Fatalf("expected onExpire once, got %d", got)
	}
	if !s.Expired() {
		t.Fatal("cancel after expiry must not clear expired state")
	}
}

func TestSchedulerCancelBeforeStart(t *testing.T) {
	s := New(testInterval)
	s.Cancel()

	var expired atomic.Int32
	if err := s.Start(1, nil, func() { expired.Add(1) }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-s.Done()
	time.Sleep(3 * testInterval)
	if got := expired.Load(); got != 0 {
		t.Fatalf("expected no expiry, got %d", got)
	}
}

func TestSchedulerStartTwice(t *testing.T) {
	s := New(testInterval)
	defer s.Cancel()

	if err := s.Start(3, nil, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(3, nil, nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSchedulerZeroSecondsExpiresImmediately(t *testing.T) {
	s := New(time.Hour)
	var ticks, expired atomic.Int32

	if err := s.Start(0, func(int) { ticks.Add(1) }, func() { expired.Add(1) }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("expected immediate expiry")
	}
	if ticks.Load() != 0 || expired.Load() != 1 {
		t.Fatalf("expected 0 ticks and 1 expiry, got %d and %d", ticks.Load(), expired.Load())
	}
}
