package authsession

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher hands lifecycle events to the sink on its own goroutine so
// Session and Attempt never wait on a slow sink while holding their locks. A
// nil dispatcher means audit is disabled and every method is a no-op.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	dropIfFull bool
	now        func() time.Time

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	closing  atomic.Bool
	dropped  atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, size),
		dropIfFull: cfg.DropIfFull,
		now:        time.Now,
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer close(d.stopped)
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever was queued before Close.
func (d *auditDispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// record builds an event from f and queues it. Only the error text is kept;
// callers pass sentinel-wrapped errors, never raw tokens.
func (d *auditDispatcher) record(ctx context.Context, eventType string, success bool, f auditFields) {
	if d == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: d.now().UTC(),
		EventType: eventType,
		UserID:    f.userID,
		AttemptID: f.attemptID,
		Kind:      f.kind,
		Success:   success,
	}
	if f.err != nil {
		ev.Error = f.err.Error()
	}
	if f.metadata != nil {
		ev.Metadata = f.metadata()
	}
	d.Emit(ctx, ev)
}

// Emit queues ev. With DropIfFull a full queue drops and counts the event;
// otherwise Emit blocks until there is room, ctx ends or the dispatcher closes.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events, flushes the queue into the sink and waits for
// the loop to exit. It is safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
	})
	<-d.stopped
}

// Dropped counts events lost to a full queue.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
