package cgAuth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// auditDispatcher hands events to the sink on a single goroutine so flows
// never wait on audit I/O. A nil dispatcher (audit disabled) drops everything.
type auditDispatcher struct {
	sink       AuditSink
	log        *logrus.Entry
	dropIfFull bool

	// mu orders sends against Close; senders hold it shared.
	mu       sync.RWMutex
	closed   bool
	events   chan AuditEvent
	finished chan struct{}
	dropped  atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, log *logrus.Entry) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	d := &auditDispatcher{
		sink:       sink,
		log:        log.WithField("component", "audit"),
		dropIfFull: cfg.DropIfFull,
		events:     make(chan AuditEvent, cfg.BufferSize),
		finished:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.finished)
	for event := range d.events {
		d.deliver(event)
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("event_type", event.EventType).Errorf("audit sink panicked: %v", r)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. With DropIfFull a full buffer drops the event and counts
// it; otherwise Emit waits for space or for ctx to end. Events emitted after
// Close are ignored.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close flushes queued events and stops the worker. It is idempotent.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.finished
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()
	<-d.finished
}

// Dropped reports events lost to a full buffer or a canceled context.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
