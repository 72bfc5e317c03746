package authkit

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher feeds authentication events to the configured sink from
// a single background worker, so a slow sink never stalls a login. Losses
// under backpressure are counted, with failed-authentication events (the
// forensically interesting ones) tracked separately.
type auditDispatcher struct {
	cfg             AuditConfig
	sink            AuditSink
	ch              chan AuditEvent
	done            chan struct{}
	wg              sync.WaitGroup
	dropped         atomic.Uint64
	droppedFailures atomic.Uint64
	closed          atomic.Bool
	closeOnce       sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan AuditEvent, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain whatever is buffered before shutting down.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *auditDispatcher) countDrop(event AuditEvent) {
	d.dropped.Add(1)
	if !event.Success {
		d.droppedFailures.Add(1)
	}
}

// Emit hands an event to the background worker. With DropIfFull set a full
// buffer sheds the event and bumps the drop counters; otherwise Emit waits
// until the worker catches up or the caller's context ends.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.countDrop(event)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.countDrop(event)
	case <-d.done:
	}
}

// Close stops accepting events, delivers what is already buffered, and
// waits for the worker to exit.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were shed under backpressure since
// construction.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedFailures reports the subset of dropped events that recorded a
// failed operation. A nonzero value means forensic evidence was lost, not
// just volume.
func (d *auditDispatcher) DroppedFailures() uint64 {
	if d == nil {
		return 0
	}
	return d.droppedFailures.Load()
}
