package stream

import (
	"context"
	"sync"
	"time"
)

// Emitter numbers and timestamps the events of a single run and forwards them
// to a Sink. Nothing is forwarded after a terminal event or once ctx is done.
type Emitter struct {
	runID string
	sink  Sink
	now   func() time.Time

	mu     sync.Mutex
	seq    int64
	closed bool
}

func NewEmitter(runID string, sink Sink, now func() time.Time) *Emitter {
	if sink == nil {
		sink = Discard
	}
	if now == nil {
		now = time.Now
	}
	return &Emitter{runID: runID, sink: sink, now: now}
}

// Emit publishes one event. The sequence number is only consumed when the
// event is delivered, so a client never sees a gap.
func (e *Emitter) Emit(ctx context.Context, typ EventType, data any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if ctx.Err() != nil {
		e.closed = true
		return false
	}
	ev := Event{
		Type:      typ,
		Seq:       e.seq + 1,
		RunID:     e.runID,
		Timestamp: e.now().UTC(),
		Data:      data,
	}
	if !e.sink.Publish(ctx, ev) {
		e.closed = true
		return false
	}
	e.seq = ev.Seq
	if typ.IsTerminal() {
		e.closed = true
	}
	return true
}

// Seq returns the last delivered sequence number.
func (e *Emitter) Seq() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// Closed reports whether the emitter stopped accepting events.
func (e *Emitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
