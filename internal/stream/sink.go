package stream

import (
	"context"
	"sync"
)

// Sink delivers events to a consumer. Publish returns false when the event
// could not be delivered because ctx ended.
type Sink interface {
	Publish(ctx context.Context, ev Event) bool
}

// ChannelSink hands events to a transport loop over a channel.
type ChannelSink struct {
	ch   chan Event
	once sync.Once
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Publish(ctx context.Context, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case s.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Events is the receive side; it is closed by Close.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.ch) })
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) bool {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return true
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) bool { return true }

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, ev Event) bool

func (f SinkFunc) Publish(ctx context.Context, ev Event) bool { return f(ctx, ev) }
