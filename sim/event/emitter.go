package event

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink receives emitted events. Deliver is called on the kernel goroutine
// and must return promptly without blocking; slow consumers belong behind a Hub.
type Sink interface {
	Deliver(ev Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ev Event)

// Deliver calls f(ev).
func (f SinkFunc) Deliver(ev Event) { f(ev) }

// Emitter turns kernel transitions into Event records and hands them to its
// sinks. A panicking sink is logged and skipped; it never unwinds into the
// kernel.
type Emitter struct {
	runID string
	sinks []Sink
	seq   uint64
	now   func() time.Time
}

// NewEmitter creates an Emitter stamping events with runID.
func NewEmitter(runID string, sinks ...Sink) *Emitter {
	return &Emitter{
		runID: runID,
		sinks: sinks,
		now:   time.Now,
	}
}

// Emit builds one record at simulated time ts and delivers it to every sink.
func (e *Emitter) Emit(ts float64, typ Type, data any) {
	if e == nil {
		return
	}
	e.seq++
	ev := Event{
		Seq:       e.seq,
		RunID:     e.runID,
		Timestamp: ts,
		WallClock: e.now(),
		Type:      typ,
		Data:      data,
	}
	for _, s := range e.sinks {
		deliverSafely(s, ev)
	}
}

// Emitted returns the number of events emitted so far.
func (e *Emitter) Emitted() uint64 {
	return e.seq
}

func deliverSafely(s Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Warnf("event sink %T panicked on %s #%d: %v", s, ev.Type, ev.Seq, r)
		}
	}()
	s.Deliver(ev)
}

// MemorySink keeps every delivered event in order. Safe for concurrent reads.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]Event, 0)}
}

// Deliver appends ev.
func (m *MemorySink) Deliver(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the recorded events.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Len returns the number of recorded events.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
