// sim/scheduler.go
package sim

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Process is a cooperatively scheduled continuation. Resume runs the process
// from its saved suspension point up to the next one; before returning it
// must register itself on exactly one wait structure (ScheduleAfter,
// Resource.Request, Buffer.Put or Buffer.Get), or none if it has finished.
type Process interface {
	Resume(s *Scheduler)
}

// ProcessFunc adapts a stateless function to the Process interface.
type ProcessFunc func(s *Scheduler)

// Resume calls f(s).
func (f ProcessFunc) Resume(s *Scheduler) { f(s) }

// Scheduler is the simulation kernel: it owns the clock and the timer queue
// and drives every process forward in (due time, sequence) order.
//
// Thread-safety: only RequestStop and IsStopped may be called from other
// goroutines. Everything else belongs to the goroutine calling Run.
type Scheduler struct {
	clock     float64
	queue     eventQueue
	nextSeq   uint64
	processed uint64
	stop      atomic.Bool
	hooks     []Hook
}

// NewScheduler creates a Scheduler with the clock at zero and an empty queue.
func NewScheduler() *Scheduler {
	return &Scheduler{
		queue: make(eventQueue, 0),
		hooks: make([]Hook, 0),
	}
}

// Now returns the current simulated time.
func (s *Scheduler) Now() float64 {
	return s.clock
}

// Pending returns the number of events waiting in the timer queue.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// EventsProcessed returns how many events Run has executed so far.
func (s *Scheduler) EventsProcessed() uint64 {
	return s.processed
}

// AcceptHook registers a hook invoked around every executed event.
func (s *Scheduler) AcceptHook(h Hook) {
	s.hooks = append(s.hooks, h)
}

// ScheduleAfter registers p to resume delay time units from now.
// Panics on a negative, NaN or infinite delay.
func (s *Scheduler) ScheduleAfter(delay float64, p Process) {
	if p == nil {
		panic("ScheduleAfter: process must not be nil")
	}
	if delay < 0 || math.IsNaN(delay) || math.IsInf(delay, 0) {
		panic(fmt.Sprintf("ScheduleAfter: delay must be finite and >= 0, got %v", delay))
	}
	s.nextSeq++
	s.queue.schedule(&timerEvent{
		due:  s.clock + delay,
		seq:  s.nextSeq,
		proc: p,
	})
}

// Run executes events in order until the next event is due after until, the
// queue drains, or a stop is requested. It reports whether the run ended
// because of a stop request.
//
// When the run ends without a stop and until is finite the clock is advanced
// to until. A stop leaves the clock at the last completed event. Events due
// after until stay queued, so Run may be called again with a later horizon.
func (s *Scheduler) Run(until float64) (stoppedEarly bool) {
	if math.IsNaN(until) {
		panic("Run: until must not be NaN")
	}
	if until < s.clock {
		return s.stop.Load()
	}
	for {
		if s.stop.Load() {
			logrus.Debugf("[t=%.3f] stop requested, leaving %d events queued", s.clock, s.queue.Len())
			return true
		}
		next := s.queue.peek()
		if next == nil || next.due > until {
			break
		}
		s.queue.popNext()
		s.clock = next.due
		s.processed++
		s.invokeHooks(HookPosBeforeEvent, next)
		next.proc.Resume(s)
		s.invokeHooks(HookPosAfterEvent, next)
	}
	if !math.IsInf(until, 1) {
		s.clock = until
	}
	return false
}

// RequestStop asks the run loop to halt at the next event boundary.
// Idempotent and safe to call from any goroutine, before or during Run.
func (s *Scheduler) RequestStop() {
	s.stop.Store(true)
}

// IsStopped reports whether a stop has been requested.
func (s *Scheduler) IsStopped() bool {
	return s.stop.Load()
}

func (s *Scheduler) invokeHooks(pos *HookPos, ev *timerEvent) {
	if len(s.hooks) == 0 {
		return
	}
	ctx := HookCtx{Pos: pos, Now: s.clock, Seq: ev.seq, Proc: ev.proc}
	for _, h := range s.hooks {
		h.Func(ctx)
	}
}

// LogHook returns a hook that traces every executed event at debug level.
func LogHook() Hook {
	return HookFunc(func(ctx HookCtx) {
		if ctx.Pos != HookPosBeforeEvent {
			return
		}
		logrus.Debugf("[t=%.3f] event #%d resumes %T", ctx.Now, ctx.Seq, ctx.Proc)
	})
}
