// Package control owns the lifecycle of simulation runs: at most one run is
// active at a time, it executes on its own goroutine, and callers on other
// goroutines may observe its statistics or ask it to stop.
package control

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/simline/simline/sim"
	"github.com/simline/simline/sim/event"
	"github.com/simline/simline/sim/line"
	"github.com/simline/simline/sim/stats"
)

var (
	// ErrRunActive is returned by Start while another run is in progress.
	ErrRunActive = errors.New("a simulation run is already active")

	// ErrInvalidDuration is returned by Start for a negative or NaN duration.
	ErrInvalidDuration = errors.New("duration must be a non-negative number")
)

// Option configures a Controller.
type Option func(*Controller)

// WithSeed makes every run use seed instead of a run-unique one.
func WithSeed(seed int64) Option {
	return func(c *Controller) {
		c.seed = &seed
	}
}

// WithSinks attaches event sinks shared by every run.
func WithSinks(sinks ...event.Sink) Option {
	return func(c *Controller) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// WithHooks attaches kernel hooks installed on every run's scheduler.
func WithHooks(hooks ...sim.Hook) Option {
	return func(c *Controller) {
		c.hooks = append(c.hooks, hooks...)
	}
}

// Result is the outcome of a finished run.
type Result struct {
	Statistics   stats.Snapshot `json:"statistics"`
	StoppedEarly bool           `json:"stopped_early"`
}

// Status describes the current or most recent run.
type Status struct {
	Running      bool           `json:"running"`
	StoppedEarly bool           `json:"stopped_early"`
	RunID        string         `json:"run_id,omitempty"`
	Seed         int64          `json:"seed"`
	Statistics   stats.Snapshot `json:"statistics"`
}

// Run is one simulation run.
type Run struct {
	ID       string
	Seed     int64
	Duration float64

	sched *sim.Scheduler
	line  *line.Line
	done  chan struct{}

	result Result // written once before done is closed
}

// Done is closed when the run has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes and returns its result.
func (r *Run) Wait() Result {
	<-r.done
	return r.result
}

// Stats returns the run's live statistics.
func (r *Run) Stats() stats.Snapshot {
	return r.line.Stats().Snapshot()
}

func (r *Run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Controller starts, stops and reports on runs of one line configuration.
type Controller struct {
	cfg   *line.Config
	seed  *int64
	sinks []event.Sink
	hooks []sim.Hook

	mu      sync.Mutex
	current *Run
}

// New creates a Controller. The configuration is validated once here so
// that Start only fails for run-level reasons.
func New(cfg *line.Config, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("line config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid line config: %w", err)
	}
	c := &Controller{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the line configuration runs are built from.
func (c *Controller) Config() *line.Config {
	return c.cfg
}

// Start launches a fresh run to the given horizon on its own goroutine.
// A duration of +Inf runs until RequestStop (or until MaxArrivals parts
// have drained).
func (c *Controller) Start(duration float64) (*Run, error) {
	if math.IsNaN(duration) || duration < 0 {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidDuration, duration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !c.current.finished() {
		return nil, ErrRunActive
	}

	seed := sim.RunUniqueSeed()
	if c.seed != nil {
		seed = *c.seed
	}
	r := &Run{
		ID:       xid.New().String(),
		Seed:     seed,
		Duration: duration,
		sched:    sim.NewScheduler(),
		done:     make(chan struct{}),
	}
	for _, h := range c.hooks {
		r.sched.AcceptHook(h)
	}
	emitter := event.NewEmitter(r.ID, c.sinks...)
	l, err := line.New(c.cfg, r.sched, sim.NewPartitionedRNG(seed), emitter)
	if err != nil {
		return nil, err
	}
	r.line = l
	c.current = r

	logrus.Infof("run %s: starting, seed %d, duration %v", r.ID, seed, duration)
	go execute(r, emitter)
	return r, nil
}

func execute(r *Run, emitter *event.Emitter) {
	defer close(r.done)

	r.line.Start()
	stopped := r.line.Run(r.Duration)
	now := r.sched.Now()
	snap := r.line.Stats().Snapshot()

	typ := event.TypeSimulationCompleted
	if stopped {
		typ = event.TypeSimulationStopped
	}
	emitter.Emit(now, typ, snap)
	r.result = Result{Statistics: snap, StoppedEarly: stopped}
	logrus.Infof("run %s: %s at t=%.3f after %d events, %d parts produced",
		r.ID, typ, now, r.sched.EventsProcessed(), snap.PartsProduced)
}

// RequestStop asks the active run to halt at its next event boundary.
// Returns false when no run is active.
func (c *Controller) RequestStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.finished() {
		logrus.Debugf("stop requested with no active run")
		return false
	}
	c.current.sched.RequestStop()
	return true
}

// Current returns the active or most recent run, or nil before the first.
func (c *Controller) Current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Status reports on the active or most recent run. Before any run it
// returns an empty snapshot with Running false.
func (c *Controller) Status() Status {
	r := c.Current()
	if r == nil {
		return Status{Statistics: stats.Empty()}
	}
	st := Status{
		RunID: r.ID,
		Seed:  r.Seed,
	}
	if r.finished() {
		st.StoppedEarly = r.result.StoppedEarly
		st.Statistics = r.result.Statistics
		return st
	}
	st.Running = true
	st.Statistics = r.Stats()
	return st
}
