// Package line models a multi-stage manufacturing line on top of the sim
// kernel: an arrival generator spawns parts, and each part walks the stages
// in order, contending for workstations and blocking on finite buffers.
//
// Every transition is reported twice: to the run's stats.Accumulator and, as
// an event.Event, to the emitter's sinks.
package line

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/simline/simline/sim"
	"github.com/simline/simline/sim/event"
	"github.com/simline/simline/sim/stats"
)

// Line is one instance of the line topology bound to a scheduler.
// All methods except Stats belong to the kernel goroutine.
type Line struct {
	cfg   *Config
	sched *sim.Scheduler

	workstations []*sim.Resource
	buffers      []*sim.Buffer
	stages       []Stage

	acc     *stats.Accumulator
	emitter *event.Emitter

	interArrival IntervalSampler
	processing   DurationSampler

	arrivalRNG    *rand.Rand
	routingRNG    *rand.Rand
	processingRNG *rand.Rand

	arrived int
	started bool
}

// New validates cfg and builds the line's resources and buffers on sched.
// emitter may be nil when no event stream is wanted.
func New(cfg *Config, sched *sim.Scheduler, rng *sim.PartitionedRNG, emitter *event.Emitter) (*Line, error) {
	if cfg == nil {
		return nil, fmt.Errorf("line config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid line config: %w", err)
	}

	l := &Line{
		cfg:          cfg,
		sched:        sched,
		workstations: make([]*sim.Resource, len(cfg.Workstations)),
		buffers:      make([]*sim.Buffer, len(cfg.Buffers)),
		stages:       make([]Stage, len(cfg.Stages)),
		acc:          stats.NewAccumulator(len(cfg.Workstations), len(cfg.Buffers)),
		emitter:      emitter,
		interArrival: ExponentialSampler{Mean: cfg.ArrivalIntervalMean},
		processing: ClampedGaussianSampler{
			Mean:   cfg.Processing.Mean,
			StdDev: cfg.Processing.StdDev,
			Min:    cfg.Processing.MinOrDefault(),
		},
		arrivalRNG:    rng.ForSubsystem(sim.SubsystemArrival),
		routingRNG:    rng.ForSubsystem(sim.SubsystemRouting),
		processingRNG: rng.ForSubsystem(sim.SubsystemProcessing),
	}
	for i, ws := range cfg.Workstations {
		l.workstations[i] = sim.NewResource(sched, ws.ID, 1)
	}
	for i, b := range cfg.Buffers {
		l.buffers[i] = sim.NewBuffer(sched, b.ID, b.Capacity)
	}
	for i, s := range cfg.Stages {
		l.stages[i] = Stage{
			Name:         s.Name,
			Route:        NewRoute(s.Workstations),
			BufferBefore: s.BufferBefore,
			BufferAfter:  s.BufferAfter,
		}
	}

	// Keep the statistics clock in step with the kernel so snapshots taken
	// mid-run account for open busy intervals.
	sched.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
		if ctx.Pos == sim.HookPosAfterEvent {
			l.acc.Advance(ctx.Now)
		}
	}))
	return l, nil
}

// Start registers the arrival generator. The first part arrives after one
// inter-arrival gap. Calling Start twice panics.
func (l *Line) Start() {
	if l.started {
		panic("line: Start called twice")
	}
	l.started = true
	logrus.Debugf("line: %d stages, %d workstations, %d buffers, arrival mean %.2f",
		len(l.stages), len(l.workstations), len(l.buffers), l.cfg.ArrivalIntervalMean)
	l.sched.ScheduleAfter(l.interArrival.Sample(l.arrivalRNG), &arrivalProcess{line: l})
}

// Run drives the scheduler to until and brings the statistics clock to the
// kernel clock, which sits at until when the run was not stopped.
func (l *Line) Run(until float64) (stoppedEarly bool) {
	stoppedEarly = l.sched.Run(until)
	l.acc.Advance(l.sched.Now())
	return stoppedEarly
}

// Stats returns the run's accumulator. Safe for concurrent Snapshot calls.
func (l *Line) Stats() *stats.Accumulator {
	return l.acc
}

// Workstation returns the resource for workstation id.
func (l *Line) Workstation(id int) *sim.Resource {
	return l.workstations[id]
}

// Buffer returns the buffer with the given id.
func (l *Line) Buffer(id int) *sim.Buffer {
	return l.buffers[id]
}

// Arrived returns how many parts the generator has released.
func (l *Line) Arrived() int {
	return l.arrived
}

func (l *Line) workstationPos(id int) event.Position {
	return l.cfg.Workstations[id].Position
}

func (l *Line) bufferPos(id int) event.Position {
	return l.cfg.Buffers[id].Position
}

func (l *Line) emit(typ event.Type, data any) {
	l.emitter.Emit(l.sched.Now(), typ, data)
}
