package line

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simline/simline/sim"
	"github.com/simline/simline/sim/event"
	"github.com/simline/simline/sim/internal/testutil"
)

// newTestLine builds and starts a line on a fresh scheduler, recording every
// event in memory.
func newTestLine(t *testing.T, cfg *Config, seed int64) (*Line, *sim.Scheduler, *event.MemorySink) {
	t.Helper()
	sched := sim.NewScheduler()
	sink := event.NewMemorySink()
	l, err := New(cfg, sched, sim.NewPartitionedRNG(seed), event.NewEmitter("test", sink))
	require.NoError(t, err)
	l.Start()
	return l, sched, sink
}

func capacities(cfg *Config) []int {
	out := make([]int, len(cfg.Buffers))
	for i, b := range cfg.Buffers {
		out[i] = b.Capacity
	}
	return out
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buffers[0].Capacity = 0
	_, err := New(cfg, sim.NewScheduler(), sim.NewPartitionedRNG(1), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid line config")

	_, err = New(nil, sim.NewScheduler(), sim.NewPartitionedRNG(1), nil)
	assert.Error(t, err)
}

func TestLine_ReferenceScenario(t *testing.T) {
	// GIVEN the reference nine-workstation line with a fixed seed
	cfg := DefaultConfig()
	l, sched, sink := newTestLine(t, cfg, 42)

	// WHEN run to horizon 30
	stopped := l.Run(30)

	// THEN the run completed at 30 with sane statistics
	assert.False(t, stopped)
	assert.Equal(t, 30.0, sched.Now())
	snap := l.Stats().Snapshot()
	assert.Equal(t, 30.0, snap.SimulationTime)
	assert.Len(t, snap.WorkstationUtilization, 9)
	assert.Len(t, snap.BufferLevels, 5)
	testutil.AssertSnapshotInvariants(t, snap, capacities(cfg))

	// AND the first event is an arrival of PART-0001
	events := sink.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, event.TypePartArrived, events[0].Type)
	assert.Equal(t, "PART-0001", events[0].PartID())
	assert.Equal(t, snap.PartsArrived, l.Arrived())
}

func TestLine_Determinism(t *testing.T) {
	// GIVEN two lines with the same seed and topology
	_, s1, sink1 := newTestLine(t, DefaultConfig(), 1234)
	_, s2, sink2 := newTestLine(t, DefaultConfig(), 1234)

	// WHEN both run to the same horizon
	s1.Run(500)
	s2.Run(500)

	// THEN the event sequences are identical apart from wall-clock stamps
	e1, e2 := sink1.Events(), sink2.Events()
	require.Equal(t, len(e1), len(e2))
	for i := range e1 {
		assert.Equal(t, e1[i].Seq, e2[i].Seq)
		assert.Equal(t, e1[i].Type, e2[i].Type)
		assert.Equal(t, e1[i].Timestamp, e2[i].Timestamp)
		assert.Equal(t, e1[i].Data, e2[i].Data)
	}
}

func TestLine_DifferentSeedsDiverge(t *testing.T) {
	_, s1, sink1 := newTestLine(t, DefaultConfig(), 1)
	_, s2, sink2 := newTestLine(t, DefaultConfig(), 2)
	s1.Run(100)
	s2.Run(100)
	require.NotEmpty(t, sink1.Events())
	require.NotEmpty(t, sink2.Events())
	assert.NotEqual(t, sink1.Events()[0].Timestamp, sink2.Events()[0].Timestamp)
}

func TestLine_InvariantsHoldAtEveryEvent(t *testing.T) {
	// GIVEN a congested line: fast arrivals and single-slot buffers
	cfg := DefaultConfig()
	cfg.ArrivalIntervalMean = 1.0
	cfg.SetBufferCapacity(1)
	l, sched, _ := newTestLine(t, cfg, 99)

	// AND a hook checking conservation and bounds after every event
	sawBlockedPut := false
	checks := 0
	sched.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
		if ctx.Pos != sim.HookPosAfterEvent {
			return
		}
		checks++
		testutil.AssertSnapshotInvariants(t, l.Stats().Snapshot(), capacities(cfg))
		for i := range cfg.Buffers {
			b := l.Buffer(i)
			assert.GreaterOrEqual(t, b.Level(), 0)
			assert.LessOrEqual(t, b.Level(), b.Capacity())
			if b.PutWaiters() > 0 {
				sawBlockedPut = true
			}
		}
		for i := range cfg.Workstations {
			assert.LessOrEqual(t, l.Workstation(i).Holders(), 1)
		}
	}))

	// WHEN run long enough to saturate the buffers
	l.Run(1000)

	// THEN the checks ran and producers were actually blocked by full buffers
	assert.Greater(t, checks, 100)
	assert.True(t, sawBlockedPut, "expected at least one put to block on a full buffer")
	snap := l.Stats().Snapshot()
	for i, m := range snap.MaxBufferLevels {
		assert.LessOrEqual(t, m, 1, "buffer %d", i)
	}
}

func TestLine_ZeroHorizon(t *testing.T) {
	// GIVEN a fresh line WHEN run with until = 0
	l, sched, sink := newTestLine(t, DefaultConfig(), 5)
	l.Run(0)

	// THEN nothing happened and every ratio is 0, not NaN
	snap := l.Stats().Snapshot()
	assert.Equal(t, 0.0, sched.Now())
	assert.Equal(t, 0, sink.Len())
	assert.Equal(t, 0.0, snap.SimulationTime)
	assert.Equal(t, 0.0, snap.Throughput)
	assert.Equal(t, 0.0, snap.AvgCycleTime)
	assert.Equal(t, 0.0, snap.AvgQueueTime)
	for _, u := range snap.WorkstationUtilization {
		assert.False(t, math.IsNaN(u))
		assert.Equal(t, 0.0, u)
	}
}

func TestLine_EarlyStop(t *testing.T) {
	// GIVEN a line whose event sink requests a stop on the 20th event
	cfg := DefaultConfig()
	sched := sim.NewScheduler()
	recorded := event.NewMemorySink()
	sink := event.SinkFunc(func(ev event.Event) {
		recorded.Deliver(ev)
		if recorded.Len() == 20 {
			sched.RequestStop()
		}
	})
	l, err := New(cfg, sched, sim.NewPartitionedRNG(8), event.NewEmitter("", sink))
	require.NoError(t, err)
	l.Start()

	// WHEN run with a long horizon
	stopped := l.Run(10000)

	// THEN the run ended early, at an event boundary, with consistent statistics
	assert.True(t, stopped)
	assert.Less(t, sched.Now(), 10000.0)
	assert.Greater(t, sched.Pending(), 0)
	snap := l.Stats().Snapshot()
	assert.Equal(t, sched.Now(), snap.SimulationTime)
	testutil.AssertSnapshotInvariants(t, snap, capacities(cfg))

	// AND no event is stamped after the last completed one
	events := recorded.Events()
	require.GreaterOrEqual(t, len(events), 20)
	for _, ev := range events {
		assert.LessOrEqual(t, ev.Timestamp, sched.Now(), "event #%d %s", ev.Seq, ev.Type)
	}
	assert.Equal(t, sched.Now(), events[len(events)-1].Timestamp)

	// AND no further events are processed after the stop
	processed := sched.EventsProcessed()
	assert.True(t, l.Run(20000))
	assert.Equal(t, processed, sched.EventsProcessed())
	assert.Equal(t, len(events), recorded.Len())
}

func TestLine_StatisticsClockReachesHorizon(t *testing.T) {
	for _, seed := range []int64{42, 1, 7} {
		// GIVEN a line whose last event before the horizon falls short of it
		l, sched, sink := newTestLine(t, DefaultConfig(), seed)

		// WHEN run to horizon 30
		require.False(t, l.Run(30))

		// THEN the snapshot is taken at the horizon, not at the last event
		events := sink.Events()
		require.NotEmpty(t, events)
		assert.Less(t, events[len(events)-1].Timestamp, 30.0, "seed %d", seed)
		snap := l.Stats().Snapshot()
		assert.Equal(t, sched.Now(), snap.SimulationTime, "seed %d", seed)
		assert.Equal(t, 30.0, snap.SimulationTime, "seed %d", seed)
		testutil.AssertFloat64Equal(t, "throughput", float64(snap.PartsProduced)/30, snap.Throughput, 1e-12)

		// AND a later horizon moves it again
		require.False(t, l.Run(45))
		assert.Equal(t, 45.0, l.Stats().Snapshot().SimulationTime, "seed %d", seed)
	}
}

func TestLine_StarvationFreedom(t *testing.T) {
	// GIVEN a bounded number of arrivals
	cfg := DefaultConfig()
	cfg.MaxArrivals = 50
	l, sched, _ := newTestLine(t, cfg, 77)

	// WHEN run without a horizon
	stopped := l.Run(math.Inf(1))

	// THEN every part finished and the line drained
	assert.False(t, stopped)
	snap := l.Stats().Snapshot()
	assert.Equal(t, 50, snap.PartsArrived)
	assert.Equal(t, 50, snap.PartsProduced)
	assert.Equal(t, 0, snap.PartsInSystem)
	assert.Equal(t, 0, sched.Pending())
	for i := range cfg.Workstations {
		assert.Equal(t, 0, l.Workstation(i).Holders())
		assert.Equal(t, 0, l.Workstation(i).QueueLen())
	}
	for i := range cfg.Buffers {
		assert.Equal(t, 0, l.Buffer(i).Level())
	}
}

func TestLine_SinglePartWalksEveryStageInOrder(t *testing.T) {
	// GIVEN exactly one part
	cfg := DefaultConfig()
	cfg.MaxArrivals = 1
	l, sched, sink := newTestLine(t, cfg, 3)

	// WHEN run to completion
	l.Run(math.Inf(1))
	assert.Equal(t, 0, sched.Pending())

	// THEN its transitions follow the stage sequence
	want := []event.Type{event.TypePartArrived}
	for _, st := range cfg.Stages {
		if st.BufferBefore != nil {
			want = append(want, event.TypePartWaitingBuffer)
		}
		want = append(want, event.TypePartQueue, event.TypePartProcessing, event.TypePartCompletedStation)
		if st.BufferAfter != nil {
			want = append(want, event.TypePartInBuffer)
		}
	}
	want = append(want, event.TypePartFinished)

	events := sink.Events()
	got := make([]event.Type, len(events))
	for i, ev := range events {
		got[i] = ev.Type
		assert.Equal(t, "PART-0001", ev.PartID())
		if i > 0 {
			assert.GreaterOrEqual(t, ev.Timestamp, events[i-1].Timestamp)
		}
	}
	assert.Equal(t, want, got)

	// AND with no contention the cycle time is the sum of processing times
	total := 0.0
	for _, ev := range events {
		if p, ok := ev.Data.(event.PartProcessing); ok {
			assert.GreaterOrEqual(t, p.Duration, DefaultMinProcessingTime)
			total += p.Duration
		}
	}
	finished := events[len(events)-1].Data.(event.PartFinished)
	testutil.AssertFloat64Equal(t, "cycle_time", total, finished.CycleTime, 1e-9)
	assert.Equal(t, cfg.ExitPosition, finished.Position)

	snap := l.Stats().Snapshot()
	assert.Equal(t, 0.0, snap.AvgQueueTime)
	assert.Equal(t, finished.CycleTime, snap.AvgCycleTime)
}

func TestLine_ParallelAlternativesBothUsed(t *testing.T) {
	cfg := DefaultConfig()
	l, _, _ := newTestLine(t, cfg, 11)
	l.Run(2000)

	snap := l.Stats().Snapshot()
	for _, st := range cfg.Stages {
		if len(st.Workstations) < 2 {
			continue
		}
		for _, ws := range st.Workstations {
			assert.Greater(t, snap.WorkstationUtilization[ws], 0.0, "workstation %d idle for the whole run", ws)
		}
	}
}

func TestLine_StartTwicePanics(t *testing.T) {
	l, _, _ := newTestLine(t, DefaultConfig(), 1)
	assert.Panics(t, func() { l.Start() })
}

func TestPartState_String(t *testing.T) {
	assert.Equal(t, "waiting_buffer", PartWaitingBuffer.String())
	assert.Equal(t, "finished", PartFinished.String())
	assert.Equal(t, "PartState(42)", PartState(42).String())
}
