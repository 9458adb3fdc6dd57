package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// levelProbe records the buffer level every time it resumes.
type levelProbe struct {
	name   string
	buf    *Buffer
	events *[]string
	levels *[]int
}

func (p *levelProbe) Resume(*Scheduler) {
	*p.events = append(*p.events, p.name)
	*p.levels = append(*p.levels, p.buf.Level())
}

func TestBuffer_PutBlocksWhenFull(t *testing.T) {
	// GIVEN a buffer of capacity 2
	s := NewScheduler()
	b := NewBuffer(s, 0, 2)
	var events []string
	var levels []int

	// WHEN three puts arrive
	for _, name := range []string{"p1", "p2", "p3"} {
		b.Put(1, &levelProbe{name: name, buf: b, events: &events, levels: &levels})
	}
	s.Run(0)

	// THEN only two are granted and the third waits
	assert.Equal(t, []string{"p1", "p2"}, events)
	assert.Equal(t, 2, b.Level())
	assert.Equal(t, 1, b.PutWaiters())

	// WHEN one unit is taken
	b.Get(1, &levelProbe{name: "g1", buf: b, events: &events, levels: &levels})
	s.Run(0)

	// THEN the blocked put is granted, level returns to capacity
	assert.Equal(t, []string{"p1", "p2", "g1", "p3"}, events)
	assert.Equal(t, 2, b.Level())
	assert.Equal(t, 0, b.PutWaiters())
}

func TestBuffer_GetBlocksWhenEmpty(t *testing.T) {
	s := NewScheduler()
	b := NewBuffer(s, 1, 5)
	var events []string
	var levels []int

	b.Get(1, &levelProbe{name: "g1", buf: b, events: &events, levels: &levels})
	b.Get(1, &levelProbe{name: "g2", buf: b, events: &events, levels: &levels})
	s.Run(0)
	assert.Empty(t, events)
	assert.Equal(t, 2, b.GetWaiters())

	// WHEN a single unit is put THEN exactly one getter (the first) wakes
	b.Put(1, &levelProbe{name: "p1", buf: b, events: &events, levels: &levels})
	s.Run(0)
	assert.Equal(t, []string{"p1", "g1"}, events)
	assert.Equal(t, 0, b.Level())
	assert.Equal(t, 1, b.GetWaiters())
}

func TestBuffer_LevelStaysInBounds(t *testing.T) {
	// GIVEN producers and consumers hammering a small buffer at the same instants
	s := NewScheduler()
	b := NewBuffer(s, 0, 3)
	inBounds := true
	s.AcceptHook(HookFunc(func(HookCtx) {
		if b.Level() < 0 || b.Level() > b.Capacity() {
			inBounds = false
		}
	}))
	noop := ProcessFunc(func(*Scheduler) {})
	for i := 0; i < 20; i++ {
		delay := float64(i % 4)
		s.ScheduleAfter(delay, ProcessFunc(func(*Scheduler) { b.Put(1, noop) }))
		s.ScheduleAfter(delay+0.5, ProcessFunc(func(*Scheduler) { b.Get(1, noop) }))
	}

	s.Run(100)

	assert.True(t, inBounds)
	assert.Equal(t, 0, b.Level())
	assert.Equal(t, 0, b.PutWaiters())
	assert.Equal(t, 0, b.GetWaiters())
}

func TestBuffer_MultiUnitHeadOfLineBlocking(t *testing.T) {
	// GIVEN a getter asking for 2 ahead of a getter asking for 1
	s := NewScheduler()
	b := NewBuffer(s, 0, 4)
	var events []string
	var levels []int
	b.Get(2, &levelProbe{name: "big", buf: b, events: &events, levels: &levels})
	b.Get(1, &levelProbe{name: "small", buf: b, events: &events, levels: &levels})

	// WHEN one unit arrives THEN nobody is served (FIFO, no overtaking)
	b.Put(1, ProcessFunc(func(*Scheduler) {}))
	s.Run(0)
	assert.Empty(t, events)
	assert.Equal(t, 1, b.Level())

	// WHEN two more arrive THEN both are served in order
	b.Put(2, ProcessFunc(func(*Scheduler) {}))
	s.Run(0)
	assert.Equal(t, []string{"big", "small"}, events)
	assert.Equal(t, 0, b.Level())
}

func TestBuffer_InvalidAmountPanics(t *testing.T) {
	s := NewScheduler()
	b := NewBuffer(s, 0, 2)
	noop := ProcessFunc(func(*Scheduler) {})
	assert.Panics(t, func() { b.Put(0, noop) })
	assert.Panics(t, func() { b.Get(3, noop) })
	assert.Panics(t, func() { NewBuffer(s, 0, 0) })
}
