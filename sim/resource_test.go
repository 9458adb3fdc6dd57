package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// worker requests a resource, holds it for hold time units, then releases.
type worker struct {
	name     string
	res      *Resource
	hold     float64
	acquired bool
	order    *[]string
	maxSeen  *int
}

func (w *worker) Resume(s *Scheduler) {
	if !w.acquired {
		w.acquired = true
		*w.order = append(*w.order, w.name)
		if w.res.Holders() > *w.maxSeen {
			*w.maxSeen = w.res.Holders()
		}
		s.ScheduleAfter(w.hold, w)
		return
	}
	w.res.Release()
}

func TestResource_FastPathStillSuspends(t *testing.T) {
	// GIVEN a free resource
	s := NewScheduler()
	r := NewResource(s, 0, 1)
	resumed := false

	// WHEN a process requests it
	r.Request(ProcessFunc(func(*Scheduler) { resumed = true }))

	// THEN the slot is taken immediately but the process resumes only via the queue
	assert.Equal(t, 1, r.Holders())
	assert.False(t, resumed)
	s.Run(0)
	assert.True(t, resumed)
}

func TestResource_ExclusiveAndFIFO(t *testing.T) {
	// GIVEN five workers requesting at staggered times
	s := NewScheduler()
	r := NewResource(s, 3, 1)
	var order []string
	maxSeen := 0
	for i := 0; i < 5; i++ {
		w := &worker{name: fmt.Sprintf("w%d", i), res: r, hold: 2, order: &order, maxSeen: &maxSeen}
		s.ScheduleAfter(float64(i)*0.1, ProcessFunc(func(*Scheduler) { r.Request(w) }))
	}

	s.Run(100)

	// THEN acquisition order equals request order and there was never more than one holder
	assert.Equal(t, []string{"w0", "w1", "w2", "w3", "w4"}, order)
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, r.Holders())
	assert.Equal(t, 0, r.QueueLen())
}

func TestResource_ReleaseHandsOffThroughScheduler(t *testing.T) {
	// GIVEN a held resource with one waiter
	s := NewScheduler()
	r := NewResource(s, 0, 1)
	var order []string
	maxSeen := 0
	first := &worker{name: "first", res: r, hold: 1, order: &order, maxSeen: &maxSeen}
	second := &worker{name: "second", res: r, hold: 1, order: &order, maxSeen: &maxSeen}
	r.Request(first)
	r.Request(second)
	require.Equal(t, 1, r.QueueLen())

	// WHEN the first holder finishes at t=1
	s.Run(1)

	// THEN the waiter owns the slot and has been resumed at t=1
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 1, r.Holders())
	assert.Equal(t, 0, r.QueueLen())
}

func TestResource_CapacityTwo(t *testing.T) {
	s := NewScheduler()
	r := NewResource(s, 0, 2)
	var order []string
	maxSeen := 0
	for i := 0; i < 4; i++ {
		r.Request(&worker{name: fmt.Sprintf("w%d", i), res: r, hold: 1, order: &order, maxSeen: &maxSeen})
	}
	assert.Equal(t, 2, r.Holders())
	assert.Equal(t, 2, r.QueueLen())

	s.Run(10)

	assert.Equal(t, 2, maxSeen)
	assert.Equal(t, []string{"w0", "w1", "w2", "w3"}, order)
}

func TestResource_ReleaseWithoutHolderPanics(t *testing.T) {
	s := NewScheduler()
	r := NewResource(s, 7, 1)
	assert.Panics(t, func() { r.Release() })
	assert.Panics(t, func() { NewResource(s, 0, 0) })
	assert.Contains(t, r.String(), "Resource(7")
}
