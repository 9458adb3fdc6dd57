package sim

import "fmt"

// Resource is an exclusive-use device with a FIFO wait queue. The line uses
// capacity 1; larger capacities model identical parallel slots.
//
// Acquisition order equals request order: a free slot is only ever handed
// to the head of the wait queue, so no requester can be overtaken.
type Resource struct {
	id       int
	capacity int
	holders  int
	waiters  waitQueue
	sched    *Scheduler
}

// NewResource creates a Resource bound to a scheduler.
// Panics if capacity < 1.
func NewResource(s *Scheduler, id int, capacity int) *Resource {
	if s == nil {
		panic("NewResource: scheduler must not be nil")
	}
	if capacity < 1 {
		panic(fmt.Sprintf("NewResource: capacity must be >= 1, got %d", capacity))
	}
	return &Resource{id: id, capacity: capacity, sched: s}
}

// ID returns the resource identifier.
func (r *Resource) ID() int { return r.id }

// Capacity returns the maximum number of concurrent holders.
func (r *Resource) Capacity() int { return r.capacity }

// Holders returns the number of current holders.
func (r *Resource) Holders() int { return r.holders }

// QueueLen returns the number of processes waiting to acquire.
func (r *Resource) QueueLen() int { return r.waiters.Len() }

// Request suspends p until it holds the resource. p is always resumed
// through the scheduler, with zero delay when a slot is free now.
func (r *Resource) Request(p Process) {
	if r.holders < r.capacity && r.waiters.Len() == 0 {
		r.holders++
		r.sched.ScheduleAfter(0, p)
		return
	}
	r.waiters.enqueue(p, 1)
}

// Release gives up one slot. The head waiter, if any, becomes the holder
// and is resumed on a later scheduler pop.
// Panics when the resource has no holder.
func (r *Resource) Release() {
	if r.holders == 0 {
		panic(fmt.Sprintf("Resource %d: release without holder", r.id))
	}
	r.holders--
	if w, ok := r.waiters.dequeue(); ok {
		r.holders++
		r.sched.ScheduleAfter(0, w.proc)
	}
}

func (r *Resource) String() string {
	return fmt.Sprintf("Resource(%d: %d/%d held, waiting %s)", r.id, r.holders, r.capacity, r.waiters.String())
}
