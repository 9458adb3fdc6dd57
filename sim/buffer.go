package sim

import "fmt"

// Buffer is a bounded counting container with blocking put and get.
// Invariant: 0 <= level <= capacity. Put and get waiters are each served
// FIFO; a waiter at the head blocks those behind it.
type Buffer struct {
	id         int
	capacity   int
	level      int
	putWaiters waitQueue
	getWaiters waitQueue
	sched      *Scheduler
}

// NewBuffer creates an empty Buffer bound to a scheduler.
// Panics if capacity < 1.
func NewBuffer(s *Scheduler, id int, capacity int) *Buffer {
	if s == nil {
		panic("NewBuffer: scheduler must not be nil")
	}
	if capacity < 1 {
		panic(fmt.Sprintf("NewBuffer: capacity must be >= 1, got %d", capacity))
	}
	return &Buffer{id: id, capacity: capacity, sched: s}
}

// ID returns the buffer identifier.
func (b *Buffer) ID() int { return b.id }

// Capacity returns the maximum level.
func (b *Buffer) Capacity() int { return b.capacity }

// Level returns the current number of stored units.
func (b *Buffer) Level() int { return b.level }

// PutWaiters returns the number of processes blocked in Put.
func (b *Buffer) PutWaiters() int { return b.putWaiters.Len() }

// GetWaiters returns the number of processes blocked in Get.
func (b *Buffer) GetWaiters() int { return b.getWaiters.Len() }

// Put suspends p until n units fit, then adds them.
func (b *Buffer) Put(n int, p Process) {
	b.checkAmount("Put", n)
	if b.putWaiters.Len() == 0 && b.level+n <= b.capacity {
		b.level += n
		b.sched.ScheduleAfter(0, p)
		b.serveGetters()
		return
	}
	b.putWaiters.enqueue(p, n)
}

// Get suspends p until n units are stored, then removes them.
func (b *Buffer) Get(n int, p Process) {
	b.checkAmount("Get", n)
	if b.getWaiters.Len() == 0 && b.level >= n {
		b.level -= n
		b.sched.ScheduleAfter(0, p)
		b.servePutters()
		return
	}
	b.getWaiters.enqueue(p, n)
}

// serveGetters grants queued gets while the head fits the current level.
// Each grant frees capacity, so blocked putters are revisited.
func (b *Buffer) serveGetters() {
	for {
		w, ok := b.getWaiters.peek()
		if !ok || b.level < w.n {
			return
		}
		b.getWaiters.dequeue()
		b.level -= w.n
		b.sched.ScheduleAfter(0, w.proc)
		b.servePutters()
	}
}

// servePutters grants queued puts while the head fits the free capacity.
func (b *Buffer) servePutters() {
	for {
		w, ok := b.putWaiters.peek()
		if !ok || b.level+w.n > b.capacity {
			return
		}
		b.putWaiters.dequeue()
		b.level += w.n
		b.sched.ScheduleAfter(0, w.proc)
		b.serveGetters()
	}
}

func (b *Buffer) checkAmount(op string, n int) {
	if n < 1 || n > b.capacity {
		panic(fmt.Sprintf("Buffer %d: %s amount must be in [1, %d], got %d", b.id, op, b.capacity, n))
	}
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%d: %d/%d, put waiting %d, get waiting %d)",
		b.id, b.level, b.capacity, b.putWaiters.Len(), b.getWaiters.Len())
}
