package sim

import "container/heap"

// timerEvent is one pending resumption in the kernel's timer queue.
type timerEvent struct {
	due  float64 // simulated time at which proc resumes
	seq  uint64  // assigned at schedule time, FIFO tie-breaker
	proc Process
}

// eventQueue implements heap.Interface with deterministic ordering.
// Ordering: due time, then schedule sequence.
type eventQueue []*timerEvent

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) {
	*q = append(*q, x.(*timerEvent))
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[0 : n-1]
	return item
}

// schedule adds an event to the queue.
func (q *eventQueue) schedule(ev *timerEvent) {
	heap.Push(q, ev)
}

// popNext removes and returns the next event, or nil when empty.
func (q *eventQueue) popNext() *timerEvent {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*timerEvent)
}

// peek returns the next event without removing it.
func (q *eventQueue) peek() *timerEvent {
	if q.Len() == 0 {
		return nil
	}
	return (*q)[0]
}
