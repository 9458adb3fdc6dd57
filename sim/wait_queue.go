// Implements the FIFO wait queue shared by Resource and Buffer.
// A process is appended when its request cannot be granted and removed
// from the head when the owning structure can serve it.

package sim

import (
	"fmt"
	"strings"
)

// waiter is a suspended process plus the amount it asked for.
type waiter struct {
	proc Process
	n    int
}

// waitQueue is a strict FIFO of suspended processes.
type waitQueue struct {
	queue []waiter
}

// enqueue adds a waiter to the back of the queue.
func (wq *waitQueue) enqueue(p Process, n int) {
	wq.queue = append(wq.queue, waiter{proc: p, n: n})
}

// Len returns the number of suspended processes.
func (wq *waitQueue) Len() int {
	return len(wq.queue)
}

// peek returns the head of the queue without removing it.
// ok is false when the queue is empty.
func (wq *waitQueue) peek() (w waiter, ok bool) {
	if len(wq.queue) == 0 {
		return waiter{}, false
	}
	return wq.queue[0], true
}

// dequeue removes the head of the queue.
func (wq *waitQueue) dequeue() (waiter, bool) {
	if len(wq.queue) == 0 {
		return waiter{}, false
	}
	head := wq.queue[0]
	wq.queue[0] = waiter{}
	wq.queue = wq.queue[1:]
	return head, true
}

func (wq *waitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, w := range wq.queue {
		sb.WriteString(fmt.Sprintf("%v×%d", w.proc, w.n))
		if i < len(wq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
