package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_FanOutInOrder(t *testing.T) {
	// GIVEN two subscribers
	h := NewHub()
	a := h.Subscribe(10)
	b := h.Subscribe(10)
	require.Equal(t, 2, h.Subscribers())

	// WHEN three events are delivered
	for i := uint64(1); i <= 3; i++ {
		h.Deliver(Event{Seq: i})
	}

	// THEN each subscriber sees all three in emission order
	for _, s := range []*Subscription{a, b} {
		for i := uint64(1); i <= 3; i++ {
			ev := <-s.C()
			assert.Equal(t, i, ev.Seq)
		}
	}
}

func TestHub_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	// GIVEN a subscriber with room for one event that never reads
	h := NewHub()
	s := h.Subscribe(1)

	// WHEN many events are delivered THEN Deliver returns and drops are counted
	for i := 0; i < 5; i++ {
		h.Deliver(Event{Seq: uint64(i)})
	}
	assert.Equal(t, uint64(4), s.Dropped())
	assert.Equal(t, uint64(0), (<-s.C()).Seq)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(0)
	s.Unsubscribe()
	s.Unsubscribe() // idempotent

	_, open := <-s.C()
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())
	assert.NotPanics(t, func() { h.Deliver(Event{}) })
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(4)
	h.Close()
	h.Close()

	_, open := <-s.C()
	assert.False(t, open)

	late := h.Subscribe(4)
	_, open = <-late.C()
	assert.False(t, open)
	assert.NotPanics(t, func() { late.Unsubscribe() })
}

func TestHub_IsASink(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(4)
	e := NewEmitter("r", h)

	e.Emit(1, TypePartArrived, PartArrived{PartID: "PART-0001"})

	ev := <-s.C()
	assert.Equal(t, "PART-0001", ev.PartID())
}
