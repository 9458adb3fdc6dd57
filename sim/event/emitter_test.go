package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSink is a testify mock implementing Sink.
type mockSink struct {
	mock.Mock
}

func (m *mockSink) Deliver(ev Event) {
	m.Called(ev)
}

func TestEmitter_StampsAndDelivers(t *testing.T) {
	// GIVEN an emitter with a mocked sink
	sink := new(mockSink)
	sink.On("Deliver", mock.MatchedBy(func(ev Event) bool {
		return ev.Type == TypePartArrived && ev.Seq == 1 && ev.RunID == "run-1" &&
			ev.Timestamp == 2.5 && !ev.WallClock.IsZero()
	})).Once()
	e := NewEmitter("run-1", sink)

	// WHEN a transition is emitted
	e.Emit(2.5, TypePartArrived, PartArrived{PartID: "PART-0001", Position: Position{5, 20}, Status: StatusArrived})

	// THEN the sink received exactly that record
	sink.AssertExpectations(t)
	assert.Equal(t, uint64(1), e.Emitted())
}

func TestEmitter_PanickingSinkIsIsolated(t *testing.T) {
	// GIVEN a sink that panics placed before a well-behaved one
	bad := SinkFunc(func(Event) { panic("boom") })
	good := NewMemorySink()
	e := NewEmitter("", bad, good)

	// WHEN emitting THEN no panic escapes and the good sink still receives it
	require.NotPanics(t, func() {
		e.Emit(1, TypePartFinished, PartFinished{PartID: "PART-0001"})
	})
	assert.Equal(t, 1, good.Len())
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() { e.Emit(0, TypePartArrived, nil) })
}

func TestEvent_JSONShape(t *testing.T) {
	ev := Event{
		Seq:       3,
		Timestamp: 12.5,
		Type:      TypePartInBuffer,
		Data:      PartInBuffer{PartID: "PART-0002", BufferID: 0, Position: Position{20, 20}, Status: StatusInBuffer, BufferLevel: 0},
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "part_in_buffer", decoded["type"])
	assert.Equal(t, 12.5, decoded["timestamp"])
	assert.Contains(t, decoded, "wall_clock")
	data := decoded["data"].(map[string]any)
	// zero-valued ids and levels are still present
	assert.Equal(t, 0.0, data["buffer_id"])
	assert.Equal(t, 0.0, data["buffer_level"])
	assert.Equal(t, []any{20.0, 20.0}, data["position"])
}

func TestEvent_PartID(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Data: PartQueue{PartID: "a"}}, "a"},
		{Event{Data: PartProcessing{PartID: "b"}}, "b"},
		{Event{Data: PartCompletedStation{PartID: "c"}}, "c"},
		{Event{Data: PartWaitingBuffer{PartID: "d"}}, "d"},
		{Event{Data: map[string]int{}}, ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.ev.PartID())
	}
}

func TestIsValidType(t *testing.T) {
	assert.True(t, IsValidType("part_arrived"))
	assert.True(t, IsValidType("simulation_stopped"))
	assert.False(t, IsValidType("part_teleported"))
}
