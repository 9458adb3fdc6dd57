// Package event defines the structured records emitted for every part
// transition and the delivery plumbing that carries them out of the kernel.
// This package has no dependency on the kernel; it stores pure data types.
package event

import "time"

// Type names a kind of transition.
type Type string

const (
	TypePartArrived          Type = "part_arrived"
	TypePartWaitingBuffer    Type = "part_waiting_buffer"
	TypePartQueue            Type = "part_queue"
	TypePartProcessing       Type = "part_processing"
	TypePartCompletedStation Type = "part_completed_station"
	TypePartInBuffer         Type = "part_in_buffer"
	TypePartFinished         Type = "part_finished"
	TypeSimulationCompleted  Type = "simulation_completed"
	TypeSimulationStopped    Type = "simulation_stopped"
)

// validTypes maps accepted event type strings.
var validTypes = map[Type]bool{
	TypePartArrived:          true,
	TypePartWaitingBuffer:    true,
	TypePartQueue:            true,
	TypePartProcessing:       true,
	TypePartCompletedStation: true,
	TypePartInBuffer:         true,
	TypePartFinished:         true,
	TypeSimulationCompleted:  true,
	TypeSimulationStopped:    true,
}

// IsValidType returns true if the given string is a recognized event type.
func IsValidType(t string) bool {
	return validTypes[Type(t)]
}

// Position is a planar shop-floor coordinate in meters.
type Position [2]float64

// Event is one externally consumable record.
type Event struct {
	Seq       uint64    `json:"seq"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp float64   `json:"timestamp"` // simulated time
	WallClock time.Time `json:"wall_clock"`
	Type      Type      `json:"type"`
	Data      any       `json:"data"`
}

// Status strings carried in part payloads.
const (
	StatusArrived    = "arrived"
	StatusWaiting    = "waiting"
	StatusQueuing    = "queuing"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusInBuffer   = "in_buffer"
	StatusFinished   = "finished"
)

// PartArrived is the payload of part_arrived.
type PartArrived struct {
	PartID   string   `json:"part_id"`
	Position Position `json:"position"`
	Status   string   `json:"status"`
}

// PartWaitingBuffer is the payload of part_waiting_buffer.
type PartWaitingBuffer struct {
	PartID   string   `json:"part_id"`
	BufferID int      `json:"buffer_id"`
	Position Position `json:"position"`
	Status   string   `json:"status"`
}

// PartQueue is the payload of part_queue.
type PartQueue struct {
	PartID        string   `json:"part_id"`
	WorkstationID int      `json:"workstation_id"`
	Position      Position `json:"position"`
	Status        string   `json:"status"`
}

// PartProcessing is the payload of part_processing.
type PartProcessing struct {
	PartID        string   `json:"part_id"`
	WorkstationID int      `json:"workstation_id"`
	Position      Position `json:"position"`
	Status        string   `json:"status"`
	Duration      float64  `json:"duration"`
}

// PartCompletedStation is the payload of part_completed_station.
type PartCompletedStation struct {
	PartID        string   `json:"part_id"`
	WorkstationID int      `json:"workstation_id"`
	Position      Position `json:"position"`
	Status        string   `json:"status"`
}

// PartInBuffer is the payload of part_in_buffer.
type PartInBuffer struct {
	PartID      string   `json:"part_id"`
	BufferID    int      `json:"buffer_id"`
	Position    Position `json:"position"`
	Status      string   `json:"status"`
	BufferLevel int      `json:"buffer_level"`
}

// PartFinished is the payload of part_finished.
type PartFinished struct {
	PartID    string   `json:"part_id"`
	Position  Position `json:"position"`
	Status    string   `json:"status"`
	CycleTime float64  `json:"cycle_time"`
}

// PartID extracts the part identifier from a part payload, or "" for
// simulation-level events.
func (e Event) PartID() string {
	switch d := e.Data.(type) {
	case PartArrived:
		return d.PartID
	case PartWaitingBuffer:
		return d.PartID
	case PartQueue:
		return d.PartID
	case PartProcessing:
		return d.PartID
	case PartCompletedStation:
		return d.PartID
	case PartInBuffer:
		return d.PartID
	case PartFinished:
		return d.PartID
	default:
		return ""
	}
}
