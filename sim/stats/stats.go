// Package stats aggregates per-run line statistics: counts, per-workstation
// busy time, queue and cycle time samples, buffer levels.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Snapshot is a point-in-time copy of the statistics of one run.
type Snapshot struct {
	SimulationTime         float64   `json:"simulation_time"`
	PartsArrived           int       `json:"parts_arrived"`
	PartsProduced          int       `json:"parts_produced"`
	PartsInSystem          int       `json:"parts_in_system"`
	Throughput             float64   `json:"throughput"`
	AvgCycleTime           float64   `json:"avg_cycle_time"`
	P95CycleTime           float64   `json:"p95_cycle_time"`
	AvgQueueTime           float64   `json:"avg_queue_time"`
	WorkstationUtilization []float64 `json:"workstation_utilization"`
	BufferLevels           []int     `json:"buffer_levels"`
	MaxBufferLevels        []int     `json:"max_buffer_levels"`
}

// Accumulator collects the statistics of one run. The kernel goroutine
// writes at well-defined checkpoints; any goroutine may call Snapshot.
type Accumulator struct {
	mu sync.Mutex

	now      float64
	arrived  int
	produced int
	inSystem int

	holders    []int     // current holders per workstation
	busyArea   []float64 // integral of holders over time, closed intervals only
	lastChange []float64 // time holders last changed

	queueTimes []float64
	cycleTimes []float64

	bufferLevels    []int
	maxBufferLevels []int
}

// NewAccumulator creates an Accumulator for a line with the given number of
// workstations and buffers.
func NewAccumulator(numWorkstations, numBuffers int) *Accumulator {
	return &Accumulator{
		holders:         make([]int, numWorkstations),
		busyArea:        make([]float64, numWorkstations),
		lastChange:      make([]float64, numWorkstations),
		queueTimes:      make([]float64, 0),
		cycleTimes:      make([]float64, 0),
		bufferLevels:    make([]int, numBuffers),
		maxBufferLevels: make([]int, numBuffers),
	}
}

// Advance moves the statistics clock forward. Earlier times are ignored.
func (a *Accumulator) Advance(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance(now)
}

func (a *Accumulator) advance(now float64) {
	if now > a.now {
		a.now = now
	}
}

// RecordArrival counts a new part entering the line.
func (a *Accumulator) RecordArrival(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance(now)
	a.arrived++
	a.inSystem++
}

// RecordQueueTime stores one resource wait sample.
func (a *Accumulator) RecordQueueTime(now, wait float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance(now)
	a.queueTimes = append(a.queueTimes, wait)
}

// StartBusy marks one more holder on workstation ws from now on.
func (a *Accumulator) StartBusy(now float64, ws int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance(now)
	a.closeInterval(ws, now)
	a.holders[ws]++
}

// EndBusy marks one holder leaving workstation ws.
func (a *Accumulator) EndBusy(now float64, ws int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance(now)
	a.closeInterval(ws, now)
	if a.holders[ws] > 0 {
		a.holders[ws]--
	}
}

func (a *Accumulator) closeInterval(ws int, now float64) {
	a.busyArea[ws] += float64(a.holders[ws]) * (now - a.lastChange[ws])
	a.lastChange[ws] = now
}

// RecordBufferLevel stores the level observed on buffer id.
func (a *Accumulator) RecordBufferLevel(now float64, id, level int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance(now)
	a.bufferLevels[id] = level
	if level > a.maxBufferLevels[id] {
		a.maxBufferLevels[id] = level
	}
}

// RecordFinished counts a part leaving the line after cycleTime.
func (a *Accumulator) RecordFinished(now, cycleTime float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance(now)
	a.cycleTimes = append(a.cycleTimes, cycleTime)
	a.produced++
	a.inSystem--
}

// Snapshot returns a consistent copy of the current statistics.
// Rates and averages are 0 when their divisor is 0.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	util := make([]float64, len(a.holders))
	for i := range a.holders {
		area := a.busyArea[i] + float64(a.holders[i])*(a.now-a.lastChange[i])
		util[i] = safeDiv(area, a.now)
	}
	return Snapshot{
		SimulationTime:         a.now,
		PartsArrived:           a.arrived,
		PartsProduced:          a.produced,
		PartsInSystem:          a.inSystem,
		Throughput:             safeDiv(float64(a.produced), a.now),
		AvgCycleTime:           CalculateMean(a.cycleTimes),
		P95CycleTime:           CalculatePercentile(a.cycleTimes, 95),
		AvgQueueTime:           CalculateMean(a.queueTimes),
		WorkstationUtilization: util,
		BufferLevels:           append([]int(nil), a.bufferLevels...),
		MaxBufferLevels:        append([]int(nil), a.maxBufferLevels...),
	}
}

// Empty returns the snapshot reported before any run has started.
func Empty() Snapshot {
	return Snapshot{
		WorkstationUtilization: []float64{},
		BufferLevels:           []int{},
		MaxBufferLevels:        []int{},
	}
}

// Print writes a human-readable summary followed by the JSON form.
func (s Snapshot) Print(w io.Writer) error {
	fmt.Fprintln(w, "=== Simulation Statistics ===")
	fmt.Fprintf(w, "Simulation Time      : %.2f\n", s.SimulationTime)
	fmt.Fprintf(w, "Parts Arrived        : %d\n", s.PartsArrived)
	fmt.Fprintf(w, "Parts Produced       : %d\n", s.PartsProduced)
	fmt.Fprintf(w, "Parts In System      : %d\n", s.PartsInSystem)
	fmt.Fprintf(w, "Throughput           : %.4f parts/unit\n", s.Throughput)
	fmt.Fprintf(w, "Average Cycle Time   : %.2f\n", s.AvgCycleTime)
	fmt.Fprintf(w, "P95 Cycle Time       : %.2f\n", s.P95CycleTime)
	fmt.Fprintf(w, "Average Queue Time   : %.2f\n", s.AvgQueueTime)
	for i, u := range s.WorkstationUtilization {
		fmt.Fprintf(w, "Workstation %-2d       : %5.1f%%\n", i+1, u*100)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding statistics: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
