// Package testutil provides shared test infrastructure for the line
// simulator: repository fixture loading and statistics assertions used
// across sim/line/ and sim/control/ test packages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/simline/simline/sim/stats"
)

// RepoFile returns the absolute path of a file at the repository root.
// The path is resolved relative to this source file: sim/internal/testutil/ → repo root.
func RepoFile(t *testing.T, name string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Failed to locate %s: %v", name, err)
	}
	return path
}

// AssertSnapshotInvariants checks the properties every snapshot must hold,
// whenever it is taken: conservation of parts, bounded utilization, buffer
// levels within capacity and finite rates.
func AssertSnapshotInvariants(t *testing.T, snap stats.Snapshot, bufferCapacities []int) {
	t.Helper()
	if snap.PartsArrived < 0 || snap.PartsProduced < 0 || snap.PartsInSystem < 0 {
		t.Errorf("negative counts: arrived=%d produced=%d in_system=%d",
			snap.PartsArrived, snap.PartsProduced, snap.PartsInSystem)
	}
	if snap.PartsArrived != snap.PartsProduced+snap.PartsInSystem {
		t.Errorf("conservation violated: arrived=%d != produced=%d + in_system=%d",
			snap.PartsArrived, snap.PartsProduced, snap.PartsInSystem)
	}
	for i, u := range snap.WorkstationUtilization {
		if math.IsNaN(u) || u < 0 || u > 1+1e-9 {
			t.Errorf("workstation %d utilization %v outside [0,1]", i, u)
		}
	}
	for i, level := range snap.BufferLevels {
		if i < len(bufferCapacities) && (level < 0 || level > bufferCapacities[i]) {
			t.Errorf("buffer %d level %d outside [0,%d]", i, level, bufferCapacities[i])
		}
	}
	for i, level := range snap.MaxBufferLevels {
		if i < len(bufferCapacities) && level > bufferCapacities[i] {
			t.Errorf("buffer %d max level %d exceeds capacity %d", i, level, bufferCapacities[i])
		}
	}
	for name, v := range map[string]float64{
		"throughput":     snap.Throughput,
		"avg_cycle_time": snap.AvgCycleTime,
		"p95_cycle_time": snap.P95CycleTime,
		"avg_queue_time": snap.AvgQueueTime,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Errorf("%s = %v, want finite and non-negative", name, v)
		}
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
