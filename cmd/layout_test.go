package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simline/simline/sim/line"
)

func TestBuildLayout_BoundaryEnclosesEverything(t *testing.T) {
	cfg := line.DefaultConfig()
	fc := buildLayout(cfg)

	require.NotEmpty(t, fc.Features)
	boundary := fc.Features[0]
	assert.Equal(t, "boundary", boundary.Properties["type"])

	ring := boundary.Geometry.Coordinates.([][][]float64)[0]
	minX, minY, maxX, maxY := ring[0][0], ring[0][1], ring[2][0], ring[2][1]
	for _, ws := range cfg.Workstations {
		assert.Greater(t, ws.Position[0], minX)
		assert.Less(t, ws.Position[0], maxX)
		assert.Greater(t, ws.Position[1], minY)
		assert.Less(t, ws.Position[1], maxY)
	}
	// entry at x=5 plus the margin
	assert.Equal(t, 0.0, minX)
	assert.Equal(t, 120.0, maxX)
}

func TestProductionPath_VisitsStagesAndBuffers(t *testing.T) {
	cfg := line.DefaultConfig()
	path := productionPath(cfg)

	// entry, one centroid per stage, one point per buffer, exit
	require.Len(t, path, 2+len(cfg.Stages)+len(cfg.Buffers))
	assert.Equal(t, []float64{cfg.EntryPosition[0], cfg.EntryPosition[1]}, path[0])
	assert.Equal(t, []float64{cfg.ExitPosition[0], cfg.ExitPosition[1]}, path[len(path)-1])

	for i := 1; i < len(path); i++ {
		assert.GreaterOrEqual(t, path[i][0], path[i-1][0], "path moves left to right at point %d", i)
	}
}
