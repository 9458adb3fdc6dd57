package cmd

import (
	"math"

	"github.com/simline/simline/sim/event"
	"github.com/simline/simline/sim/line"
)

// Feature and FeatureCollection are the GeoJSON-shaped records served by
// /api/workshop-layout.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

const (
	layoutMargin   = 5.0
	zoneHalfHeight = 5.0
)

func point(p event.Position) Geometry {
	return Geometry{Type: "Point", Coordinates: []float64{p[0], p[1]}}
}

func rect(x0, y0, x1, y1 float64) Geometry {
	return Geometry{Type: "Polygon", Coordinates: [][][]float64{{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}}}
}

// buildLayout describes the shop floor of cfg: its boundary, every
// workstation and buffer, the input and output zones and the path a part
// follows through the stage centroids.
func buildLayout(cfg *line.Config) FeatureCollection {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	extend := func(p event.Position) {
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	extend(cfg.EntryPosition)
	extend(cfg.ExitPosition)

	features := make([]Feature, 0, len(cfg.Workstations)+len(cfg.Buffers)+4)
	for _, ws := range cfg.Workstations {
		extend(ws.Position)
		features = append(features, Feature{
			Type: "Feature",
			Properties: map[string]any{
				"type":   "workstation",
				"id":     ws.ID,
				"name":   ws.Name,
				"status": "idle",
			},
			Geometry: point(ws.Position),
		})
	}
	for _, b := range cfg.Buffers {
		extend(b.Position)
		features = append(features, Feature{
			Type: "Feature",
			Properties: map[string]any{
				"type":     "buffer",
				"id":       b.ID,
				"name":     b.Name,
				"capacity": b.Capacity,
				"level":    0,
			},
			Geometry: point(b.Position),
		})
	}

	in, out := cfg.EntryPosition, cfg.ExitPosition
	features = append(features,
		Feature{
			Type:       "Feature",
			Properties: map[string]any{"type": "input_zone", "name": "Raw material"},
			Geometry:   rect(in[0]-layoutMargin, in[1]-zoneHalfHeight, in[0], in[1]+zoneHalfHeight),
		},
		Feature{
			Type:       "Feature",
			Properties: map[string]any{"type": "output_zone", "name": "Finished goods"},
			Geometry:   rect(out[0], out[1]-zoneHalfHeight, out[0]+layoutMargin, out[1]+zoneHalfHeight),
		},
		Feature{
			Type:       "Feature",
			Properties: map[string]any{"type": "path", "name": "Production path"},
			Geometry:   Geometry{Type: "LineString", Coordinates: productionPath(cfg)},
		},
	)

	boundary := Feature{
		Type:       "Feature",
		Properties: map[string]any{"type": "boundary", "name": "Workshop"},
		Geometry:   rect(minX-layoutMargin, minY-layoutMargin, maxX+layoutMargin, maxY+layoutMargin),
	}
	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: append([]Feature{boundary}, features...),
	}
}

// productionPath runs from the entry through each stage's centroid, with
// the buffers between them, to the exit.
func productionPath(cfg *line.Config) [][]float64 {
	path := [][]float64{{cfg.EntryPosition[0], cfg.EntryPosition[1]}}
	for _, st := range cfg.Stages {
		var cx, cy float64
		for _, id := range st.Workstations {
			cx += cfg.Workstations[id].Position[0]
			cy += cfg.Workstations[id].Position[1]
		}
		n := float64(len(st.Workstations))
		path = append(path, []float64{cx / n, cy / n})
		if st.BufferAfter != nil {
			p := cfg.Buffers[*st.BufferAfter].Position
			path = append(path, []float64{p[0], p[1]})
		}
	}
	return append(path, []float64{cfg.ExitPosition[0], cfg.ExitPosition[1]})
}
