package trace

import (
	"encoding/json"

	"github.com/simline/simline/sim/event"
)

// TraceSummary aggregates statistics from the stored events of one run.
type TraceSummary struct {
	TotalEvents             int
	CountsByType            map[event.Type]int
	UniqueParts             int
	PartsFinished           int
	MeanCycleTime           float64
	MaxCycleTime            float64
	WorkstationDistribution map[int]int // workstation ID → parts processed
	EndTime                 float64
	UnknownEvents           int // rows whose type this build does not know
}

// Summarize computes aggregate statistics from stored events.
// Safe for nil or empty slices (returns zero-value fields). Payloads that
// fail to decode are counted by type but otherwise skipped. Rows with an
// unrecognized type count toward TotalEvents and UnknownEvents only.
func Summarize(events []StoredEvent) *TraceSummary {
	summary := &TraceSummary{
		CountsByType:            make(map[event.Type]int),
		WorkstationDistribution: make(map[int]int),
	}
	parts := make(map[string]bool)
	totalCycle := 0.0

	for _, ev := range events {
		summary.TotalEvents++
		if !event.IsValidType(string(ev.Type)) {
			summary.UnknownEvents++
			continue
		}
		summary.CountsByType[ev.Type]++
		if ev.Timestamp > summary.EndTime {
			summary.EndTime = ev.Timestamp
		}
		if ev.PartID != "" {
			parts[ev.PartID] = true
		}

		switch ev.Type {
		case event.TypePartProcessing:
			var p event.PartProcessing
			if json.Unmarshal(ev.Data, &p) == nil {
				summary.WorkstationDistribution[p.WorkstationID]++
			}
		case event.TypePartFinished:
			var p event.PartFinished
			if json.Unmarshal(ev.Data, &p) != nil {
				continue
			}
			summary.PartsFinished++
			totalCycle += p.CycleTime
			if p.CycleTime > summary.MaxCycleTime {
				summary.MaxCycleTime = p.CycleTime
			}
		}
	}

	summary.UniqueParts = len(parts)
	if summary.PartsFinished > 0 {
		summary.MeanCycleTime = totalCycle / float64(summary.PartsFinished)
	}
	return summary
}
