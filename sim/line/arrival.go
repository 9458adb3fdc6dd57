package line

import (
	"fmt"

	"github.com/simline/simline/sim"
	"github.com/simline/simline/sim/event"
)

// arrivalProcess releases parts into the line at exponential intervals
// until the horizon, or until MaxArrivals parts when that is set.
type arrivalProcess struct {
	line *Line
}

// Resume releases one part and schedules the next arrival.
func (a *arrivalProcess) Resume(s *sim.Scheduler) {
	l := a.line
	l.arrived++
	now := s.Now()
	p := &partProcess{
		line:    l,
		id:      fmt.Sprintf("PART-%04d", l.arrived),
		arrival: now,
		state:   PartArrived,
		route:   make([]int, 0, len(l.stages)),
	}
	l.acc.RecordArrival(now)
	l.emit(event.TypePartArrived, event.PartArrived{
		PartID:   p.id,
		Position: l.cfg.EntryPosition,
		Status:   event.StatusArrived,
	})
	// The part runs as its own continuation; the generator does not wait for it.
	s.ScheduleAfter(0, p)

	if l.cfg.MaxArrivals > 0 && l.arrived >= l.cfg.MaxArrivals {
		return
	}
	s.ScheduleAfter(l.interArrival.Sample(l.arrivalRNG), a)
}
