package line

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/simline/simline/sim"
	"github.com/simline/simline/sim/event"
)

// PartState is where a part currently is in its walk through the line.
type PartState int

const (
	PartArrived PartState = iota
	PartWaitingBuffer
	PartQueuing
	PartProcessing
	PartInBuffer
	PartFinished
)

var partStateNames = map[PartState]string{
	PartArrived:       "arrived",
	PartWaitingBuffer: "waiting_buffer",
	PartQueuing:       "queuing",
	PartProcessing:    "processing",
	PartInBuffer:      "in_buffer",
	PartFinished:      "finished",
}

// String returns the state name.
func (s PartState) String() string {
	if name, ok := partStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PartState(%d)", int(s))
}

// partProcess is one part's continuation. Each Resume advances the state
// machine to its next suspension point: a buffer Get, a workstation Request,
// a processing delay or a buffer Put.
type partProcess struct {
	line *Line

	id      string
	arrival float64
	state   PartState
	stage   int
	route   []int // workstations actually visited

	workstation int     // workstation chosen for the current stage
	enqueuedAt  float64 // time the workstation was requested
}

// Resume implements sim.Process.
func (p *partProcess) Resume(s *sim.Scheduler) {
	switch p.state {
	case PartArrived:
		p.enterStage(s)
	case PartWaitingBuffer:
		buf := *p.line.stages[p.stage].BufferBefore
		p.line.acc.RecordBufferLevel(s.Now(), buf, p.line.buffers[buf].Level())
		p.queue(s)
	case PartQueuing:
		p.startProcessing(s)
	case PartProcessing:
		p.completeStation(s)
	case PartInBuffer:
		buf := *p.line.stages[p.stage].BufferAfter
		level := p.line.buffers[buf].Level()
		p.line.acc.RecordBufferLevel(s.Now(), buf, level)
		p.line.emit(event.TypePartInBuffer, event.PartInBuffer{
			PartID:      p.id,
			BufferID:    buf,
			Position:    p.line.bufferPos(buf),
			Status:      event.StatusInBuffer,
			BufferLevel: level,
		})
		p.stage++
		p.enterStage(s)
	default:
		panic(fmt.Sprintf("part %s resumed in state %v", p.id, p.state))
	}
}

func (p *partProcess) enterStage(s *sim.Scheduler) {
	if p.stage == len(p.line.stages) {
		p.finish(s)
		return
	}
	st := p.line.stages[p.stage]
	if st.BufferBefore == nil {
		p.queue(s)
		return
	}
	buf := *st.BufferBefore
	p.state = PartWaitingBuffer
	p.line.emit(event.TypePartWaitingBuffer, event.PartWaitingBuffer{
		PartID:   p.id,
		BufferID: buf,
		Position: p.line.bufferPos(buf),
		Status:   event.StatusWaiting,
	})
	p.line.buffers[buf].Get(1, p)
}

func (p *partProcess) queue(s *sim.Scheduler) {
	ws := p.line.stages[p.stage].Route.Choose(p.line.routingRNG)
	p.workstation = ws
	p.enqueuedAt = s.Now()
	p.state = PartQueuing
	p.line.emit(event.TypePartQueue, event.PartQueue{
		PartID:        p.id,
		WorkstationID: ws,
		Position:      p.line.workstationPos(ws),
		Status:        event.StatusQueuing,
	})
	p.line.workstations[ws].Request(p)
}

func (p *partProcess) startProcessing(s *sim.Scheduler) {
	now := s.Now()
	p.line.acc.RecordQueueTime(now, now-p.enqueuedAt)
	duration := p.line.processing.Sample(p.line.processingRNG)
	p.state = PartProcessing
	p.line.acc.StartBusy(now, p.workstation)
	p.line.emit(event.TypePartProcessing, event.PartProcessing{
		PartID:        p.id,
		WorkstationID: p.workstation,
		Position:      p.line.workstationPos(p.workstation),
		Status:        event.StatusProcessing,
		Duration:      duration,
	})
	s.ScheduleAfter(duration, p)
}

func (p *partProcess) completeStation(s *sim.Scheduler) {
	ws := p.workstation
	p.line.workstations[ws].Release()
	p.line.acc.EndBusy(s.Now(), ws)
	p.route = append(p.route, ws)
	p.line.emit(event.TypePartCompletedStation, event.PartCompletedStation{
		PartID:        p.id,
		WorkstationID: ws,
		Position:      p.line.workstationPos(ws),
		Status:        event.StatusCompleted,
	})

	st := p.line.stages[p.stage]
	if st.BufferAfter == nil {
		p.stage++
		p.enterStage(s)
		return
	}
	p.state = PartInBuffer
	p.line.buffers[*st.BufferAfter].Put(1, p)
}

func (p *partProcess) finish(s *sim.Scheduler) {
	now := s.Now()
	cycle := now - p.arrival
	p.state = PartFinished
	p.line.acc.RecordFinished(now, cycle)
	p.line.emit(event.TypePartFinished, event.PartFinished{
		PartID:    p.id,
		Position:  p.line.cfg.ExitPosition,
		Status:    event.StatusFinished,
		CycleTime: cycle,
	})
	logrus.Debugf("[t=%.3f] %s finished via %v, cycle %.3f", now, p.id, p.route, cycle)
}
