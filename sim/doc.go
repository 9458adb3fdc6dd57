// Package sim provides the discrete-event simulation kernel for simline.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - scheduler.go: the clock, the (time, sequence) ordered event queue and the run loop
//   - resource.go: exclusive-use devices with a FIFO wait queue
//   - buffer.go: bounded counting buffers with blocking put/get
//
// # Architecture
//
// Everything in this package runs on a single goroutine. A Process is a
// cooperatively scheduled continuation: the kernel calls Resume, the process
// runs until it registers itself on exactly one wait structure (the timer
// queue via ScheduleAfter, a Resource, or a Buffer) and returns. Nothing is
// ever resumed synchronously from inside another process; grants always go
// through the event queue with zero delay, so equal-time events resolve in
// registration order.
//
// The line model that drives these primitives lives in sim/line; statistics
// in sim/stats; the event stream in sim/event; run lifecycle in sim/control.
//
// # Key Interfaces
//   - Process: a resumable continuation (Resume)
//   - Hook: observer invoked before/after every kernel event
package sim
