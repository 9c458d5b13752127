package luadsp

import "sync/atomic"

// Governor is the sticky fault state machine for one processing unit.
//
// Two states: running and faulted. Any call failure trips it; while
// tripped, the unit short-circuits to silent output without entering the
// interpreter. The only way back is Clear, invoked on an explicit
// successful rebind or reload. Time and sample count never clear it.
//
// Trip is idempotent: the diagnostic for a fault is emitted once, not once
// per sample.
type Governor struct {
	tripped atomic.Bool
	lastMsg string
	console Console
}

// NewGovernor returns an untripped governor reporting to console.
func NewGovernor(console Console) *Governor {
	if console == nil {
		console = DefaultConsole()
	}
	return &Governor{console: console}
}

// Trip enters the faulted state and emits the diagnostic. If already
// faulted, nothing happens and nothing is emitted.
func (g *Governor) Trip(message string) {
	if g.tripped.Swap(true) {
		return
	}
	g.lastMsg = message
	g.console.Error("luadsp: %s", message)
}

// Clear returns to the running state. Callers invoke it only after a
// successful rebind or reload.
func (g *Governor) Clear() {
	g.tripped.Store(false)
}

// IsTripped reports whether the unit is faulted.
func (g *Governor) IsTripped() bool {
	return g.tripped.Load()
}

// LastMessage returns the diagnostic from the most recent trip.
func (g *Governor) LastMessage() string {
	return g.lastMsg
}
