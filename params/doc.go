// Package params holds the parameter state shared between a unit's control
// path and its audio-rate path.
//
// The store keeps two kinds of values. Positional parameters are an
// ordered, fixed-capacity numeric vector replaced in bulk; they arrive as
// message bursts and are handed to the script as call arguments. Named
// parameters are an open-ended name→number map with sticky semantics: a
// value persists until overwritten or cleared, the way a "gain 0.8"
// control is expected to behave.
//
// Publication is lock-free. Positional state is an immutable snapshot
// behind an atomic pointer, so a reader never observes a half-written
// array; named state is a copy-on-write map behind another. The audio path
// only ever loads pointers; no lock is taken that the control path could
// hold across a callback.
package params
