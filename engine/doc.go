// Package engine owns the embedded Lua interpreter for one processing unit.
//
// This package provides the script runtime lifecycle, source loading with
// protected execution, and the resolve-once function cache that keeps name
// lookups off the audio-rate path. It wraps github.com/yuin/gopher-lua, a
// pure Go Lua 5.1 VM, so a script fault surfaces as an ordinary Go error
// instead of terminating the host.
//
// The central design rule: a function name is resolved exactly once through
// Runtime.Bind, which returns a FuncRef holding the live function value.
// Per-sample code checks the reference with Runtime.Validate, an O(1)
// generation comparison with no name lookup, and invokes it with
// Runtime.Call. Reloading source bumps the runtime's load generation,
// invalidating every outstanding FuncRef until the caller re-binds.
//
// A Runtime belongs to exactly one processing unit and must never be
// entered concurrently. Parameter state that may race the audio path lives
// in the params package, not here.
package engine
