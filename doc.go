// Package luadsp bridges an embedded Lua interpreter into a real-time
// audio host, letting user-authored Lua functions define per-sample DSP.
//
// The host delivers one input amplitude per sample from a fixed-period
// callback and expects one output amplitude back, sample-accurately,
// without allocation, blocking, or host-visible faults. Everything in this
// module exists to make a dynamically typed scripting call safe under
// those constraints.
//
// # Architecture
//
//   - Unit: one processing unit that owns an interpreter, a parameter store,
//     an invoker and a fault governor; never shared across units
//   - engine.Runtime: interpreter lifecycle, protected source loading, and
//     the resolve-once function cache (engine sub-package)
//   - params.Store: lock-free positional/named parameter state shared
//     between control and audio paths (params sub-package)
//   - Invoker: the per-sample protected call with strict return
//     validation, output clamping, and feedback threading
//   - Governor: sticky fault state that silences a faulted unit until an
//     explicit successful rebind
//
// # Usage
//
// Create a unit with a script and process samples:
//
//	unit, err := luadsp.NewUnit(luadsp.Config{
//	    ScriptPath:   "ringmod.lua",
//	    FunctionName: "base",
//	    SampleRate:   48000,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer unit.Close()
//
//	// audio callback
//	unit.ProcessBuffer(in, out)
//
// Control messages (parameter bursts, named updates, function rebinds)
// go through Unit.Dispatch and take effect no later than the next sample:
//
//	unit.Dispatch([]luadsp.Atom{luadsp.Name("gain"), luadsp.Num(0.8)})
//
// A script fault never unwinds into the host: the unit trips, emits one
// diagnostic to its Console, and outputs silence until a rebind succeeds.
package luadsp
