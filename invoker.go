package luadsp

import (
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/soundctl/luadsp/engine"
	"github.com/soundctl/luadsp/params"
)

// ParamsGlobal is the Lua global through which scripts read sticky named
// parameters, e.g. PARAMS.gain.
const ParamsGlobal = "PARAMS"

// Output bounds. Results outside this range are clamped, never faulted.
const (
	outputMin = -1.0
	outputMax = 1.0
)

// Invoker executes one protected script call per sample.
//
// The calling convention is fixed: the script function receives the input
// amplitude, the previous output (feedback), and the remaining sample
// count in the current vector, followed by either the four legacy scalars
// or the full positional parameter view. It must return exactly one
// finite number, which is clamped to [-1, 1] and becomes the next
// feedback value.
//
// Any failure trips the governor with a single diagnostic and yields
// silent output; while tripped, Process returns silence without entering
// the interpreter. The argument buffer is preallocated so the common case
// does not heap-allocate.
type Invoker struct {
	rt       *engine.Runtime
	store    *params.Store
	governor *Governor

	// legacy selects the four-scalar calling convention regardless of the
	// positional active count.
	legacy bool

	// prev is the feedback state: the previous output sample. Owned
	// exclusively by this invoker, updated once per successful call.
	prev float64

	// args is reused across calls to keep marshaling allocation-free.
	args []lua.LValue
}

// fixedArgs is the number of leading arguments before parameters.
const fixedArgs = 3

// NewInvoker wires an invoker to its unit's runtime, store and governor.
func NewInvoker(rt *engine.Runtime, store *params.Store, governor *Governor, legacy bool) *Invoker {
	return &Invoker{
		rt:       rt,
		store:    store,
		governor: governor,
		legacy:   legacy,
		args:     make([]lua.LValue, 0, fixedArgs+params.MaxPositional),
	}
}

// Feedback returns the current feedback value (the previous output).
func (inv *Invoker) Feedback() float64 {
	return inv.prev
}

// ResetFeedback zeroes the feedback state, e.g. when the host restarts
// the signal chain.
func (inv *Invoker) ResetFeedback() {
	inv.prev = 0
}

// Process runs one sample through the bound script function.
//
// audioIn is the input amplitude, remaining the count of samples left in
// the current vector after this one. The return value is the validated,
// clamped output sample; on any failure it is 0 and the governor is
// tripped.
func (inv *Invoker) Process(ref *engine.FuncRef, audioIn float64, remaining int) float64 {
	if inv.governor.IsTripped() {
		return 0
	}

	if !inv.rt.Validate(ref) {
		inv.governor.Trip(ErrNotBound.Error())
		return 0
	}

	// Refresh the script's named-parameter table if the control path
	// changed it. This is the only interpreter write triggered by audio
	// processing and happens only after a change, not per sample.
	if inv.store.ConsumeNamedDirty() {
		inv.rt.SetNamedTable(ParamsGlobal, inv.store.NamedSnapshot())
	}

	args := inv.args[:0]
	args = append(args,
		lua.LNumber(audioIn),
		lua.LNumber(inv.prev),
		lua.LNumber(remaining),
	)

	if inv.legacy {
		lv := inv.store.LegacyView()
		for _, v := range lv {
			args = append(args, lua.LNumber(v))
		}
	} else {
		view, count := inv.store.SnapshotForCall()
		for i := 0; i < count; i++ {
			args = append(args, lua.LNumber(view[i]))
		}
	}

	ret, err := inv.rt.Call(ref, args)
	if err != nil {
		inv.governor.Trip(err.Error())
		return 0
	}

	num, ok := ret.(lua.LNumber)
	if !ok {
		inv.governor.Trip(ErrBadReturn.Error() + ", got " + ret.Type().String())
		return 0
	}

	out := float64(num)
	if math.IsNaN(out) || math.IsInf(out, 0) {
		inv.governor.Trip(ErrNonFinite.Error())
		return 0
	}

	if out > outputMax {
		out = outputMax
	} else if out < outputMin {
		out = outputMin
	}

	inv.prev = out
	return out
}
