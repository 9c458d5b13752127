package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// FuncRef is a persistent reference to a script function, resolved once by
// name and usable many times without further lookups.
//
// The held *lua.LFunction is itself the persistent reference: it pins the
// function value for as long as the ref is live. The generation field ties
// the ref to the load generation it was bound under, so a source reload
// invalidates it without any bookkeeping on the reload path.
type FuncRef struct {
	fn         *lua.LFunction
	name       string
	generation uint64
}

// Name returns the global name this reference was bound from.
func (f *FuncRef) Name() string {
	if f == nil {
		return ""
	}
	return f.name
}

// Bind resolves name to a callable global and returns a persistent
// reference to it. This is the one place a name lookup happens; it belongs
// on the control path. On failure the error wraps ErrNotFunction and no
// state changes, so any prior binding the caller holds stays usable.
func (r *Runtime) Bind(name string) (*FuncRef, error) {
	if r.closed {
		return nil, ErrRuntimeClosed
	}

	fn, ok := r.l.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFunction, name)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Runtime.Bind",
		"name":       name,
		"generation": r.generation,
	}).Info("Cached script function reference")

	return &FuncRef{fn: fn, name: name, generation: r.generation}, nil
}

// Validate reports whether ref is live: bound, unreleased, and from the
// current load generation. It is O(1) with no name lookup, the only check
// permitted on the audio-rate path.
func (r *Runtime) Validate(ref *FuncRef) bool {
	return ref != nil && ref.fn != nil && !r.closed && ref.generation == r.generation
}

// Release drops the persistent reference so the function value can be
// collected. Required once per successful Bind, including at teardown;
// releasing an already-released or nil ref is a no-op.
func (r *Runtime) Release(ref *FuncRef) {
	if ref == nil || ref.fn == nil {
		return
	}
	ref.fn = nil
}

// Call invokes the referenced function under protected execution with the
// given arguments and returns its single result. A stale or released ref
// yields ErrStaleRef; a script fault yields the diagnostic wrapped in
// ErrCallFault. The result is returned raw; boundary type checking is the
// caller's gate.
func (r *Runtime) Call(ref *FuncRef, args []lua.LValue) (lua.LValue, error) {
	if !r.Validate(ref) {
		return lua.LNil, ErrStaleRef
	}

	L := r.l
	L.Push(ref.fn)
	for _, a := range args {
		L.Push(a)
	}

	if err := L.PCall(len(args), 1, nil); err != nil {
		return lua.LNil, fmt.Errorf("%w: %v", ErrCallFault, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}
