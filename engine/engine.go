package engine

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// CollectMode selects how the collector behaves once a unit is running.
//
// Script values allocated by gopher-lua live on the Go heap, so collector
// tuning is expressed through the Go runtime: preallocated registry and
// call-stack sizing removes growth allocations from the steady state, and
// the GC trigger percentage trades memory headroom for shorter, rarer
// pauses near the audio callback.
type CollectMode int

const (
	// CollectDefault leaves the process collector settings untouched.
	CollectDefault CollectMode = iota

	// CollectConservative raises the GC trigger so collections are rarer,
	// trading memory for fewer pauses. This is the mode units run in after
	// construction.
	CollectConservative

	// CollectManual disables automatic collection entirely. The host is
	// then responsible for scheduling collection at safe points.
	CollectManual
)

// conservativePercent mirrors the original engine's "wait 2x memory before
// next collection" pause setting.
const conservativePercent = 200

// gcMu serializes collector reconfiguration; the trigger percentage is a
// process-wide setting shared by all units.
var gcMu sync.Mutex

// Options configures Runtime construction.
type Options struct {
	// FullLibraries opens the complete Lua standard library set, including
	// io and os. The default is a restricted set (package, base, table,
	// string, math) that keeps filesystem and process access out of reach
	// of DSP scripts.
	FullLibraries bool

	// RegistrySize is the preallocated VM registry size. Zero selects a
	// default large enough that steady-state DSP calls never grow it.
	RegistrySize int

	// CallStackSize is the preallocated Lua call stack depth. Zero selects
	// the gopher-lua default.
	CallStackSize int

	// Collection is the collector mode installed once construction and
	// library registration complete.
	Collection CollectMode
}

// Runtime owns one interpreter VM instance for one processing unit.
//
// A Runtime is created once, destroyed once, and never entered
// concurrently. Every outstanding FuncRef is tied to the runtime's load
// generation; see Bind and Validate.
type Runtime struct {
	l          *lua.LState
	generation uint64
	closed     bool
}

const defaultRegistrySize = 1024 * 16

// New creates an interpreter instance and opens its libraries.
//
// Automatic collection is suspended for the duration of construction so
// library registration cannot be interrupted by a pause, then re-enabled
// in the requested mode. A collector configuration problem is non-fatal:
// the runtime still works, it just loses its real-time pause guarantees,
// so it is logged rather than returned.
func New(opts Options) (*Runtime, error) {
	logrus.WithFields(logrus.Fields{
		"function":       "engine.New",
		"full_libraries": opts.FullLibraries,
		"collection":     opts.Collection,
	}).Info("Creating script runtime")

	registrySize := opts.RegistrySize
	if registrySize <= 0 {
		registrySize = defaultRegistrySize
	}

	luaOpts := lua.Options{
		SkipOpenLibs:  !opts.FullLibraries,
		RegistrySize:  registrySize,
		CallStackSize: opts.CallStackSize,
	}

	L := lua.NewState(luaOpts)
	if L == nil {
		return nil, fmt.Errorf("%w: interpreter allocation failed", ErrRuntimeClosed)
	}

	r := &Runtime{l: L}

	prev := suspendCollection()
	defer func() {
		if err := resumeCollection(opts.Collection, prev); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "engine.New",
				"error":    err.Error(),
			}).Warn("Collector configuration failed, real-time guarantees degraded")
		}
	}()

	if !opts.FullLibraries {
		r.openRestrictedLibs()
	}

	logrus.WithFields(logrus.Fields{
		"function":      "engine.New",
		"registry_size": registrySize,
	}).Info("Script runtime created")

	return r, nil
}

// openRestrictedLibs loads the library subset DSP scripts are allowed to
// use. The load order matters: the package library must come first so
// require() works for the rest.
func (r *Runtime) openRestrictedLibs() {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		r.l.Push(r.l.NewFunction(lib.fn))
		r.l.Push(lua.LString(lib.name))
		r.l.Call(1, 0)
	}

	// The base library exposes loaders even without io/os; remove them so
	// scripts cannot reach the filesystem.
	r.l.SetGlobal("dofile", lua.LNil)
	r.l.SetGlobal("loadfile", lua.LNil)
}

// ConfigureCollection switches the collector mode at runtime.
// An unknown mode is non-fatal: it is logged and the previous setting kept.
func (r *Runtime) ConfigureCollection(mode CollectMode) {
	if err := resumeCollection(mode, -1); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Runtime.ConfigureCollection",
			"mode":     mode,
			"error":    err.Error(),
		}).Warn("Collector configuration failed, keeping previous mode")
	}
}

func suspendCollection() int {
	gcMu.Lock()
	defer gcMu.Unlock()
	return debug.SetGCPercent(-1)
}

// resumeCollection installs the collector mode for steady-state operation.
// prev is the percentage CollectDefault restores; a negative prev falls
// back to the Go runtime default.
func resumeCollection(mode CollectMode, prev int) error {
	gcMu.Lock()
	defer gcMu.Unlock()

	switch mode {
	case CollectDefault:
		if prev < 0 {
			prev = 100
		}
		debug.SetGCPercent(prev)
	case CollectConservative:
		debug.SetGCPercent(conservativePercent)
	case CollectManual:
		debug.SetGCPercent(-1)
	default:
		return fmt.Errorf("unknown collection mode %d", mode)
	}
	return nil
}

// SetAmbient pushes a named numeric global visible to all script code,
// e.g. SAMPLE_RATE. It must be re-invoked on every host format change.
func (r *Runtime) SetAmbient(name string, value float64) {
	if r.closed {
		return
	}
	r.l.SetGlobal(name, lua.LNumber(value))
}

// Ambient reads back a numeric global previously pushed with SetAmbient.
func (r *Runtime) Ambient(name string) (float64, bool) {
	if r.closed {
		return 0, false
	}
	if n, ok := r.l.GetGlobal(name).(lua.LNumber); ok {
		return float64(n), true
	}
	return 0, false
}

// SetNamedTable replaces the named global with a fresh table holding the
// given values. Rebuilding from scratch makes a cleared map visible to
// scripts as an empty table rather than leaving stale keys behind.
func (r *Runtime) SetNamedTable(global string, values map[string]float64) {
	if r.closed {
		return
	}
	tbl := r.l.NewTable()
	for k, v := range values {
		r.l.SetField(tbl, k, lua.LNumber(v))
	}
	r.l.SetGlobal(global, tbl)
}

// GlobalIsFunction reports whether name resolves to a callable global.
// This is a full name lookup and belongs on the control path only.
func (r *Runtime) GlobalIsFunction(name string) bool {
	if r.closed {
		return false
	}
	_, ok := r.l.GetGlobal(name).(*lua.LFunction)
	return ok
}

// Generation returns the current load generation. Every successful load
// bumps it, invalidating previously bound function references.
func (r *Runtime) Generation() uint64 {
	return r.generation
}

// Close destroys the interpreter. All outstanding references become
// permanently invalid. Close is idempotent.
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.l.Close()

	logrus.WithFields(logrus.Fields{
		"function":   "Runtime.Close",
		"generation": r.generation,
	}).Info("Script runtime destroyed")
}
