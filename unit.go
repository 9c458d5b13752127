package luadsp

import (
	"github.com/sirupsen/logrus"

	"github.com/soundctl/luadsp/engine"
	"github.com/soundctl/luadsp/params"
)

// Ambient global names pushed into the interpreter at construction and on
// every format change.
const (
	SampleRateGlobal = "SAMPLE_RATE"
	VectorSizeGlobal = "VECTOR_SIZE"
)

// Default format values before the host announces one.
const (
	defaultSampleRate   = 44100.0
	defaultVectorSize   = 64
	defaultFunctionName = "base"
)

// Config configures a processing unit.
type Config struct {
	// ScriptPath is an optional script executed at construction.
	ScriptPath string

	// FunctionName is the DSP function bound after loading. Empty selects
	// "base".
	FunctionName string

	// SampleRate and VectorSize seed the ambient format globals until the
	// host announces the real format. Zero selects 44100 / 64.
	SampleRate float64
	VectorSize int

	// LegacyCalling selects the four-scalar calling convention instead of
	// the full positional view.
	LegacyCalling bool

	// Console receives diagnostics. Nil selects the logger-backed default.
	Console Console

	// Engine tunes the interpreter. The Collection field is ignored here:
	// collection is always suspended for the duration of construction and
	// then set to the conservative incremental mode.
	Engine engine.Options
}

// Unit is one processing unit: a single interpreter, parameter store,
// invoker and governor, owned together and never shared across units.
//
// Control-path methods (Load*, BindFunction, Reload, Dispatch, SetFormat,
// Close) must not run concurrently with each other or with processing.
// Parameter setters and the Process* methods follow the params.Store
// publication contract and may race freely.
type Unit struct {
	rt       *engine.Runtime
	store    *params.Store
	governor *Governor
	invoker  *Invoker
	console  Console

	ref      *engine.FuncRef
	funcName string

	scriptPath string
	sampleRate float64
	vectorSize int

	closed bool
}

// NewUnit creates a processing unit, loads its script if one is given, and
// binds the DSP function.
//
// Interpreter allocation failure is fatal for the unit. A missing script
// function is not: the unit comes up unbound, reports the problem once,
// and produces silence until a successful bind.
func NewUnit(cfg Config) (*Unit, error) {
	if cfg.Console == nil {
		cfg.Console = DefaultConsole()
	}
	if cfg.FunctionName == "" {
		cfg.FunctionName = defaultFunctionName
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = defaultVectorSize
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewUnit",
		"script_path": cfg.ScriptPath,
		"func_name":   cfg.FunctionName,
		"sample_rate": cfg.SampleRate,
		"vector_size": cfg.VectorSize,
	}).Info("Creating processing unit")

	// Collection stays suspended until loading and registration are done,
	// then runs in the bounded-pause conservative mode.
	engOpts := cfg.Engine
	engOpts.Collection = engine.CollectManual
	rt, err := engine.New(engOpts)
	if err != nil {
		return nil, err
	}

	u := &Unit{
		rt:         rt,
		store:      params.NewStore(),
		governor:   NewGovernor(cfg.Console),
		console:    cfg.Console,
		funcName:   cfg.FunctionName,
		scriptPath: cfg.ScriptPath,
		sampleRate: cfg.SampleRate,
		vectorSize: cfg.VectorSize,
	}
	u.invoker = NewInvoker(rt, u.store, u.governor, cfg.LegacyCalling)

	u.rt.SetAmbient(SampleRateGlobal, u.sampleRate)
	u.rt.SetAmbient(VectorSizeGlobal, float64(u.vectorSize))
	u.rt.SetNamedTable(ParamsGlobal, nil)

	if cfg.ScriptPath != "" {
		if err := u.rt.LoadFile(cfg.ScriptPath); err != nil {
			u.console.Error("luadsp: %v", err)
		} else if err := u.rebind(u.funcName); err != nil {
			u.console.Error("luadsp: %v", err)
		}
	}

	u.rt.ConfigureCollection(engine.CollectConservative)

	return u, nil
}

// rebind resolves name, swaps the cached reference, and clears the fault
// state. On failure nothing changes: the prior binding, if any, stays
// active and the governor keeps its state.
func (u *Unit) rebind(name string) error {
	ref, err := u.rt.Bind(name)
	if err != nil {
		return err
	}

	u.rt.Release(u.ref)
	u.ref = ref
	u.funcName = name
	u.governor.Clear()

	u.console.Post("luadsp: bound function %q", name)
	return nil
}

// BindFunction resolves name to a script function and makes it the DSP
// function. A failed bind is recoverable: it returns the error, leaves the
// previous binding usable, and does not touch the fault state.
func (u *Unit) BindFunction(name string) error {
	if u.closed {
		return ErrClosed
	}
	return u.rebind(name)
}

// FunctionName returns the name of the currently targeted DSP function.
func (u *Unit) FunctionName() string {
	return u.funcName
}

// IsBound reports whether a live DSP function reference is held.
func (u *Unit) IsBound() bool {
	return u.rt.Validate(u.ref)
}

// LoadFile executes a script file, then re-binds the current function
// name. Load failure retains all prior state. A load that succeeds but
// loses the function (renamed, removed) trips the governor: the unit had
// its bindings invalidated and could not recover them.
func (u *Unit) LoadFile(path string) error {
	if u.closed {
		return ErrClosed
	}
	if err := u.rt.LoadFile(path); err != nil {
		return err
	}
	u.scriptPath = path
	return u.rebindAfterLoad()
}

// LoadString executes inline source text with LoadFile semantics.
func (u *Unit) LoadString(code string) error {
	if u.closed {
		return ErrClosed
	}
	if err := u.rt.LoadString(code); err != nil {
		return err
	}
	return u.rebindAfterLoad()
}

// Reload re-executes the current script file and re-binds, the control
// message the host sends after editing the script on disk.
func (u *Unit) Reload() error {
	if u.closed {
		return ErrClosed
	}
	if u.scriptPath == "" {
		return ErrMalformedMessage
	}
	return u.LoadFile(u.scriptPath)
}

func (u *Unit) rebindAfterLoad() error {
	u.rt.Release(u.ref)
	u.ref = nil

	if err := u.rebind(u.funcName); err != nil {
		u.governor.Trip("function '" + u.funcName + "' not found after reload")
		return err
	}
	return nil
}

// SetFormat records a host format change and refreshes the ambient
// globals. Called once per format notification, never per sample.
func (u *Unit) SetFormat(sampleRate float64, vectorSize int) {
	if u.closed {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Unit.SetFormat",
		"sample_rate": sampleRate,
		"vector_size": vectorSize,
	}).Info("Format change")

	u.sampleRate = sampleRate
	u.vectorSize = vectorSize
	u.rt.SetAmbient(SampleRateGlobal, sampleRate)
	u.rt.SetAmbient(VectorSizeGlobal, float64(vectorSize))
}

// SampleRate returns the current sample rate.
func (u *Unit) SampleRate() float64 {
	return u.sampleRate
}

// VectorSize returns the current vector size.
func (u *Unit) VectorSize() int {
	return u.vectorSize
}

// Params exposes the unit's parameter store for direct control-path use.
func (u *Unit) Params() *params.Store {
	return u.store
}

// Governor exposes the unit's fault state.
func (u *Unit) Governor() *Governor {
	return u.governor
}

// ProcessSample runs one input amplitude through the DSP function and
// returns the output amplitude. Audio-rate path.
func (u *Unit) ProcessSample(in float64) float64 {
	return u.invoker.Process(u.ref, in, 0)
}

// ProcessBuffer runs a whole vector, threading feedback sample to sample
// and passing each call the count of samples remaining after it. A
// faulted unit writes silence without entering the interpreter. out must
// be at least as long as in.
func (u *Unit) ProcessBuffer(in, out []float64) {
	if u.governor.IsTripped() {
		for i := range in {
			out[i] = 0
		}
		return
	}

	n := len(in)
	for i := 0; i < n; i++ {
		out[i] = u.invoker.Process(u.ref, in[i], n-1-i)
	}
}

// ResetFeedback zeroes the feedback state.
func (u *Unit) ResetFeedback() {
	u.invoker.ResetFeedback()
}

// Close releases the cached function reference and destroys the
// interpreter. The unit must not be used afterwards. Close is idempotent.
func (u *Unit) Close() {
	if u.closed {
		return
	}
	u.closed = true

	u.rt.Release(u.ref)
	u.ref = nil
	u.rt.Close()

	logrus.WithFields(logrus.Fields{
		"function":  "Unit.Close",
		"func_name": u.funcName,
	}).Info("Processing unit destroyed")
}
