package luadsp

import (
	"testing"

	"github.com/soundctl/luadsp/engine"
	"github.com/soundctl/luadsp/params"
)

// newTestInvoker builds an invoker over a runtime loaded with code, bound
// to funcName. The recording console captures governor diagnostics.
func newTestInvoker(t *testing.T, code, funcName string, legacy bool) (*Invoker, *engine.FuncRef, *Governor, *recordingConsole) {
	t.Helper()

	rt, err := engine.New(engine.Options{})
	if err != nil {
		t.Fatalf("engine.New() unexpected error: %v", err)
	}
	t.Cleanup(rt.Close)

	if err := rt.LoadString(code); err != nil {
		t.Fatalf("LoadString() unexpected error: %v", err)
	}

	ref, err := rt.Bind(funcName)
	if err != nil {
		t.Fatalf("Bind(%q) unexpected error: %v", funcName, err)
	}

	console := &recordingConsole{}
	gov := NewGovernor(console)
	inv := NewInvoker(rt, params.NewStore(), gov, legacy)
	return inv, ref, gov, console
}

// bind("base") on `return input/2`, then process(1.0, 0.0, 0, []) returns
// 0.5 with the governor untripped.
func TestInvoker_HalvingFunction(t *testing.T) {
	inv, ref, gov, _ := newTestInvoker(t,
		`function base(input) return input / 2 end`, "base", false)

	out := inv.Process(ref, 1.0, 0)
	if out != 0.5 {
		t.Errorf("Process(1.0) = %v, want 0.5", out)
	}
	if gov.IsTripped() {
		t.Error("governor tripped on a successful call")
	}
}

func TestInvoker_FixedLeadingArguments(t *testing.T) {
	// The function receives input, feedback, and remaining count in that
	// order; encode them into one result to verify.
	inv, ref, gov, _ := newTestInvoker(t,
		`function base(input, prev, remaining) return (input + remaining) / 100 end`,
		"base", false)

	out := inv.Process(ref, 2.0, 5)
	if out != 0.07 {
		t.Errorf("Process(2.0, remaining=5) = %v, want 0.07", out)
	}
	if gov.IsTripped() {
		t.Errorf("governor tripped: %s", gov.LastMessage())
	}
}

func TestInvoker_FeedbackThreading(t *testing.T) {
	inv, ref, _, _ := newTestInvoker(t,
		`function base(input, prev) return prev + 0.25 end`, "base", false)

	if got := inv.Process(ref, 0, 0); got != 0.25 {
		t.Fatalf("first sample = %v, want 0.25", got)
	}
	if got := inv.Process(ref, 0, 0); got != 0.5 {
		t.Errorf("second sample = %v, want 0.5 (feedback threaded)", got)
	}
	if inv.Feedback() != 0.5 {
		t.Errorf("Feedback() = %v, want 0.5", inv.Feedback())
	}

	inv.ResetFeedback()
	if inv.Feedback() != 0 {
		t.Errorf("Feedback() after reset = %v, want 0", inv.Feedback())
	}
}

func TestInvoker_PositionalParameters(t *testing.T) {
	inv, ref, gov, _ := newTestInvoker(t,
		`function base(input, prev, remaining, a, b, c) return (a * b + c) / 10 end`,
		"base", false)

	if err := inv.store.ReplacePositional([]float64{0.5, 2.0, 0.7}); err != nil {
		t.Fatalf("ReplacePositional() unexpected error: %v", err)
	}

	out := inv.Process(ref, 0, 0)
	want := (0.5*2.0 + 0.7) / 10
	if out != want {
		t.Errorf("Process() = %v, want %v", out, want)
	}
	if gov.IsTripped() {
		t.Errorf("governor tripped: %s", gov.LastMessage())
	}
}

// In legacy mode the function always receives exactly four scalars after
// the fixed leading arguments, whether or not slots were set.
func TestInvoker_LegacyCalling(t *testing.T) {
	inv, ref, gov, _ := newTestInvoker(t, `
		function base(input, prev, remaining, p0, p1, p2, p3)
			assert(p0 ~= nil and p1 ~= nil and p2 ~= nil and p3 ~= nil)
			return (p0 + p1 + p2 + p3) / 10
		end
	`, "base", true)

	if err := inv.store.SetLegacySlot(1, 0.5); err != nil {
		t.Fatalf("SetLegacySlot() unexpected error: %v", err)
	}

	out := inv.Process(ref, 0, 0)
	if out != 0.05 {
		t.Errorf("Process() = %v, want 0.05", out)
	}
	if gov.IsTripped() {
		t.Errorf("governor tripped: %s", gov.LastMessage())
	}
}

func TestInvoker_NamedParametersVisible(t *testing.T) {
	inv, ref, gov, _ := newTestInvoker(t,
		`function base(input) return input * PARAMS.gain end`, "base", false)

	inv.store.SetNamed("gain", 0.5)

	out := inv.Process(ref, 1.0, 0)
	if out != 0.5 {
		t.Errorf("Process() = %v, want 0.5", out)
	}
	if gov.IsTripped() {
		t.Errorf("governor tripped: %s", gov.LastMessage())
	}

	// Sticky update takes effect on the next sample.
	inv.store.SetNamed("gain", 0.25)
	if out := inv.Process(ref, 1.0, 0); out != 0.25 {
		t.Errorf("Process() after update = %v, want 0.25", out)
	}
}

func TestInvoker_Clamp(t *testing.T) {
	tests := []struct {
		name string
		code string
		in   float64
		want float64
	}{
		{
			name: "above range clamps to 1",
			code: `function base(input) return 3.5 end`,
			want: 1.0,
		},
		{
			name: "below range clamps to -1",
			code: `function base(input) return -2.0 end`,
			want: -1.0,
		},
		{
			name: "in range passes through",
			code: `function base(input) return 0.9 end`,
			want: 0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ref, gov, _ := newTestInvoker(t, tt.code, "base", false)
			if got := inv.Process(ref, tt.in, 0); got != tt.want {
				t.Errorf("Process() = %v, want %v", got, tt.want)
			}
			if gov.IsTripped() {
				t.Error("governor tripped on a clampable result")
			}
			// The clamped value is the feedback for the next call, never
			// the raw result.
			if inv.Feedback() != tt.want {
				t.Errorf("Feedback() = %v, want %v", inv.Feedback(), tt.want)
			}
		})
	}
}

func TestInvoker_Faults(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{
			name: "runtime fault",
			code: `function base(input) error("boom") end`,
		},
		{
			name: "string return",
			code: `function base(input) return "loud" end`,
		},
		{
			name: "nil return",
			code: `function base(input) return nil end`,
		},
		{
			name: "no return",
			code: `function base(input) end`,
		},
		{
			name: "NaN return",
			code: `function base(input) return 0/0 end`,
		},
		{
			name: "Inf return",
			code: `function base(input) return math.huge end`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ref, gov, console := newTestInvoker(t, tt.code, "base", false)

			if out := inv.Process(ref, 1.0, 0); out != 0 {
				t.Errorf("Process() = %v, want silent output 0", out)
			}
			if !gov.IsTripped() {
				t.Fatal("governor not tripped by fault")
			}
			if len(console.errors) != 1 {
				t.Errorf("diagnostics emitted = %d, want exactly 1", len(console.errors))
			}

			// While faulted every call short-circuits to silence with no
			// further diagnostics.
			for i := 0; i < 8; i++ {
				if out := inv.Process(ref, 1.0, 0); out != 0 {
					t.Fatalf("Process() while faulted = %v, want 0", out)
				}
			}
			if len(console.errors) != 1 {
				t.Errorf("diagnostics after repeat calls = %d, want 1", len(console.errors))
			}
		})
	}
}

// A string-returning function trips the governor; calls return silence
// until an explicit successful rebind clears it.
func TestInvoker_RecoveryRequiresRebind(t *testing.T) {
	rt, err := engine.New(engine.Options{})
	if err != nil {
		t.Fatalf("engine.New() unexpected error: %v", err)
	}
	t.Cleanup(rt.Close)

	code := `
		function bad(input) return "nope" end
		function good(input) return input end
	`
	if err := rt.LoadString(code); err != nil {
		t.Fatalf("LoadString() unexpected error: %v", err)
	}

	console := &recordingConsole{}
	gov := NewGovernor(console)
	inv := NewInvoker(rt, params.NewStore(), gov, false)

	ref, err := rt.Bind("bad")
	if err != nil {
		t.Fatalf("Bind() unexpected error: %v", err)
	}

	if out := inv.Process(ref, 0.5, 0); out != 0 {
		t.Fatalf("Process() = %v, want 0", out)
	}
	if !gov.IsTripped() {
		t.Fatal("governor not tripped")
	}

	// Elapsed calls never clear the fault.
	for i := 0; i < 100; i++ {
		inv.Process(ref, 0.5, 0)
	}
	if !gov.IsTripped() {
		t.Fatal("governor cleared without rebind")
	}

	// Explicit successful rebind clears it.
	rt.Release(ref)
	ref, err = rt.Bind("good")
	if err != nil {
		t.Fatalf("Bind() unexpected error: %v", err)
	}
	gov.Clear()

	if out := inv.Process(ref, 0.5, 0); out != 0.5 {
		t.Errorf("Process() after rebind = %v, want 0.5", out)
	}
}

func TestInvoker_UnboundTrips(t *testing.T) {
	rt, err := engine.New(engine.Options{})
	if err != nil {
		t.Fatalf("engine.New() unexpected error: %v", err)
	}
	t.Cleanup(rt.Close)

	console := &recordingConsole{}
	gov := NewGovernor(console)
	inv := NewInvoker(rt, params.NewStore(), gov, false)

	if out := inv.Process(nil, 1.0, 0); out != 0 {
		t.Errorf("Process(nil ref) = %v, want 0", out)
	}
	if !gov.IsTripped() {
		t.Error("governor not tripped by missing binding")
	}
}
