package luadsp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUnitLifecycleIntegration walks a unit through the full control-flow
// a host exercises: construction from a script file, format change,
// parameter traffic, a script fault, and recovery through reload.
func TestUnitLifecycleIntegration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dsp.lua")

	script := `
function base(input, prev, remaining)
	return input / 2
end

function gainrider(input, prev, remaining)
	return input * PARAMS.gain
end
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	console := &recordingConsole{}
	unit, err := NewUnit(Config{
		ScriptPath: path,
		Console:    console,
	})
	require.NoError(t, err)
	defer unit.Close()

	require.True(t, unit.IsBound(), "default function should bind at construction")

	// Host announces the real format.
	unit.SetFormat(48000, 256)
	assert.Equal(t, 48000.0, unit.SampleRate())

	// Steady-state processing.
	out := make([]float64, 256)
	in := make([]float64, 256)
	for i := range in {
		in[i] = 1.0
	}
	unit.ProcessBuffer(in, out)
	for _, v := range out {
		assert.Equal(t, 0.5, v)
	}

	// Combined rebind+update message: switch function, set the sticky
	// named value it reads.
	require.NoError(t, unit.Dispatch([]Atom{
		Name("gainrider"), Name("gain"), Num(0.25),
	}))
	assert.Equal(t, "gainrider", unit.FunctionName())
	assert.Equal(t, 0.25, unit.ProcessSample(1.0))

	// Sticky update, last write wins, effective by the next sample.
	require.NoError(t, unit.Dispatch([]Atom{Name("gain"), Num(0.75)}))
	assert.Equal(t, 0.75, unit.ProcessSample(1.0))

	// Break the script on disk; reload keeps prior state on load failure.
	require.NoError(t, os.WriteFile(path, []byte(`function base(`), 0o644))
	assert.Error(t, unit.Reload())
	assert.Equal(t, 0.75, unit.ProcessSample(1.0), "prior program must survive a failed reload")

	// A fault silences the unit until a successful rebind.
	require.NoError(t, os.WriteFile(path, []byte(`
function base(input) return nil end
function gainrider(input) return input end
`), 0o644))
	require.NoError(t, unit.Reload())
	assert.Equal(t, 1.0, unit.ProcessSample(1.0))

	require.NoError(t, unit.BindFunction("base"))
	assert.Equal(t, 0.0, unit.ProcessSample(1.0), "nil return must yield silence")
	assert.True(t, unit.Governor().IsTripped())

	diagnostics := len(console.errors)
	for i := 0; i < 64; i++ {
		assert.Equal(t, 0.0, unit.ProcessSample(1.0))
	}
	assert.Len(t, console.errors, diagnostics, "faulted unit must not repeat diagnostics")

	// Recovery: explicit successful rebind clears the fault.
	require.NoError(t, unit.BindFunction("gainrider"))
	assert.False(t, unit.Governor().IsTripped())
	assert.Equal(t, 1.0, unit.ProcessSample(1.0))
}

// TestControlAudioConcurrencyIntegration drives parameter updates from a
// control goroutine while an audio goroutine processes, verifying the
// lock-free contract: no torn snapshots, no panics, updates visible.
func TestControlAudioConcurrencyIntegration(t *testing.T) {
	unit, _ := newTestUnit(t, `
function base(input, prev, remaining, a, b)
	local s = (a or 0) + (b or 0)
	return s / 1000000
end
`)
	require.True(t, unit.IsBound())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			v := float64(i)
			_ = unit.Params().ReplacePositional([]float64{v, v})
		}
	}()

	in := make([]float64, 64)
	out := make([]float64, 64)
	for i := 0; i < 200; i++ {
		unit.ProcessBuffer(in, out)
	}
	<-done

	assert.False(t, unit.Governor().IsTripped(), unit.Governor().LastMessage())
}
