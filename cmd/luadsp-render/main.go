// Command luadsp-render renders a Lua DSP script offline.
//
// It drives a processing unit with a generated test signal for a fixed
// duration and writes the output as little-endian int16 PCM, which makes
// script behavior auditable outside a real-time host:
//
//	luadsp-render -config render.toml -o out.pcm
//
// The TOML config names the script, the function, the format, and the
// initial parameter state:
//
//	script      = "ringmod.lua"
//	function    = "base"
//	sample_rate = 48000
//	duration    = 2.0
//	input       = "sine"   # or "silence", "impulse"
//	input_freq  = 440.0
//	positional  = [0.5, 2.0]
//
//	[named]
//	gain = 0.8
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/soundctl/luadsp"
)

// renderConfig is the TOML-mapped render description.
type renderConfig struct {
	Script     string             `toml:"script"`
	Function   string             `toml:"function"`
	SampleRate float64            `toml:"sample_rate"`
	VectorSize int                `toml:"vector_size"`
	Duration   float64            `toml:"duration"`
	Input      string             `toml:"input"`
	InputFreq  float64            `toml:"input_freq"`
	Legacy     bool               `toml:"legacy_calling"`
	Positional []float64          `toml:"positional"`
	Named      map[string]float64 `toml:"named"`
}

func main() {
	configPath := flag.String("config", "render.toml", "render configuration file")
	outPath := flag.String("o", "out.pcm", "output PCM file (s16le)")
	flag.Parse()

	cfg := renderConfig{
		Function:   "base",
		SampleRate: 48000,
		VectorSize: 64,
		Duration:   1.0,
		Input:      "sine",
		InputFreq:  440,
	}
	if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to read config")
	}
	if cfg.Script == "" {
		logrus.Fatal("config must name a script")
	}

	if err := render(cfg, *outPath); err != nil {
		logrus.WithError(err).Fatal("Render failed")
	}
}

func render(cfg renderConfig, outPath string) error {
	unit, err := luadsp.NewUnit(luadsp.Config{
		ScriptPath:    cfg.Script,
		FunctionName:  cfg.Function,
		SampleRate:    cfg.SampleRate,
		VectorSize:    cfg.VectorSize,
		LegacyCalling: cfg.Legacy,
	})
	if err != nil {
		return err
	}
	defer unit.Close()

	if !unit.IsBound() {
		return fmt.Errorf("function %q not bound, cannot render", cfg.Function)
	}

	if len(cfg.Positional) > 0 {
		if err := unit.Params().ReplacePositional(cfg.Positional); err != nil {
			return err
		}
	}
	for name, value := range cfg.Named {
		unit.Params().SetNamed(name, value)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	total := int(cfg.Duration * cfg.SampleRate)
	in := make([]float64, cfg.VectorSize)
	buf := make([]float64, cfg.VectorSize)
	pcm := make([]byte, cfg.VectorSize*2)

	logrus.WithFields(logrus.Fields{
		"script":      cfg.Script,
		"function":    cfg.Function,
		"sample_rate": cfg.SampleRate,
		"samples":     total,
		"input":       cfg.Input,
	}).Info("Rendering")

	clipped := 0
	for pos := 0; pos < total; pos += cfg.VectorSize {
		n := cfg.VectorSize
		if pos+n > total {
			n = total - pos
		}
		fillInput(cfg, in[:n], pos)
		unit.ProcessBuffer(in[:n], buf[:n])

		if unit.Governor().IsTripped() {
			return fmt.Errorf("unit faulted at sample %d: %s", pos, unit.Governor().LastMessage())
		}

		for i := 0; i < n; i++ {
			v := buf[i]
			if v >= 1.0 || v <= -1.0 {
				clipped++
			}
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*math.MaxInt16)))
		}
		if _, err := out.Write(pcm[:n*2]); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"samples": total,
		"clipped": clipped,
		"output":  outPath,
	}).Info("Render complete")

	return nil
}

// fillInput generates the test signal for one vector starting at sample
// offset pos.
func fillInput(cfg renderConfig, dst []float64, pos int) {
	switch cfg.Input {
	case "silence":
		for i := range dst {
			dst[i] = 0
		}
	case "impulse":
		for i := range dst {
			dst[i] = 0
		}
		if pos == 0 && len(dst) > 0 {
			dst[0] = 1
		}
	default: // sine
		w := 2 * math.Pi * cfg.InputFreq / cfg.SampleRate
		for i := range dst {
			dst[i] = math.Sin(w * float64(pos+i))
		}
	}
}
