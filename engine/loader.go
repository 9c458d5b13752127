package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LoadFile executes a script file's top-level code under protected
// execution. A parse or runtime error is returned as a diagnostic wrapped
// in ErrLoadFailed and leaves prior interpreter state in place.
//
// A successful load bumps the load generation: every FuncRef bound before
// the load stops validating and must be re-acquired with Bind.
func (r *Runtime) LoadFile(path string) error {
	if r.closed {
		return ErrRuntimeClosed
	}

	logrus.WithFields(logrus.Fields{
		"function": "Runtime.LoadFile",
		"path":     path,
	}).Info("Loading script file")

	if err := r.l.DoFile(path); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Runtime.LoadFile",
			"path":     path,
			"error":    err.Error(),
		}).Error("Script file load failed")
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	r.generation++
	return nil
}

// LoadString executes inline source text under protected execution.
// Semantics match LoadFile: diagnostics on failure, generation bump on
// success.
func (r *Runtime) LoadString(code string) error {
	if r.closed {
		return ErrRuntimeClosed
	}

	if err := r.l.DoString(code); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Runtime.LoadString",
			"error":    err.Error(),
		}).Error("Script source load failed")
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	r.generation++
	return nil
}
