package engine

import "errors"

// Sentinel errors for engine operations.
// These errors enable reliable error classification using errors.Is().

var (
	// ErrRuntimeClosed indicates the interpreter has been destroyed.
	ErrRuntimeClosed = errors.New("script runtime is closed")

	// ErrLoadFailed indicates source text failed to parse or execute.
	ErrLoadFailed = errors.New("script load failed")

	// ErrNotFunction indicates a bind target is missing or not callable.
	ErrNotFunction = errors.New("global is not a function")

	// ErrStaleRef indicates a function reference predates the last reload.
	ErrStaleRef = errors.New("function reference is stale")

	// ErrCallFault indicates a runtime fault inside a script call.
	ErrCallFault = errors.New("script call fault")
)
