package luadsp

import "errors"

// Sentinel errors for the bridge's failure taxonomy.
// These errors enable reliable error classification using errors.Is().

var (
	// ErrNotBound indicates no DSP function is currently bound.
	ErrNotBound = errors.New("no dsp function bound")

	// ErrBadReturn indicates the script returned the wrong type or arity.
	ErrBadReturn = errors.New("dsp function must return one number")

	// ErrNonFinite indicates the script returned NaN or an infinity.
	ErrNonFinite = errors.New("dsp function returned a non-finite value")

	// ErrMalformedMessage indicates a control message that is neither a
	// positional burst, name/value pairs, nor a rebind followed by either.
	ErrMalformedMessage = errors.New("malformed parameter message")

	// ErrClosed indicates the unit has been closed.
	ErrClosed = errors.New("unit is closed")
)
