package params

import "errors"

var (
	// ErrTooManyPositional indicates a bulk replace exceeding MaxPositional.
	ErrTooManyPositional = errors.New("too many positional parameters")

	// ErrSlotOutOfRange indicates a legacy slot index outside 0..LegacySlots-1.
	ErrSlotOutOfRange = errors.New("legacy parameter slot out of range")
)
