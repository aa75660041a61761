package codegen

import "errors"

// Sentinel errors, per the three fatal-error kinds the code generator can
// raise. None of them are retryable: each indicates either malformed input
// or a macro-design bug, never a transient condition.
var (
	// ErrMalformedIR is returned when an instruction's operand pattern
	// cannot be matched: an array used as a value, an undeclared symbol,
	// or similar.
	ErrMalformedIR = errors.New("codegen: malformed IR")

	// ErrRegisterPoolExhausted is returned when select() cannot find a
	// register outside the current instruction's selection set.
	ErrRegisterPoolExhausted = errors.New("codegen: register pool exhausted")

	// ErrAddressOverflow is returned when a computed effective address
	// would be negative and so is not representable.
	ErrAddressOverflow = errors.New("codegen: address overflow")
)
