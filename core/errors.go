package core

import "errors"

// Stable error values. The strings are part of the telemetry/debug surface
// and must not change.
var (
	ErrInvalidChannelIndex = errors.New("invalid_channel_index")
	ErrInvalidInputChannel = errors.New("invalid_input_channel")
	ErrNullConfiguration   = errors.New("null_configuration")
	ErrConversionTimeout   = errors.New("conversion_timeout")
	ErrInvalidConfig       = errors.New("invalid_config")
	ErrTransmitTimeout     = errors.New("transmit_timeout")
)

// OpError records which operation failed, on which timer channel or
// converter slot, and why.
type OpError struct {
	Op    string
	Index int // channel or slot, -1 when the operation has none
	Err   error
}

func (e *OpError) Error() string {
	s := e.Op
	if e.Index >= 0 {
		s += "[" + itoa(e.Index) + "]"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op string, index int, err error) error {
	return &OpError{Op: op, Index: index, Err: err}
}
