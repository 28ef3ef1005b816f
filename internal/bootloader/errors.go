package bootloader

import (
	"errors"
)

// ErrBootLoaderNotFound is returned by the variant constructors when the
// guest does not carry their signature. Detect matches it with errors.Is
// to move on to the next variant.
var ErrBootLoaderNotFound = errors.New("boot loader not found")

// ConversionError is a fatal error for the current detection or enumeration
// call. Err, if set, is the underlying cause.
type ConversionError struct {
	Msg string
	Err error
}

func (e *ConversionError) Error() string {
	return e.Msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
