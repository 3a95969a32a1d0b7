package overlay

import (
	"errors"
	"fmt"
)

var (
	// ErrFormatMismatch reports a JSON token whose kind does not fit the
	// target shape.
	ErrFormatMismatch = errors.New("overlay: format mismatch")
	// ErrUnknownVariant reports a variant name the enum does not declare.
	ErrUnknownVariant = errors.New("overlay: unknown variant")
	// ErrMalformedVariant reports an enum object without exactly one key, a
	// data variant given as a bare name, or an incomplete payload.
	ErrMalformedVariant = errors.New("overlay: malformed variant")
	// ErrLengthMismatch reports a tuple or array with the wrong arity.
	ErrLengthMismatch = errors.New("overlay: length mismatch")

	// ErrPathNotFound reports a lookup path that does not resolve.
	ErrPathNotFound = errors.New("overlay: path not found")
)

// DecodeError describes a failure to apply a JSON document onto an overlay.
type DecodeError struct {
	// Path is the dotted location of the failure, empty for the root.
	Path string
	// Kind is one of the Err* sentinels.
	Kind   error
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	location := e.Path
	if location == "" {
		location = "<root>"
	}
	msg := fmt.Sprintf("%v at %s", e.Kind, location)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error kind.
func (e *DecodeError) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == e.Kind
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
