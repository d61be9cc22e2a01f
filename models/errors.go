package models

import (
	"errors"
	"fmt"
)

// ErrInvalidArgs is matched by every construction error
var ErrInvalidArgs = errors.New("invalid step arguments")

// ArgsError reports that a variant rejected its initialization arguments
type ArgsError struct {
	Variant string
	Reason  string
}

func (e *ArgsError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidArgs, e.Variant, e.Reason)
}

func (e *ArgsError) Unwrap() error {
	return ErrInvalidArgs
}

// ErrArgs builds an ArgsError for the given variant
func ErrArgs(variant, format string, args ...any) error {
	return &ArgsError{Variant: variant, Reason: fmt.Sprintf(format, args...)}
}

type InterpolateError struct {
	Key   string
	Value any
}

func (e *InterpolateError) Error() string {
	return fmt.Sprintf("failed to interpolate value for key '%s': %v", e.Key, e.Value)
}

func ErrInterpolate(key string, value any) error {
	return &InterpolateError{Key: key, Value: value}
}
