package model

import (
	"errors"
	"fmt"
)

// Error kinds shared by the decoders, the classifier and the pipeline.
// Concrete errors wrap one of these so callers can test with errors.Is.
var (
	ErrMalformedInteger         = errors.New("malformed compact integer")
	ErrTruncatedField           = errors.New("truncated field")
	ErrUnresolvableCallBoundary = errors.New("unresolvable call boundary")
	ErrProvider                 = errors.New("provider error")
	ErrNotFound                 = errors.New("not found")
	ErrInvalidResponseShape     = errors.New("invalid response shape")
)

// FieldError reports a fixed-width field that runs past the end of the buffer.
type FieldError struct {
	Field  string
	Offset int
	Need   int
	Have   int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("truncated field %s at offset %d: need %d bytes, have %d", e.Field, e.Offset, e.Need, e.Have)
}

func (e *FieldError) Unwrap() error {
	return ErrTruncatedField
}

// ProviderError wraps a failed chain RPC call.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProvider, e.Err}
}

// NewProviderError returns nil when err is nil and err itself when it
// already is a provider error.
func NewProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Op: op, Err: err}
}
