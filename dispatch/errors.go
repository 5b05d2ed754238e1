package dispatch

import (
	"fmt"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// NotFoundError is returned when invoking a name that has no endpoint.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "unknown function: " + e.Name
}

// ToErrorDetail implements errors.DetailedError.
func (e *NotFoundError) ToErrorDetail() *bridgeerrors.ErrorDetail {
	return &bridgeerrors.ErrorDetail{Message: e.Error(), Type: "exec", Code: "E117"}
}

// PanicError reports a panic recovered from an endpoint.
type PanicError struct {
	Function string
	Value    any
}

// NewPanicError creates a PanicError for a recovered panic value.
func NewPanicError(function string, panicValue any) *PanicError {
	return &PanicError{Function: function, Value: panicValue}
}

func (e *PanicError) Error() string {
	var msg string
	switch v := e.Value.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("function %s panicked: %s", e.Function, msg)
}

// Unwrap returns the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ToErrorDetail implements errors.DetailedError.
func (e *PanicError) ToErrorDetail() *bridgeerrors.ErrorDetail {
	return &bridgeerrors.ErrorDetail{Message: e.Error(), Type: "internal", Code: "panic"}
}
