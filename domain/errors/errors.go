// Package errors provides the typed errors shared by the bridge, the command
// formatter and the reference editor.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
)

// Sentinel causes wrapped by ConfigError.
var (
	// ErrTooManyArguments is reported when arguments remain after every
	// handler ran and the proxy has no catch-all handler.
	ErrTooManyArguments = stdErrors.New("too many arguments")

	// ErrNoReachability is reported by a manual collection on a namespace
	// without a reachability generator.
	ErrNoReachability = stdErrors.New("no reachability predicate configured")

	// ErrUnknownOption is reported for an option key nobody declared.
	ErrUnknownOption = stdErrors.New("unknown option")
)

// ErrorDetail is the structured form of an error handed to scripts and to the
// CLI's JSON output.
type ErrorDetail struct {
	// Wrapped contains a wrapped error for error chains.
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Type categorizes the error: "config", "value", "exec" or "internal".
	Type string `json:"type"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

func (e *ErrorDetail) Error() string {
	return e.Message
}

// DetailedError is an interface for custom error types that can convert
// themselves to a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
func ToErrorDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}

	var e *ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// ConfigError represents a setup bug: a missing pipeline component, an
// unknown option key or an invalid setting.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error for '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *ErrorDetail {
	return &ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// ValueError represents an argument that fails a structural precondition.
type ValueError struct {
	Value  any
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value %#v: %s", e.Value, e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *ValueError) ToErrorDetail() *ErrorDetail {
	return &ErrorDetail{Message: e.Error(), Type: "value"}
}

// ExecError represents a failure reported by the execution substrate.
type ExecError struct {
	Err     error
	Command string
	Code    string // host error code such as "E492", optional
}

func (e *ExecError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %v (command: %s)", e.Code, e.Err, e.Command)
	}
	return fmt.Sprintf("failed to execute '%s': %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ExecError) ToErrorDetail() *ErrorDetail {
	return &ErrorDetail{Message: e.Error(), Type: "exec", Code: e.Code}
}

// NewConfigError wraps cause as a ConfigError for field.
func NewConfigError(field string, cause error) *ConfigError {
	return &ConfigError{Field: field, Err: cause}
}

// NewValueError creates a ValueError with a formatted reason.
func NewValueError(value any, format string, args ...any) *ValueError {
	return &ValueError{Value: value, Reason: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is or wraps a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return stdErrors.As(err, &ce)
}

// IsValue reports whether err is or wraps a ValueError.
func IsValue(err error) bool {
	var ve *ValueError
	return stdErrors.As(err, &ve)
}
