// Package errors provides structured error handling for probemap
// operations. It defines error codes, error types, and utilities for
// creating and inspecting errors with scan context attached.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Scan errors.
	CodeInvalidRange       ErrorCode = "INVALID_RANGE"
	CodeScanFailed         ErrorCode = "SCAN_FAILED"
	CodeConnectionRefused  ErrorCode = "CONNECTION_REFUSED"
	CodeConnectionReset    ErrorCode = "CONNECTION_RESET"
	CodeNetworkUnreachable ErrorCode = "NETWORK_UNREACHABLE"

	// Resolution errors.
	CodeResolveFailed ErrorCode = "RESOLVE_FAILED"
)

// ScanError represents an error that occurred during scanning operations.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Port    uint16
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	switch {
	case e.Target != "" && e.Port > 0:
		return fmt.Sprintf("[%s] %s (target: %s, port: %d)", e.Code, e.Message, e.Target, e.Port)
	case e.Target != "":
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithTarget attaches target information to the error.
func (e *ScanError) WithTarget(target string) *ScanError {
	e.Target = target
	return e
}

// WithPort attaches the port the error occurred on.
func (e *ScanError) WithPort(port uint16) *ScanError {
	e.Port = port
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{Code: code, Message: message}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Cause: err}
}

// ResolveError represents a hostname resolution error.
type ResolveError struct {
	Code  ErrorCode
	Host  string
	Cause error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("[%s] unable to resolve %s", e.Code, e.Host)
	}
	return fmt.Sprintf("[%s] resolution failed", e.Code)
}

// Unwrap returns the underlying error.
func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// NewResolveError creates a resolution error for the given host.
func NewResolveError(host string, err error) *ResolveError {
	return &ResolveError{Code: CodeResolveFailed, Host: host, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{Code: code, Message: message}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{Code: code, Message: message, Cause: err}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ScanError:
		return e.Code
	case *ResolveError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable determines if an error indicates a retryable condition.
// The scan engine itself never retries; this classification is for
// callers that choose to.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeNetworkUnreachable, CodeConnectionReset:
		return true
	default:
		return false
	}
}

// IsFatal determines if an error should abort the scan as a whole. Only
// pre-dispatch validation qualifies.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeInvalidRange, CodeConfiguration, CodeValidation, CodeResolveFailed:
		return true
	default:
		return false
	}
}

// ErrInvalidRange creates an error for an invalid port range.
func ErrInvalidRange(minPort, maxPort int) *ScanError {
	return NewScanError(CodeInvalidRange,
		fmt.Sprintf("invalid port range %d-%d", minPort, maxPort))
}

// ErrScanTimeout creates an error for scan timeouts.
func ErrScanTimeout(target string) *ScanError {
	return NewScanError(CodeTimeout, "scan operation timed out").WithTarget(target)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "invalid configuration value", field, value)
}
