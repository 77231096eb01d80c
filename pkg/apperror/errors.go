// Package apperror defines the error taxonomy shared by the API and its Go client.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Message keys resolved by the localisation bundle.
const (
	KeyNetwork         = "errors.network"
	KeyHTTP            = "errors.http"
	KeyValidation      = "errors.validation"
	KeyInvalidArgument = "errors.invalid_argument"
	KeyPartialFailure  = "errors.partial_failure"
	KeyUnexpected      = "errors.unexpected"
)

// MessageKeyer is implemented by errors that map onto a localised message.
type MessageKeyer interface {
	MessageKey() string
}

// NetworkError reports a transport-level failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MessageKey implements MessageKeyer.
func (e *NetworkError) MessageKey() string { return KeyNetwork }

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Status int
	// Message carries the server supplied message, if any.
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! Status: %d", e.Status)
}

// MessageKey implements MessageKeyer.
func (e *HTTPError) MessageKey() string { return KeyHTTP }

// ValidationError reports a malformed payload, e.g. an audit entry referencing
// zero or two artifacts.
type ValidationError struct {
	Field  string
	Reason string
	// Key overrides the default message key when set.
	Key string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// MessageKey implements MessageKeyer.
func (e *ValidationError) MessageKey() string {
	if e.Key != "" {
		return e.Key
	}
	return KeyValidation
}

// InvalidArgumentError reports a rejected call argument such as a page number below one.
type InvalidArgumentError struct {
	Argument string
	Value    interface{}
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "invalid value"
	}
	return fmt.Sprintf("invalid argument %s=%v: %s", e.Argument, e.Value, reason)
}

// MessageKey implements MessageKeyer.
func (e *InvalidArgumentError) MessageKey() string { return KeyInvalidArgument }

// PartialFailureError reports a multi-call operation that stopped half way.
// Completed lists the steps that were applied before Failed broke.
type PartialFailureError struct {
	Operation string
	Completed []string
	Failed    string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s partially applied (completed: [%s], failed: %s): %v",
		e.Operation, strings.Join(e.Completed, ", "), e.Failed, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// MessageKey implements MessageKeyer.
func (e *PartialFailureError) MessageKey() string { return KeyPartialFailure }

// NewValidation builds a ValidationError.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NewInvalidArgument builds an InvalidArgumentError.
func NewInvalidArgument(argument string, value interface{}, reason string) *InvalidArgumentError {
	return &InvalidArgumentError{Argument: argument, Value: value, Reason: reason}
}

// MessageKeyOf returns the message key carried by err or KeyUnexpected.
func MessageKeyOf(err error) string {
	var keyer MessageKeyer
	if errors.As(err, &keyer) {
		if key := strings.TrimSpace(keyer.MessageKey()); key != "" {
			return key
		}
	}
	return KeyUnexpected
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsInvalidArgument reports whether err is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var target *InvalidArgumentError
	return errors.As(err, &target)
}
