// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for every shyft command.
//
// PATTERN:
//   - Handlers return errors; they never print and return nil
//   - main decides how to display them (text or --json) and which code to exit with
//   - Errors from the transport, stream, query and history packages map onto
//     exit codes through errors.As, never through message matching

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/joshndala/shyft-rag-app/internal/config"
	"github.com/joshndala/shyft-rag-app/internal/history"
	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/stream"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage, arguments or an empty query
	ExitUsageError = 2
	// ExitNetworkError indicates the backend could not be reached or the
	// answer stream was lost
	ExitNetworkError = 4
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 6
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 7
	// ExitBackendError indicates the backend answered with an error payload
	ExitBackendError = 8
)

// ConnectionFailedMessage is shown when an answer cannot be streamed.
const ConnectionFailedMessage = "Connection error. Please try again."

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "upload", "history")
	Action  string // Action being performed (e.g., "send", "delete")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "file", "history entry")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NetworkError wraps a failure to reach the backend with the URL that was tried.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// ErrInvalidFormat creates an error for invalid format.
func ErrInvalidFormat(field, value, expected string) error {
	return NewValidationErrorWithExample(field, value, "invalid format", expected)
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w as text or, in JSON mode, as the response
// envelope with structured details.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		DisplayErrorJSON(w, command, err)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
	fmt.Fprintln(w)
}

// DisplayErrorJSON writes err as a failed JSONResponse whose data carries the
// error category.
func DisplayErrorJSON(w io.Writer, command string, err error) {
	details := map[string]interface{}{
		"error_type": errorType(err),
		"exit_code":  GetExitCode(err),
	}

	var ve *ValidationError
	var te *transport.TransportError
	var nf *NotFoundError
	switch {
	case errors.As(err, &ve):
		details["field"] = ve.Field
		details["value"] = ve.Value
		if ve.Example != "" {
			details["example"] = ve.Example
		}
	case errors.As(err, &te):
		details["operation"] = te.Op
		if te.StatusCode != 0 {
			details["status_code"] = te.StatusCode
		}
	case errors.As(err, &nf):
		details["resource"] = nf.Resource
		details["id"] = nf.ID
	}

	resp := NewJSONErrorResponse(command, err)
	resp.Data = details
	resp.Fprint(w)
}

func errorType(err error) string {
	var (
		ve  *ValidationError
		qve *query.ValidationError
		pe  *stream.PayloadError
		ce  *transport.ConnectionError
		te  *transport.TransportError
		ne  *NetworkError
		nf  *NotFoundError
		cfe config.ValidateErrors
		cme *CommandError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &qve):
		return "validation_error"
	case errors.As(err, &cfe):
		return "config_error"
	case errors.As(err, &nf), errors.Is(err, history.ErrNotFound):
		return "not_found_error"
	case errors.As(err, &pe):
		return "payload_error"
	case errors.As(err, &ce), errors.As(err, &ne):
		return "connection_error"
	case errors.As(err, &te):
		return "transport_error"
	case errors.As(err, &cme):
		return "command_error"
	}
	return "generic_error"
}

func errorHint(err error) string {
	switch GetExitCode(err) {
	case ExitNetworkError:
		return "Is the backend running? Check with 'shyft status' or set --server."
	case ExitConfigError:
		return "Fix the value with 'shyft config set KEY VALUE'."
	}
	return ""
}

// GetExitCode determines the exit code for an error:
//   - ExitUsageError (2): argument or empty-query validation
//   - ExitNetworkError (4): backend unreachable, stream refused or dropped, timeouts
//   - ExitNotFoundError (6): missing files, history entries, HTTP 404
//   - ExitConfigError (7): invalid configuration
//   - ExitBackendError (8): error payloads from the backend
//   - ExitGeneralError (1): all other errors
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	var queryErr *query.ValidationError
	if errors.As(err, &validationErr) || errors.As(err, &queryErr) {
		return ExitUsageError
	}

	var configErrs config.ValidateErrors
	if errors.As(err, &configErrs) {
		return ExitConfigError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) || errors.Is(err, history.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return ExitNotFoundError
	}

	var payloadErr *stream.PayloadError
	if errors.As(err, &payloadErr) {
		return ExitBackendError
	}

	var networkErr *NetworkError
	var connErr *transport.ConnectionError
	if errors.As(err, &networkErr) || errors.As(err, &connErr) {
		return ExitNetworkError
	}

	var transportErr *transport.TransportError
	if errors.As(err, &transportErr) {
		switch {
		case transportErr.Network():
			return ExitNetworkError
		case transportErr.StatusCode == http.StatusNotFound:
			return ExitNotFoundError
		default:
			return ExitBackendError
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ExitNetworkError
	}

	return ExitGeneralError
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
