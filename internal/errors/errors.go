// Package errors provides structured error types for pilot.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for pilot.
const (
	// Planning errors
	CodePlanInvalid    Code = "PLAN_INVALID"
	CodePlanningFailed Code = "PLANNING_FAILED"

	// Verdict codec errors
	CodeVerdictMalformed Code = "VERDICT_MALFORMED"
	CodeVerdictSchema    Code = "VERDICT_SCHEMA"

	// Oracle errors
	CodeOracleUnavailable Code = "ORACLE_UNAVAILABLE"
	CodeOracleTimeout     Code = "ORACLE_TIMEOUT"
	CodeDebugBudget       Code = "DEBUG_BUDGET_EXCEEDED"

	// Session errors
	CodeStateInvariant   Code = "STATE_INVARIANT"
	CodeSessionCancelled Code = "SESSION_CANCELLED"
	CodeSessionRejected  Code = "SESSION_REJECTED"
	CodeSessionNotFound  Code = "SESSION_NOT_FOUND"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigMissing Code = "CONFIG_MISSING"
)

// PilotError is the structured error type for pilot.
type PilotError struct {
	Code    Code   `json:"code"`
	What    string `json:"what"`
	Why     string `json:"why,omitempty"`
	Fix     string `json:"fix,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *PilotError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *PilotError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *PilotError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	if e.Excerpt != "" {
		b.WriteString("\n\nExcerpt: ")
		b.WriteString(e.Excerpt)
	}
	return b.String()
}

// MarshalJSON implements json.Marshaler.
func (e *PilotError) MarshalJSON() ([]byte, error) {
	type alias PilotError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a PilotError with the same code.
func (e *PilotError) Is(target error) bool {
	t, ok := target.(*PilotError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *PilotError) WithCause(err error) *PilotError {
	return &PilotError{
		Code:    e.Code,
		What:    e.What,
		Why:     e.Why,
		Fix:     e.Fix,
		Excerpt: e.Excerpt,
		Cause:   err,
	}
}

// --- Error constructors ---

// ErrPlanInvalid returns an error for a plan that violates structural rules.
func ErrPlanInvalid(reason string) *PilotError {
	return &PilotError{
		Code: CodePlanInvalid,
		What: "plan is invalid",
		Why:  reason,
		Fix:  "The plan must have unique task identifiers and an acyclic dependency graph",
	}
}

// ErrPlanningFailed returns an error when the planning call itself fails.
func ErrPlanningFailed(reason string) *PilotError {
	return &PilotError{
		Code: CodePlanningFailed,
		What: "planning failed",
		Why:  reason,
		Fix:  "Check oracle connectivity and credentials, then retry the request",
	}
}

// ErrVerdictMalformed returns an error when no JSON verdict is recoverable
// from oracle output. The excerpt is pre-truncated by the codec.
func ErrVerdictMalformed(excerpt string) *PilotError {
	return &PilotError{
		Code:    CodeVerdictMalformed,
		What:    "oracle verdict is not parseable",
		Why:     "No JSON object could be recovered from the oracle response",
		Excerpt: excerpt,
	}
}

// ErrVerdictSchema returns an error when a verdict parses as JSON but
// violates the wire contract.
func ErrVerdictSchema(reason, excerpt string) *PilotError {
	return &PilotError{
		Code:    CodeVerdictSchema,
		What:    "oracle verdict violates the schema",
		Why:     reason,
		Excerpt: excerpt,
	}
}

// ErrOracleUnavailable returns an error when the oracle cannot be reached.
func ErrOracleUnavailable() *PilotError {
	return &PilotError{
		Code: CodeOracleUnavailable,
		What: "oracle is not available",
		Why:  "Could not reach the reasoning service",
		Fix:  "Check network connectivity and the configured provider, model, and API key",
	}
}

// ErrOracleTimeout returns an error when an oracle call times out.
func ErrOracleTimeout(duration string) *PilotError {
	return &PilotError{
		Code: CodeOracleTimeout,
		What: "oracle call timed out",
		Why:  fmt.Sprintf("No response received after %s", duration),
		Fix:  "Increase the per-call timeout in config, or simplify the request",
	}
}

// ErrDebugBudget returns an error when a task exhausts its debug attempts.
func ErrDebugBudget(taskID string, attempts int) *PilotError {
	return &PilotError{
		Code: CodeDebugBudget,
		What: fmt.Sprintf("task %s failed after %d debug attempts", taskID, attempts),
		Why:  "Maximum debug attempts exceeded without a successful verdict",
		Fix:  "Inspect the session log entries, fix the underlying issue, and rerun",
	}
}

// ErrStateInvariant returns an error for a state transition that violates
// the session's invariants. These indicate caller bugs and are fatal.
func ErrStateInvariant(reason string) *PilotError {
	return &PilotError{
		Code: CodeStateInvariant,
		What: "session state invariant violated",
		Why:  reason,
	}
}

// ErrSessionCancelled returns the terminal cancellation error.
func ErrSessionCancelled() *PilotError {
	return &PilotError{
		Code: CodeSessionCancelled,
		What: "session cancelled",
		Why:  "Cancellation was requested while the session was running",
	}
}

// ErrSessionRejected returns an error when the approval gate rejects.
func ErrSessionRejected(reason string) *PilotError {
	return &PilotError{
		Code: CodeSessionRejected,
		What: "session rejected by approval gate",
		Why:  reason,
	}
}

// ErrSessionNotFound returns an error when a stored session doesn't exist.
func ErrSessionNotFound(id string) *PilotError {
	return &PilotError{
		Code: CodeSessionNotFound,
		What: fmt.Sprintf("session %s not found", id),
		Why:  "No stored session with this ID exists",
		Fix:  "Run 'pilot sessions' to list stored sessions",
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *PilotError {
	return &PilotError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .pilot/config.yaml and fix the invalid field",
	}
}

// ErrConfigMissing returns an error for missing configuration.
func ErrConfigMissing(field string) *PilotError {
	return &PilotError{
		Code: CodeConfigMissing,
		What: fmt.Sprintf("missing required configuration: %s", field),
		Why:  "This field is required but not set in configuration",
		Fix:  fmt.Sprintf("Add '%s' to .pilot/config.yaml or the matching PILOT_* variable", field),
	}
}

// AsPilotError attempts to convert an error to a PilotError.
// Returns nil if the error is not a PilotError.
func AsPilotError(err error) *PilotError {
	var perr *PilotError
	if As(err, &perr) {
		return perr
	}
	return nil
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool {
	return asError(err, target)
}

// asError implements errors.As behavior.
func asError(err error, target any) bool {
	if err == nil {
		return false
	}
	if perr, ok := err.(*PilotError); ok {
		if t, ok := target.(**PilotError); ok {
			*t = perr
			return true
		}
	}
	// Check unwrapped error
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return asError(unwrapper.Unwrap(), target)
	}
	return false
}

// Wrap wraps a generic error into a PilotError with unknown code.
func Wrap(err error, what string) *PilotError {
	return &PilotError{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
