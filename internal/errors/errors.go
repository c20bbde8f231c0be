// Package errors provides structured error types for lodeb.
// Every error carries a machine-readable code and, where useful, a hint the
// UI can show so the user knows how to correct course.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of error for programmatic handling
type ErrorCode string

const (
	// Configuration errors (persisted session file)
	CodeConfigNotFound    ErrorCode = "CONFIG_NOT_FOUND"
	CodeConfigInvalid     ErrorCode = "CONFIG_INVALID"
	CodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"

	// Target/process preparation errors
	CodeLoadFailed   ErrorCode = "LOAD_FAILED"
	CodeLaunchFailed ErrorCode = "LAUNCH_FAILED"

	// Engine errors
	CodeEngineRejected    ErrorCode = "ENGINE_REJECTED"
	CodeStepFailed        ErrorCode = "STEP_FAILED"
	CodeProcessTerminated ErrorCode = "PROCESS_TERMINATED"
	CodeAdapterNotFound   ErrorCode = "ADAPTER_NOT_FOUND"
	CodeDAPTimeout        ErrorCode = "DAP_TIMEOUT"

	// Request errors
	CodeNoTarget       ErrorCode = "NO_TARGET"
	CodeNoProcess      ErrorCode = "NO_PROCESS"
	CodeNotStopped     ErrorCode = "NOT_STOPPED"
	CodeCommandPending ErrorCode = "COMMAND_PENDING"
	CodeKillPending    ErrorCode = "KILL_PENDING"

	// Parameter errors
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
)

// DebugError is a structured error type that includes a hint on how to
// recover from the failure.
type DebugError struct {
	// Code is a machine-readable error category
	Code ErrorCode `json:"code"`

	// Message is a human-readable description of what went wrong
	Message string `json:"message"`

	// Hint provides actionable guidance on how to fix the error
	Hint string `json:"hint,omitempty"`

	// Details contains additional context (e.g., the location, the command)
	Details map[string]interface{} `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *DebugError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Hint != "" {
		sb.WriteString(" | Hint: ")
		sb.WriteString(e.Hint)
	}

	return sb.String()
}

// Unwrap returns the underlying error for error chaining
func (e *DebugError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *DebugError) WithDetails(key string, value interface{}) *DebugError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *DebugError) WithCause(err error) *DebugError {
	e.Cause = err
	return e
}

// Is reports whether err (or anything it wraps) is a DebugError with the given code
func Is(err error, code ErrorCode) bool {
	var de *DebugError
	for err != nil {
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Cause
	}
	return false
}

// CodeOf returns the code of the outermost DebugError in err's chain, or ""
func CodeOf(err error) ErrorCode {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// --- Configuration Errors ---

// ConfigNotFound creates an error for a missing persisted session file
func ConfigNotFound(path string, err error) *DebugError {
	return &DebugError{
		Code:    CodeConfigNotFound,
		Message: fmt.Sprintf("session file '%s' not found", path),
		Hint:    "Set the executable path and working directory; the file is written on the next change.",
		Cause:   err,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// ConfigInvalid creates an error for a session file that cannot be parsed
func ConfigInvalid(path string, err error) *DebugError {
	return &DebugError{
		Code:    CodeConfigInvalid,
		Message: fmt.Sprintf("session file '%s' is invalid: %v", path, err),
		Hint:    "The file must be a JSON object with 'exe_params' and an optional 'source_file_path'.",
		Cause:   err,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// SourceUnavailable creates an error for a source file that cannot be read
func SourceUnavailable(path string, err error) *DebugError {
	return &DebugError{
		Code:    CodeSourceUnavailable,
		Message: fmt.Sprintf("could not read source file '%s': %v", path, err),
		Hint:    "The file may have moved. Open it again from its new location.",
		Cause:   err,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// --- Target and Process Errors ---

// LoadFailed creates an error when the engine cannot prepare the target
func LoadFailed(exePath string, err error) *DebugError {
	return &DebugError{
		Code:    CodeLoadFailed,
		Message: fmt.Sprintf("failed to load target '%s': %v", exePath, err),
		Hint:    "Check that the executable path exists, is a regular file, and that the working directory is correct.",
		Cause:   err,
		Details: map[string]interface{}{
			"exePath": exePath,
		},
	}
}

// LaunchFailed creates an error when the engine cannot start the process
func LaunchFailed(exePath string, err error) *DebugError {
	return &DebugError{
		Code:    CodeLaunchFailed,
		Message: fmt.Sprintf("failed to launch '%s': %v", exePath, err),
		Hint:    "Ensure the debug adapter is installed (lldb-dap, gdb 14.1+ or dlv) and the program runs outside the debugger.",
		Cause:   err,
		Details: map[string]interface{}{
			"exePath": exePath,
		},
	}
}

// AdapterNotFound creates an error for an unknown or missing debug adapter
func AdapterNotFound(kind string, supported []string) *DebugError {
	return &DebugError{
		Code:    CodeAdapterNotFound,
		Message: fmt.Sprintf("no debug adapter available for '%s'", kind),
		Hint:    fmt.Sprintf("Supported adapters are: %s. Set 'adapter' in the configuration.", strings.Join(supported, ", ")),
		Details: map[string]interface{}{
			"adapter":   kind,
			"supported": supported,
		},
	}
}

// DAPTimeout creates an error for DAP timeouts
func DAPTimeout(operation string, timeoutSeconds int) *DebugError {
	return &DebugError{
		Code:    CodeDAPTimeout,
		Message: fmt.Sprintf("%s timed out after %d seconds", operation, timeoutSeconds),
		Hint:    "The debug adapter did not answer. It may have crashed; kill the process and start it again.",
		Details: map[string]interface{}{
			"operation":      operation,
			"timeoutSeconds": timeoutSeconds,
		},
	}
}

// --- Engine Errors ---

// EngineRejected creates an error for a request the engine refused
func EngineRejected(operation string, reason string, err error) *DebugError {
	return &DebugError{
		Code:    CodeEngineRejected,
		Message: fmt.Sprintf("engine rejected %s: %s", operation, reason),
		Hint:    "Ensure the file belongs to the target and the line contains executable code (not comments or blank lines).",
		Cause:   err,
		Details: map[string]interface{}{
			"operation": operation,
			"reason":    reason,
		},
	}
}

// BreakpointRejected is EngineRejected specialised for a source location
func BreakpointRejected(path string, line int, reason string, err error) *DebugError {
	return EngineRejected("breakpoint", fmt.Sprintf("%s:%d: %s", path, line, reason), err).
		WithDetails("path", path).
		WithDetails("line", line)
}

// StepFailed creates an error for a failed execution-control command
func StepFailed(command string, err error) *DebugError {
	return &DebugError{
		Code:    CodeStepFailed,
		Message: fmt.Sprintf("%s failed: %v", command, err),
		Hint:    "The process was torn down. Start it again to continue debugging.",
		Cause:   err,
		Details: map[string]interface{}{
			"command": command,
		},
	}
}

// ProcessTerminated creates an error describing a process that went away
func ProcessTerminated(exitCode int) *DebugError {
	return &DebugError{
		Code:    CodeProcessTerminated,
		Message: fmt.Sprintf("process exited with code %d", exitCode),
		Details: map[string]interface{}{
			"exitCode": exitCode,
		},
	}
}

// --- Request Errors ---

// NoTarget creates an error for operations that need a loaded target
func NoTarget(operation string) *DebugError {
	return &DebugError{
		Code:    CodeNoTarget,
		Message: fmt.Sprintf("%s requires a loaded target", operation),
		Hint:    "Load the target first.",
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NoProcess creates an error for operations that need a running process
func NoProcess(operation string) *DebugError {
	return &DebugError{
		Code:    CodeNoProcess,
		Message: fmt.Sprintf("%s requires a started process", operation),
		Hint:    "Start the process first.",
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NotStopped creates an error for commands that need a stopped process
func NotStopped(operation string, status string) *DebugError {
	return &DebugError{
		Code:    CodeNotStopped,
		Message: fmt.Sprintf("%s requires a stopped process (process is %s)", operation, status),
		Hint:    "Wait for the process to stop at a breakpoint, or kill it.",
		Details: map[string]interface{}{
			"operation": operation,
			"status":    status,
		},
	}
}

// CommandPending creates an error when a command is already outstanding
func CommandPending(requested, pending string) *DebugError {
	return &DebugError{
		Code:    CodeCommandPending,
		Message: fmt.Sprintf("cannot request %s while %s is pending", requested, pending),
		Hint:    "Only one execution-control command may be outstanding at a time.",
		Details: map[string]interface{}{
			"requested": requested,
			"pending":   pending,
		},
	}
}

// KillPending creates an error for commands issued after a kill request
func KillPending(requested string) *DebugError {
	return &DebugError{
		Code:    CodeKillPending,
		Message: fmt.Sprintf("cannot request %s: the process is being killed", requested),
		Details: map[string]interface{}{
			"requested": requested,
		},
	}
}

// --- Parameter Errors ---

// MissingParameter creates an error for missing required parameters
func MissingParameter(paramName, description string) *DebugError {
	return &DebugError{
		Code:    CodeMissingParameter,
		Message: fmt.Sprintf("required parameter '%s' is missing", paramName),
		Hint:    description,
		Details: map[string]interface{}{
			"parameter": paramName,
		},
	}
}

// InvalidParameter creates an error for invalid parameter values
func InvalidParameter(paramName string, value interface{}, expected string) *DebugError {
	return &DebugError{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid value for parameter '%s': %v", paramName, value),
		Hint:    fmt.Sprintf("Expected: %s", expected),
		Details: map[string]interface{}{
			"parameter": paramName,
			"value":     value,
			"expected":  expected,
		},
	}
}

// --- Helper for wrapping generic errors ---

// Wrap wraps a generic error with context
func Wrap(code ErrorCode, message string, hint string, err error) *DebugError {
	return &DebugError{
		Code:    code,
		Message: message,
		Hint:    hint,
		Cause:   err,
	}
}

// FromError creates a DebugError from a generic error, attempting to preserve any existing structure
func FromError(err error) *DebugError {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de
	}
	return &DebugError{
		Code:    "UNKNOWN_ERROR",
		Message: err.Error(),
		Cause:   err,
	}
}
