package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLaunchFailure  = errors.New("failed to execute python script")
	ErrScriptFailure  = errors.New("python script failed")
	ErrStreamRead     = errors.New("failed to read python output")
	ErrDelivery       = errors.New("failed to deliver python output")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInvalidTopic   = errors.New("invalid topic")
	ErrNotConfigured  = errors.New("notification client not configured")
	ErrReportReported = errors.New("report script reported an error")
)

// LaunchError means the interpreter process could not be started at all.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%v: %v", ErrLaunchFailure, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Is(target error) bool { return target == ErrLaunchFailure }

// ScriptError means the script ran and exited with a non-zero status.
// Stderr holds whatever diagnostic text was captured.
type ScriptError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ScriptError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	switch {
	case stderr != "":
		return fmt.Sprintf("%v: %s", ErrScriptFailure, stderr)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", ErrScriptFailure, e.Err)
	default:
		return fmt.Sprintf("%v: exit status %d", ErrScriptFailure, e.ExitCode)
	}
}

func (e *ScriptError) Unwrap() error { return e.Err }

func (e *ScriptError) Is(target error) bool { return target == ErrScriptFailure }

type StreamReadError struct {
	Err error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("%v: %v", ErrStreamRead, e.Err)
}

func (e *StreamReadError) Unwrap() error { return e.Err }

func (e *StreamReadError) Is(target error) bool { return target == ErrStreamRead }

// DeliveryError means the line listener rejected a line.
type DeliveryError struct {
	Line string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%v: %v", ErrDelivery, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value: %v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Kind returns a short machine-readable name for a runner failure, or
// "internal" when err is not one of the runner failure kinds.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrLaunchFailure):
		return "launch_failure"
	case errors.Is(err, ErrScriptFailure):
		return "script_failure"
	case errors.Is(err, ErrStreamRead):
		return "stream_read_failure"
	case errors.Is(err, ErrDelivery):
		return "delivery_failure"
	default:
		return "internal"
	}
}
