package models

import (
	"fmt"
	"time"
)

// ConfigurationError reports missing or inconsistent scan configuration:
// absent metadata keys, unknown axes, ambiguous camera roles. It is always
// fatal and is raised before any buffer is allocated.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MalformedRecordError reports a single record row that could not be parsed.
// Callers skip the row and continue with the stream.
type MalformedRecordError struct {
	Line   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record on line %d: %s", e.Line, e.Reason)
}

// ReconstructionError is fatal for one reconstruction session, e.g. a record
// header that does not match the expected schema.
type ReconstructionError struct {
	Reason string
	Err    error
}

func (e *ReconstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconstruction error: %s: %v", e.Reason, e.Err)
	}
	return "reconstruction error: " + e.Reason
}

func (e *ReconstructionError) Unwrap() error { return e.Err }

// TimeoutError reports an acquisition process that ignored a cancellation
// request for the whole grace period and had to be terminated.
type TimeoutError struct {
	Process     string
	PID         int
	GracePeriod time.Duration

	// TerminateErr is set when forced termination itself failed
	TerminateErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("acquisition process %s (pid %d) did not exit within %v of the cancel request; terminated",
		e.Process, e.PID, e.GracePeriod)
	if e.TerminateErr != nil {
		msg += fmt.Sprintf(" (terminate failed: %v)", e.TerminateErr)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.TerminateErr }

// Guidance returns operator instructions for finding a stuck acquisition
// process.
func (e *TimeoutError) Guidance() string {
	return fmt.Sprintf("Check the process list for %s (pid %d); it may still hold the stages or cameras.",
		e.Process, e.PID)
}
