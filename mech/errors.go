package mech

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, distinguished by identity rather than a
// source-language exception hierarchy. Wrap these with fmt.Errorf("...: %w")
// at call sites that need extra context; callers should match with
// errors.Is.
var (
	// ErrDeviceNotFound means no compatible analyser device could be
	// opened. Fatal for the session: the caller must obtain a new device.
	ErrDeviceNotFound = errors.New("mech: device not found")

	// ErrDeviceError is an I/O or configuration failure mid-capture.
	// Recoverable by Orchestrator.Clear followed by a fresh Orchestrator.
	ErrDeviceError = errors.New("mech: device error")

	// ErrCaptureTimeout means no (more) state-change sample arrived within
	// the allotted time.
	ErrCaptureTimeout = errors.New("mech: capture timeout")

	// ErrDecodeError means a raw sample buffer was malformed (odd byte
	// count, truncated batch).
	ErrDecodeError = errors.New("mech: malformed sample batch")
)

// TaskTimeoutError wraps ErrCaptureTimeout to name which task, in a
// CaptureTasks call, failed to complete in time.
type TaskTimeoutError struct {
	Index int
	Err   error
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("mech: capture task %d timed out: %v", e.Index, e.Err)
}

func (e *TaskTimeoutError) Unwrap() error { return e.Err }

func newTaskTimeout(index int) error {
	return &TaskTimeoutError{Index: index, Err: ErrCaptureTimeout}
}
