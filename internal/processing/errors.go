package processing

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by a start when a worker for the device
	// is already registered. Starts are idempotent; this is a no-op signal,
	// not a failure.
	ErrAlreadyRunning = errors.New("processing already running")

	// ErrNotRunning is returned by a stop when no worker is registered for
	// the device.
	ErrNotRunning = errors.New("no processing running")

	// ErrDeviceInactive is returned by a start when the device's soft-enable
	// flag is off.
	ErrDeviceInactive = errors.New("device is not active")
)

// StartError wraps a failure to spawn a worker. The device has been marked
// offline by the time this is returned.
type StartError struct {
	Err error
}

func (e *StartError) Error() string { return fmt.Sprintf("start processing: %v", e.Err) }
func (e *StartError) Unwrap() error { return e.Err }
