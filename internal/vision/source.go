// Package vision defines the contract between the processing workers and the
// frame-analysis routine. The analysis itself lives outside this service;
// everything here is the boundary plus a placeholder implementation.
package vision

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Detection is the result of analysing one capture unit.
type Detection struct {
	// PersonCount is the number of people detected in the frame.
	PersonCount int
	// InferenceTime is how long the analysis of this frame took.
	InferenceTime time.Duration
	// Snapshot optionally carries an annotated JPEG of the frame.
	Snapshot []byte
}

// Source produces a potentially infinite sequence of detections from one
// device connection. Next blocks until a detection is available, the context
// is cancelled, or the connection fails.
//
// A TransientError return is retryable; any other error is fatal and the
// caller must treat the connection as dead.
type Source interface {
	Next(ctx context.Context) (Detection, error)
	Close() error
}

// SourceFactory opens a Source for the given connection URI (an RTSP URL for
// cameras, a camera address for rooms).
type SourceFactory func(uri string) (Source, error)

// TransientError wraps a capture failure that is safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient capture error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether err is a retryable capture error.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
