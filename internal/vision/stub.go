package vision

import (
	"context"
	"time"
)

// StubSource is the placeholder wired in by default: it produces zero-count
// detections at the given interval and never fails. The real analysis routine
// replaces it behind the same SourceFactory.
type StubSource struct {
	interval time.Duration
}

func NewStubSource(interval time.Duration) *StubSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &StubSource{interval: interval}
}

// StubFactory returns a SourceFactory producing StubSources regardless of URI.
func StubFactory(interval time.Duration) SourceFactory {
	return func(uri string) (Source, error) {
		return NewStubSource(interval), nil
	}
}

func (s *StubSource) Next(ctx context.Context) (Detection, error) {
	select {
	case <-ctx.Done():
		return Detection{}, ctx.Err()
	case <-time.After(s.interval):
		return Detection{PersonCount: 0, InferenceTime: 0}, nil
	}
}

func (s *StubSource) Close() error { return nil }
