package vision

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTransientClassification(t *testing.T) {
	base := errors.New("read timeout")

	if !IsTransient(Transient(base)) {
		t.Error("wrapped error should be transient")
	}
	if !IsTransient(fmt.Errorf("capture: %w", Transient(base))) {
		t.Error("transient should survive further wrapping")
	}
	if IsTransient(base) {
		t.Error("plain error should not be transient")
	}
	if !errors.Is(Transient(base), base) {
		t.Error("Transient should unwrap to the underlying error")
	}
}

func TestStubSourceRespectsCancellation(t *testing.T) {
	s := NewStubSource(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStubSourceProducesZeroCounts(t *testing.T) {
	s := NewStubSource(time.Millisecond)
	det, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if det.PersonCount != 0 {
		t.Errorf("stub should report zero people, got %d", det.PersonCount)
	}
}
