package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapPreservesKind(t *testing.T) {
	err := Wrap(ErrProviderTransient, "status %d", 503)
	if !errors.Is(err, ErrProviderTransient) {
		t.Fatalf("errors.Is lost the kind: %v", err)
	}
	if errors.Is(err, ErrProviderFatal) {
		t.Fatalf("wrong kind matched: %v", err)
	}
}

func TestWrapErrKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := WrapErr(ErrPreviewBuildFailed, cause)
	if !errors.Is(err, ErrPreviewBuildFailed) {
		t.Fatalf("kind lost")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
}

func TestWrapErrNilCause(t *testing.T) {
	if err := WrapErr(ErrResourceExhausted, nil); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("nil cause should return the kind itself")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Wrap(ErrProviderTransient, "x")) {
		t.Error("transient should be retryable")
	}
	if !Retryable(ErrProviderUnavailable) {
		t.Error("unavailable should be retryable via fallback")
	}
	if Retryable(Wrap(ErrProviderFatal, "x")) {
		t.Error("fatal should not be retryable")
	}
}
