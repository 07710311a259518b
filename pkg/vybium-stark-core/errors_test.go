package vybiumstarkcore

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEngineError(t *testing.T) {
	t.Run("matches by code", func(t *testing.T) {
		err := &EngineError{Code: ErrProofRejected, Message: "tampered"}
		if !errors.Is(err, &EngineError{Code: ErrProofRejected}) {
			t.Fatal("errors with the same code must match")
		}
		if errors.Is(err, &EngineError{Code: ErrMalformedProof}) {
			t.Fatal("errors with different codes must not match")
		}
	})

	t.Run("unwraps the cause", func(t *testing.T) {
		cause := fmt.Errorf("root cause")
		err := &EngineError{Code: ErrProofGeneration, Message: "outer", Cause: cause}
		if !errors.Is(err, cause) {
			t.Fatal("cause must be reachable through Unwrap")
		}
	})

	t.Run("message carries the cause", func(t *testing.T) {
		cause := fmt.Errorf("root cause")
		err := &EngineError{Code: ErrExecution, Message: "outer", Cause: cause}
		if !strings.Contains(err.Error(), "root cause") {
			t.Fatalf("message %q does not mention the cause", err.Error())
		}
		bare := &EngineError{Code: ErrExecution, Message: "outer"}
		if !strings.Contains(bare.Error(), "outer") {
			t.Fatalf("message %q does not carry the description", bare.Error())
		}
	})

	t.Run("does not match foreign errors", func(t *testing.T) {
		err := &EngineError{Code: ErrUnknown, Message: "x"}
		if errors.Is(err, fmt.Errorf("x")) {
			t.Fatal("engine errors must not match arbitrary errors")
		}
	})
}
