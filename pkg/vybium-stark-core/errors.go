package vybiumstarkcore

import "fmt"

// ErrorCode represents a Vybium STARK core error code
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrCompilation represents a program compilation error
	ErrCompilation

	// ErrExecution represents a program execution error
	ErrExecution

	// ErrProofGeneration represents a proof generation error
	ErrProofGeneration

	// ErrProofRejected means the proof failed verification. This is the
	// expected outcome for a tampered proof, not a malfunction.
	ErrProofRejected

	// ErrMalformedProof represents a structurally invalid proof
	ErrMalformedProof

	// ErrInvalidInput represents an invalid input error
	ErrInvalidInput
)

// EngineError represents a Vybium STARK core error
type EngineError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vybium-stark-core error [%d]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("vybium-stark-core error [%d]: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func rejected(message string, cause error) *EngineError {
	return &EngineError{Code: ErrProofRejected, Message: message, Cause: cause}
}
