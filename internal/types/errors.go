package types

import "fmt"

// ValidationError reports malformed or missing policy/evidence input.
// Always recoverable by rejecting the request with a client-error status.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// EvidenceUnavailable reports that an evidence-request tool could not reach
// the external party. The engine treats it as "no new information".
type EvidenceUnavailable struct {
	Side     string
	Question string
	Cause    error
}

func (e *EvidenceUnavailable) Error() string {
	return fmt.Sprintf("evidence unavailable from %s: %v", e.Side, e.Cause)
}

func (e *EvidenceUnavailable) Unwrap() error { return e.Cause }

// EngineFailure reports a reasoning-backend error, timeout, or
// out-of-contract output. Not retried; crosses component boundaries unchanged.
type EngineFailure struct {
	Stage string
	Cause error
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("engine failure at %s: %v", e.Stage, e.Cause)
}

func (e *EngineFailure) Unwrap() error { return e.Cause }

// FormatError reports a terminal decision missing required wire fields.
// Never silently patched.
type FormatError struct {
	Field string
}

func (e *FormatError) Error() string {
	return "format failed: missing required field " + e.Field
}
