// Package pipelineerr defines the error-kind taxonomy of spec §7 as
// sentinel values usable with errors.Is/errors.As, so the engine and
// scheduler can branch on kind rather than matching strings — the
// same wrapped-error idiom the teacher uses throughout
// internal/changes and internal/tools (fmt.Errorf("...: %w", err)),
// generalized with named sentinels because this engine has many more
// call sites that need to distinguish failure kinds programmatically.
package pipelineerr

import "errors"

// Sentinel kinds for the spec §7 categories: eight sentinels, with user
// and automated gate denial sharing ErrGateDenied (cancellation and
// capacity pressure are "not an error" per the spec but are still
// modeled here so callers can use the same errors.Is dispatch).
var (
	ErrGateDenied       = errors.New("gate denied")
	ErrCircuitBreaker   = errors.New("circuit breaker tripped")
	ErrTransient        = errors.New("transient remote failure")
	ErrSessionFailed    = errors.New("session error")
	ErrCancelled        = errors.New("cancelled")
	ErrCapacityPressure = errors.New("capacity pressure")
	ErrMalformedData    = errors.New("malformed data")
	ErrCycle            = errors.New("cycle insertion rejected")
)

// Kind classifies an error against the known sentinels, defaulting to
// the empty string for errors that don't carry one of these kinds.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrGateDenied):
		return "gate_denied"
	case errors.Is(err, ErrCircuitBreaker):
		return "circuit_breaker"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrSessionFailed):
		return "session_error"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrCapacityPressure):
		return "capacity_pressure"
	case errors.Is(err, ErrMalformedData):
		return "malformed_data"
	case errors.Is(err, ErrCycle):
		return "cycle"
	default:
		return ""
	}
}
