package interview

import "errors"

// Sentinel errors for the engine's boundary. Rate-limit failures surface as
// ratelimit.ErrLimitExceeded, missing or foreign sessions as
// storage.ErrNotFound, lost update races as storage.ErrVersionConflict, and
// rejected summary output as *summary.ParseError.
var (
	// ErrOwnerUnresolved means the caller's identity could not be resolved;
	// no state is mutated.
	ErrOwnerUnresolved = errors.New("session ownership unresolved")

	// ErrSessionCompleted means the session accepts no further question
	// requests; the caller must start a new session.
	ErrSessionCompleted = errors.New("session already completed")

	// ErrInsufficientDepth means the transcript has fewer interviewer turns
	// than the minimum usable conversation depth.
	ErrInsufficientDepth = errors.New("insufficient transcript depth for summary")

	// ErrBackendUnavailable means the narrative backend call failed; the
	// transcript is left unchanged so the same turn can be retried.
	ErrBackendUnavailable = errors.New("narrative backend unavailable")
)
