// internal/lobby/errors.go
package lobby

import "errors"

// Sentinel errors for the session engine. Handlers map these onto HTTP
// status codes; everything else is treated as an internal fault.
var (
	// ErrNotFound covers missing lobbies, expired lobbies, join codes that
	// match nothing in waiting state, and any terminal-state exclusion.
	ErrNotFound = errors.New("lobby not found")

	// ErrForbidden means the caller is authenticated but not allowed to
	// perform this action (not the host, not a participant, not an admin).
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyHosting means the host already owns a waiting or active lobby.
	ErrAlreadyHosting = errors.New("host already has an open lobby")

	// ErrRouteNotFound means the referenced route does not exist.
	ErrRouteNotFound = errors.New("route not found")

	// ErrFull means the lobby is at maxParticipants.
	ErrFull = errors.New("lobby is full")

	// ErrConflict means the lobby is in the wrong state for the transition.
	ErrConflict = errors.New("conflicting lobby state")

	// ErrInvalidCode means the supplied join code is malformed.
	ErrInvalidCode = errors.New("invalid join code")

	// ErrCodeSpaceExhausted means code allocation ran out of attempts. This
	// only happens when the live session count approaches the code space and
	// indicates a capacity problem, not a caller mistake.
	ErrCodeSpaceExhausted = errors.New("join code space exhausted")
)
