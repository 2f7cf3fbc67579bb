// Package apperr defines the sentinel errors shared by the account store,
// question bank and session engine, and maps them to the wire statut codes
// the dispatcher sends back to clients.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a looked-up session, account or question does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned for missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller is authenticated but not permitted
	// to perform the action (non-creator starting a session, joining a full session).
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed or out-of-range request fields.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a pseudo is already registered.
	ErrConflict = errors.New("conflict")

	// ErrCapacity is returned when a bounded table (accounts, sessions) is full.
	ErrCapacity = errors.New("at capacity")

	// ErrStale marks an operation on a session that already finished and maps
	// to "400". The session engine does not return it: it reports operations
	// on a finished session with ErrValidation.
	ErrStale = errors.New("stale session")

	// ErrUnknownEndpoint is returned by the dispatcher for a method+endpoint pair it does not recognize.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// StatutFor maps a sentinel (or wrapped sentinel) error to the wire statut code.
// Unrecognized errors map to "520", matching the reference server's
// generic internal-failure code.
func StatutFor(err error) string {
	switch {
	case err == nil:
		return "200"
	case errors.Is(err, ErrUnauthorized):
		return "401"
	case errors.Is(err, ErrForbidden):
		return "403"
	case errors.Is(err, ErrNotFound):
		return "404"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrCapacity):
		return "409"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrStale):
		return "400"
	case errors.Is(err, ErrUnknownEndpoint):
		return "520"
	default:
		return "520"
	}
}
