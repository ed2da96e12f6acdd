// Package common defines shared constants and sentinel errors used across
// the client and server layers of snapsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Record validation errors raised before any network attempt.
	ErrInvalidRecord = errors.New("invalid record")

	// Transport-level errors.
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Raised when a metadata write loses against a newer stored row.
	ErrVersionConflict = errors.New("version conflict")
)
