// Package common defines shared constants and sentinel errors used across
// the repository, reconciliation and transport layers of piggysync. Callers
// should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrRetrieval  = errors.New("retrieval error")

	// Balance errors.
	ErrDecryption      = errors.New("balance unreadable")
	ErrPersistFailed   = errors.New("balance not persisted")
	ErrVersionConflict = errors.New("watermark conflict")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Validation errors.
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidGoal        = errors.New("invalid goal")
	ErrInvalidCode        = errors.New("invalid code")
	ErrAlreadyClaimed     = errors.New("piggy bank already claimed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
