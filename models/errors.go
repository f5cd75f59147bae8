package models

import (
	"context"
	"errors"
)

// Join validation errors. These are terminal for the attempt and shown to the caller as-is.
var (
	ErrInvalidUsername    = errors.New("username must be 3-20 characters and contain only letters, numbers, and underscores")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrTournamentFull     = errors.New("tournament is full")
	ErrAlreadyJoined      = errors.New("already joined this tournament")
	ErrRegistrationClosed = errors.New("tournament registration is closed")
)

var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrMatchDetailsLocked  = errors.New("match details can only be changed while a tournament is upcoming or live")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidTournament   = errors.New("invalid tournament")

	// ErrStoreUnavailable marks timeouts and lost races in the store; callers may retry
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsValidationError checks if err is one of the expected, user-facing join rejections
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrTournamentFull) ||
		errors.Is(err, ErrAlreadyJoined) ||
		errors.Is(err, ErrRegistrationClosed)
}

// IsRetryable checks if the caller may safely retry the operation that produced err
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// ErrorCode returns the stable API code for a join or store error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidUsername):
		return "InvalidUsername"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrTournamentFull):
		return "TournamentFull"
	case errors.Is(err, ErrAlreadyJoined):
		return "AlreadyJoined"
	case errors.Is(err, ErrRegistrationClosed):
		return "RegistrationClosed"
	case errors.Is(err, ErrTournamentNotFound), errors.Is(err, ErrUserNotFound):
		return "NotFound"
	case errors.Is(err, ErrMatchDetailsLocked):
		return "MatchDetailsLocked"
	case errors.Is(err, ErrInvalidTournament):
		return "InvalidTournament"
	case IsRetryable(err):
		return "StoreUnavailable"
	default:
		return "Internal"
	}
}
