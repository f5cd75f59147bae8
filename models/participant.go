package models

import (
	"regexp"
	"strings"
	"time"
)

const (
	MinDisplayNameLength = 3
	MaxDisplayNameLength = 20
)

var displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Participant represents a user's registration within a tournament
type Participant struct {
	UserID      string    `db:"user_id"`
	DisplayName string    `db:"display_name"`
	Email       string    `db:"email"`
	SeatNumber  int       `db:"seat_number"`
	JoinedAt    time.Time `db:"joined_at"`
}

// NormalizeDisplayName trims and validates an in-game display name
func NormalizeDisplayName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < MinDisplayNameLength || len(trimmed) > MaxDisplayNameLength {
		return "", ErrInvalidUsername
	}
	if !displayNamePattern.MatchString(trimmed) {
		return "", ErrInvalidUsername
	}
	return trimmed, nil
}
