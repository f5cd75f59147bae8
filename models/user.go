package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account with a wallet
type User struct {
	UserID              string      `db:"user_id"`
	Email               string      `db:"email"`
	WalletBalance       int64       `db:"wallet_balance"`
	JoinedTournamentIDs []uuid.UUID `db:"-"`
	CreatedAt           time.Time   `db:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at"`
}

// CanAfford checks if the wallet covers an amount
func (u *User) CanAfford(amount int64) bool {
	return u.WalletBalance >= amount
}

// HasJoined checks if the tournament is in the user's joined set
func (u *User) HasJoined(tournamentID uuid.UUID) bool {
	for _, id := range u.JoinedTournamentIDs {
		if id == tournamentID {
			return true
		}
	}
	return false
}
