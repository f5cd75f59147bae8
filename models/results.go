package models

import (
	"time"

	"github.com/google/uuid"
)

// JoinResult is returned after a successful tournament join
type JoinResult struct {
	TournamentID uuid.UUID
	Participant  *Participant
	EntryFee     int64
	NewBalance   int64
	OperationID  uuid.UUID
}

// ReconcileFailure records a tournament the status engine could not update
type ReconcileFailure struct {
	TournamentID uuid.UUID
	Err          error
}

// ReconcileResult summarizes one pass of the status engine
type ReconcileResult struct {
	UpdatedCount int
	Examined     int
	Skipped      int
	Failures     []ReconcileFailure
}

// TournamentView is a tournament as presented to a particular viewer
type TournamentView struct {
	Tournament   *Tournament
	ScheduledAt  time.Time
	HasJoined    bool
	MatchDetails *string // nil unless visible to the viewer
}

// WalletSummary is a user's balance together with recent ledger entries
type WalletSummary struct {
	UserID        string
	WalletBalance int64
	History       []*BalanceHistory
}
