package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial               TransactionType = "initial"
	TransactionTypeTournamentEntry       TransactionType = "tournament_entry"
	TransactionTypeTournamentEntryRefund TransactionType = "tournament_entry_refund"
)

// BalanceChange describes a guarded wallet mutation.
// OperationID makes the change idempotent: applying it twice has the effect of applying it once.
type BalanceChange struct {
	OperationID     uuid.UUID
	UserID          string
	Amount          int64 // signed; negative for debits
	TransactionType TransactionType
	RelatedID       *uuid.UUID
	Metadata        map[string]any
}

// BalanceHistory represents an applied balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	OperationID         uuid.UUID       `db:"operation_id"`
	UserID              string          `db:"user_id"`
	BalanceBefore       int64           `db:"balance_before"`
	BalanceAfter        int64           `db:"balance_after"`
	ChangeAmount        int64           `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *uuid.UUID      `db:"related_id"`
	CreatedAt           time.Time       `db:"created_at"`

	// Replayed is set when the operation had already been applied before this call
	Replayed bool `db:"-"`
}

// RefundOperationID derives the compensating operation id for a debit.
// The derivation is deterministic so a retried refund is recognised as the same operation.
func RefundOperationID(debitOperationID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(debitOperationID, []byte("refund"))
}
