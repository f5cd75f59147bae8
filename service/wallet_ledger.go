package service

import (
	"context"
	"fmt"

	"tourney/events"
	"tourney/models"
)

// WalletLedger is the single entry point for wallet mutations.
// Every change is applied through UserRepository.ApplyBalanceChange, which guards
// against negative balances and makes each operation id apply at most once.
type WalletLedger struct {
	users     UserRepository
	publisher EventPublisher
}

// NewWalletLedger creates a ledger over the given repository.
// Balance change events go to publisher, which may be nil.
func NewWalletLedger(users UserRepository, publisher EventPublisher) *WalletLedger {
	return &WalletLedger{users: users, publisher: publisher}
}

// Debit removes a positive amount from the wallet
func (l *WalletLedger) Debit(ctx context.Context, change models.BalanceChange) (*models.BalanceHistory, error) {
	if change.Amount < 0 {
		return nil, fmt.Errorf("debit amount cannot be negative: %d", change.Amount)
	}
	change.Amount = -change.Amount
	return l.apply(ctx, change)
}

// Credit adds a positive amount to the wallet
func (l *WalletLedger) Credit(ctx context.Context, change models.BalanceChange) (*models.BalanceHistory, error) {
	if change.Amount < 0 {
		return nil, fmt.Errorf("credit amount cannot be negative: %d", change.Amount)
	}
	return l.apply(ctx, change)
}

func (l *WalletLedger) apply(ctx context.Context, change models.BalanceChange) (*models.BalanceHistory, error) {
	history, err := l.users.ApplyBalanceChange(ctx, &change)
	if err != nil {
		return nil, err
	}

	// A replayed operation already announced itself when it was first applied
	if !history.Replayed && l.publisher != nil {
		l.publisher.Publish(events.BalanceChangeEvent{
			UserID:          history.UserID,
			OperationID:     history.OperationID,
			OldBalance:      history.BalanceBefore,
			NewBalance:      history.BalanceAfter,
			TransactionType: history.TransactionType,
			ChangeAmount:    history.ChangeAmount,
		})
	}

	return history, nil
}
