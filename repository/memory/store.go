// Package memory is an in-process store with single-record conditional updates.
// It has no multi-record transactions, so callers fall back to compensation.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tourney/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Store holds all records. Each repository call takes the lock once, so every
// individual write is atomic but two writes never commit together.
type Store struct {
	mu            sync.RWMutex
	clock         clockwork.Clock
	tournaments   map[uuid.UUID]*models.Tournament
	users         map[string]*models.User
	history       []*models.BalanceHistory
	historyByOp   map[uuid.UUID]*models.BalanceHistory
	nextHistoryID int64
}

// NewStore creates an empty store
func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:       clock,
		tournaments: make(map[uuid.UUID]*models.Tournament),
		users:       make(map[string]*models.User),
		historyByOp: make(map[uuid.UUID]*models.BalanceHistory),
	}
}

// checkContext surfaces a cancelled or expired caller context as a retryable store error
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

func cloneUser(u *models.User) *models.User {
	clone := *u
	clone.JoinedTournamentIDs = append([]uuid.UUID{}, u.JoinedTournamentIDs...)
	return &clone
}

func cloneHistory(h *models.BalanceHistory) *models.BalanceHistory {
	clone := *h
	if h.TransactionMetadata != nil {
		clone.TransactionMetadata = make(map[string]any, len(h.TransactionMetadata))
		for k, v := range h.TransactionMetadata {
			clone.TransactionMetadata[k] = v
		}
	}
	if h.RelatedID != nil {
		id := *h.RelatedID
		clone.RelatedID = &id
	}
	return &clone
}
