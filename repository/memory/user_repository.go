package memory

import (
	"context"
	"fmt"

	"tourney/models"

	"github.com/google/uuid"
)

// UserRepository implements the UserRepository interface in memory
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a new in-memory user repository
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

// GetByID retrieves a user, or nil if not found
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[userID]
	if !ok {
		return nil, nil
	}
	return cloneUser(user), nil
}

// Create creates a new user with an empty wallet
func (r *UserRepository) Create(ctx context.Context, userID, email string) (*models.User, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.users[userID]; exists {
		return nil, fmt.Errorf("%w: %s", models.ErrUserExists, userID)
	}

	now := r.store.clock.Now()
	user := &models.User{
		UserID:              userID,
		Email:               email,
		WalletBalance:       0,
		JoinedTournamentIDs: []uuid.UUID{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	r.store.users[userID] = user
	return cloneUser(user), nil
}

// ApplyBalanceChange applies a signed amount in one guarded, idempotent step
func (r *UserRepository) ApplyBalanceChange(ctx context.Context, change *models.BalanceChange) (*models.BalanceHistory, error) {
	if change.OperationID == uuid.Nil {
		return nil, fmt.Errorf("balance change requires an operation id")
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.historyByOp[change.OperationID]; ok {
		replay := cloneHistory(existing)
		replay.Replayed = true
		return replay, nil
	}

	user, ok := r.store.users[change.UserID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	if user.WalletBalance+change.Amount < 0 {
		return nil, models.ErrInsufficientFunds
	}

	now := r.store.clock.Now()
	before := user.WalletBalance
	user.WalletBalance += change.Amount
	user.UpdatedAt = now

	r.store.nextHistoryID++
	history := &models.BalanceHistory{
		ID:                  r.store.nextHistoryID,
		OperationID:         change.OperationID,
		UserID:              change.UserID,
		BalanceBefore:       before,
		BalanceAfter:        user.WalletBalance,
		ChangeAmount:        change.Amount,
		TransactionType:     change.TransactionType,
		TransactionMetadata: change.Metadata,
		RelatedID:           change.RelatedID,
		CreatedAt:           now,
	}
	if history.TransactionMetadata == nil {
		history.TransactionMetadata = map[string]any{}
	}
	stored := cloneHistory(history)
	r.store.history = append(r.store.history, stored)
	r.store.historyByOp[change.OperationID] = stored

	return history, nil
}

// AddJoinedTournament adds a tournament id to the user's joined set
func (r *UserRepository) AddJoinedTournament(ctx context.Context, userID string, tournamentID uuid.UUID) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	if user.HasJoined(tournamentID) {
		return nil
	}
	user.JoinedTournamentIDs = append(user.JoinedTournamentIDs, tournamentID)
	user.UpdatedAt = r.store.clock.Now()
	return nil
}

// RemoveJoinedTournament removes a tournament id from the user's joined set
func (r *UserRepository) RemoveJoinedTournament(ctx context.Context, userID string, tournamentID uuid.UUID) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[userID]
	if !ok {
		return nil
	}
	for i, id := range user.JoinedTournamentIDs {
		if id == tournamentID {
			user.JoinedTournamentIDs = append(user.JoinedTournamentIDs[:i:i], user.JoinedTournamentIDs[i+1:]...)
			user.UpdatedAt = r.store.clock.Now()
			return nil
		}
	}
	return nil
}

// BalanceHistoryRepository implements the BalanceHistoryRepository interface in memory
type BalanceHistoryRepository struct {
	store *Store
}

// NewBalanceHistoryRepository creates a new in-memory balance history repository
func NewBalanceHistoryRepository(store *Store) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{store: store}
}

// GetByUser returns the most recent ledger entries for a user, newest first
func (r *BalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	histories := []*models.BalanceHistory{}
	for i := len(r.store.history) - 1; i >= 0 && len(histories) < limit; i-- {
		if h := r.store.history[i]; h.UserID == userID {
			histories = append(histories, cloneHistory(h))
		}
	}
	return histories, nil
}

// GetByOperationID returns the entry for an operation, or nil if it was never applied
func (r *BalanceHistoryRepository) GetByOperationID(ctx context.Context, operationID uuid.UUID) (*models.BalanceHistory, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	h, ok := r.store.historyByOp[operationID]
	if !ok {
		return nil, nil
	}
	return cloneHistory(h), nil
}
