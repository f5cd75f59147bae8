package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tourney/database"
	"tourney/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q       queryable
	timeout time.Duration
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB, timeout time.Duration) *UserRepository {
	return &UserRepository{q: db.Pool, timeout: timeout}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable, timeout time.Duration) *UserRepository {
	return &UserRepository{q: tx, timeout: timeout}
}

// GetByID retrieves a user with their joined tournament ids, or nil if not found
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT user_id, email, wallet_balance, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&user.UserID,
		&user.Email,
		&user.WalletBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to get user %s: %w", userID, err))
	}

	rows, err := r.q.Query(ctx, `
		SELECT tournament_id FROM user_tournaments
		WHERE user_id = $1
		ORDER BY created_at, tournament_id
	`, userID)
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to get joined tournaments for user %s: %w", userID, err))
	}
	defer rows.Close()

	user.JoinedTournamentIDs = []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan joined tournament id: %w", err)
		}
		user.JoinedTournamentIDs = append(user.JoinedTournamentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(fmt.Errorf("failed to iterate joined tournaments: %w", err))
	}

	return &user, nil
}

// Create creates a new user with an empty wallet
func (r *UserRepository) Create(ctx context.Context, userID, email string) (*models.User, error) {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO users (user_id, email, wallet_balance)
		VALUES ($1, $2, 0)
		RETURNING user_id, email, wallet_balance, created_at, updated_at
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, userID, email).Scan(
		&user.UserID,
		&user.Email,
		&user.WalletBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrUserExists, userID)
		}
		return nil, classifyError(fmt.Errorf("failed to create user %s: %w", userID, err))
	}

	user.JoinedTournamentIDs = []uuid.UUID{}
	return &user, nil
}

// ApplyBalanceChange updates the wallet and appends the ledger entry in one statement.
// The update only matches while the resulting balance stays non-negative and the
// operation id has not been recorded yet.
func (r *UserRepository) ApplyBalanceChange(ctx context.Context, change *models.BalanceChange) (*models.BalanceHistory, error) {
	if change.OperationID == uuid.Nil {
		return nil, fmt.Errorf("balance change requires an operation id")
	}

	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	metadata := change.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		WITH applied AS (
			UPDATE users
			SET wallet_balance = wallet_balance + $2::bigint, updated_at = NOW()
			WHERE user_id = $1::text
			  AND wallet_balance + $2::bigint >= 0
			  AND NOT EXISTS (SELECT 1 FROM balance_history WHERE operation_id = $3::uuid)
			RETURNING user_id, wallet_balance
		)
		INSERT INTO balance_history
		(operation_id, user_id, balance_before, balance_after, change_amount,
		 transaction_type, transaction_metadata, related_id)
		SELECT $3::uuid, applied.user_id, applied.wallet_balance - $2::bigint, applied.wallet_balance,
		       $2::bigint, $4::text, $5::jsonb, $6::uuid
		FROM applied
		RETURNING ` + balanceHistoryColumns

	history, err := scanBalanceHistory(r.q.QueryRow(ctx, query,
		change.UserID,
		change.Amount,
		change.OperationID,
		change.TransactionType,
		metadataJSON,
		change.RelatedID,
	))
	switch {
	case err == nil:
		return history, nil
	case isUniqueViolation(err):
		// A concurrent call with the same operation id won the insert
		return r.replayed(ctx, change.OperationID)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, classifyError(fmt.Errorf("failed to apply balance change for user %s: %w", change.UserID, err))
	}

	existing, err := r.replayed(ctx, change.OperationID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errOperationNotApplied) {
		return nil, err
	}

	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, change.UserID).Scan(&exists); err != nil {
		return nil, classifyError(fmt.Errorf("failed to check user %s: %w", change.UserID, err))
	}
	if !exists {
		return nil, models.ErrUserNotFound
	}
	return nil, models.ErrInsufficientFunds
}

var errOperationNotApplied = errors.New("operation not applied")

func (r *UserRepository) replayed(ctx context.Context, operationID uuid.UUID) (*models.BalanceHistory, error) {
	query := `SELECT ` + balanceHistoryColumns + ` FROM balance_history WHERE operation_id = $1`

	history, err := scanBalanceHistory(r.q.QueryRow(ctx, query, operationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errOperationNotApplied
	}
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to read balance history for operation %s: %w", operationID, err))
	}

	history.Replayed = true
	return history, nil
}

// AddJoinedTournament adds a tournament id to the user's joined set
func (r *UserRepository) AddJoinedTournament(ctx context.Context, userID string, tournamentID uuid.UUID) error {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO user_tournaments (user_id, tournament_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, tournament_id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, userID, tournamentID); err != nil {
		return classifyError(fmt.Errorf("failed to add tournament %s to user %s: %w", tournamentID, userID, err))
	}
	return nil
}

// RemoveJoinedTournament removes a tournament id from the user's joined set
func (r *UserRepository) RemoveJoinedTournament(ctx context.Context, userID string, tournamentID uuid.UUID) error {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `DELETE FROM user_tournaments WHERE user_id = $1 AND tournament_id = $2`

	if _, err := r.q.Exec(ctx, query, userID, tournamentID); err != nil {
		return classifyError(fmt.Errorf("failed to remove tournament %s from user %s: %w", tournamentID, userID, err))
	}
	return nil
}
