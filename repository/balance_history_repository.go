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

const balanceHistoryColumns = `
	id, operation_id, user_id, balance_before, balance_after, change_amount,
	transaction_type, transaction_metadata, related_id, created_at`

// BalanceHistoryRepository implements the BalanceHistoryRepository interface
type BalanceHistoryRepository struct {
	q       queryable
	timeout time.Duration
}

// NewBalanceHistoryRepository creates a new balance history repository
func NewBalanceHistoryRepository(db *database.DB, timeout time.Duration) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: db.Pool, timeout: timeout}
}

// newBalanceHistoryRepositoryWithTx creates a new balance history repository with a transaction
func newBalanceHistoryRepositoryWithTx(tx queryable, timeout time.Duration) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: tx, timeout: timeout}
}

// GetByUser returns the most recent ledger entries for a user
func (r *BalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + balanceHistoryColumns + `
		FROM balance_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to get balance history for user %s: %w", userID, err))
	}
	defer rows.Close()

	histories := []*models.BalanceHistory{}
	for rows.Next() {
		history, err := scanBalanceHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}
		histories = append(histories, history)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(fmt.Errorf("failed to iterate balance history: %w", err))
	}

	return histories, nil
}

// GetByOperationID returns the entry for an operation, or nil if it was never applied
func (r *BalanceHistoryRepository) GetByOperationID(ctx context.Context, operationID uuid.UUID) (*models.BalanceHistory, error) {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + balanceHistoryColumns + ` FROM balance_history WHERE operation_id = $1`

	history, err := scanBalanceHistory(r.q.QueryRow(ctx, query, operationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to get balance history for operation %s: %w", operationID, err))
	}
	return history, nil
}

func scanBalanceHistory(row pgx.Row) (*models.BalanceHistory, error) {
	var history models.BalanceHistory
	var metadataJSON []byte

	err := row.Scan(
		&history.ID,
		&history.OperationID,
		&history.UserID,
		&history.BalanceBefore,
		&history.BalanceAfter,
		&history.ChangeAmount,
		&history.TransactionType,
		&metadataJSON,
		&history.RelatedID,
		&history.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &history.TransactionMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
		}
	}
	return &history, nil
}
