package service

import (
	"context"
	"errors"
	"fmt"

	"tourney/models"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is the number of ledger entries returned with a wallet
const DefaultHistoryLimit = 20

// userService implements the UserService interface
type userService struct {
	uowFactory UnitOfWorkFactory
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory) UserService {
	return &userService{uowFactory: uowFactory}
}

// GetOrCreateUser retrieves an existing user or creates one funded with the initial balance.
// The initial credit is replayed for existing users, which finishes a signup whose
// funding step never landed and is a no-op otherwise.
func (s *userService) GetOrCreateUser(ctx context.Context, userID, email string, initialBalance int64) (*models.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if initialBalance < 0 {
		return nil, fmt.Errorf("initial balance cannot be negative")
	}

	user, err := s.getOrCreateUser(ctx, userID, email, initialBalance)
	if errors.Is(err, models.ErrUserExists) {
		// A concurrent signup inserted the row first; read it back in a fresh unit of work
		user, err = s.getOrCreateUser(ctx, userID, email, initialBalance)
	}
	return user, err
}

func (s *userService) getOrCreateUser(ctx context.Context, userID, email string, initialBalance int64) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if user == nil {
		user, err = uow.UserRepository().Create(ctx, userID, email)
		if err != nil {
			if errors.Is(err, models.ErrUserExists) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	if initialBalance > 0 {
		// Funding goes through the ledger like every other wallet change.
		// The operation id is derived from the user id so a repeated signup funds once.
		ledger := NewWalletLedger(uow.UserRepository(), uow.EventBus())
		history, err := ledger.Credit(ctx, models.BalanceChange{
			OperationID:     initialBalanceOperationID(userID),
			UserID:          userID,
			Amount:          initialBalance,
			TransactionType: models.TransactionTypeInitial,
			Metadata:        map[string]any{"email": email},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record initial balance: %w", err)
		}
		if !history.Replayed {
			user.WalletBalance = history.BalanceAfter
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

func initialBalanceOperationID(userID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("initial-balance:"+userID))
}

// GetWallet returns the user's balance and recent ledger entries
func (s *userService) GetWallet(ctx context.Context, userID string, historyLimit int) (*models.WalletSummary, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}

	history, err := uow.BalanceHistoryRepository().GetByUser(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history: %w", err)
	}

	return &models.WalletSummary{
		UserID:        user.UserID,
		WalletBalance: user.WalletBalance,
		History:       history,
	}, nil
}
