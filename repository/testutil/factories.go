package testutil

import (
	"context"
	"testing"
	"time"

	"tourney/models"
	"tourney/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// CreateTestTournament creates an upcoming tournament with default values
func CreateTestTournament(gameName string, entryFee int64, maxParticipants int) *models.Tournament {
	return &models.Tournament{
		ID:              uuid.New(),
		GameName:        gameName,
		GameType:        "battle_royale",
		Status:          models.TournamentStatusUpcoming,
		TournamentDate:  time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC),
		TournamentTime:  "19:00",
		EntryFee:        entryFee,
		PrizePool:       entryFee * int64(maxParticipants),
		MaxParticipants: maxParticipants,
		Participants:    []*models.Participant{},
	}
}

// CreateTestTournamentAt creates an upcoming tournament scheduled for the given date and time of day
func CreateTestTournamentAt(gameName string, date time.Time, timeOfDay string) *models.Tournament {
	tournament := CreateTestTournament(gameName, 100, 10)
	tournament.TournamentDate = date
	tournament.TournamentTime = timeOfDay
	return tournament
}

// SeedTournament stores a tournament through a fresh unit of work
func SeedTournament(t *testing.T, factory service.UnitOfWorkFactory, tournament *models.Tournament) *models.Tournament {
	t.Helper()
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	require.NoError(t, uow.TournamentRepository().Create(ctx, tournament))
	require.NoError(t, uow.Commit())
	return tournament
}

// SeedUser creates a user and funds the wallet through the ledger
func SeedUser(t *testing.T, factory service.UnitOfWorkFactory, userID string, balance int64) *models.User {
	t.Helper()
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	user, err := uow.UserRepository().Create(ctx, userID, userID+"@example.com")
	require.NoError(t, err)

	if balance > 0 {
		history, err := uow.UserRepository().ApplyBalanceChange(ctx, &models.BalanceChange{
			OperationID:     uuid.New(),
			UserID:          userID,
			Amount:          balance,
			TransactionType: models.TransactionTypeInitial,
		})
		require.NoError(t, err)
		user.WalletBalance = history.BalanceAfter
	}

	require.NoError(t, uow.Commit())
	return user
}

// LoadUser reads a user through a fresh unit of work
func LoadUser(t *testing.T, factory service.UnitOfWorkFactory, userID string) *models.User {
	t.Helper()
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user, "user %s should exist", userID)
	return user
}

// LoadTournament reads a tournament through a fresh unit of work
func LoadTournament(t *testing.T, factory service.UnitOfWorkFactory, id uuid.UUID) *models.Tournament {
	t.Helper()
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	tournament, err := uow.TournamentRepository().GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, tournament, "tournament %s should exist", id)
	return tournament
}

// LoadHistory reads the newest ledger entries for a user
func LoadHistory(t *testing.T, factory service.UnitOfWorkFactory, userID string) []*models.BalanceHistory {
	t.Helper()
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	history, err := uow.BalanceHistoryRepository().GetByUser(ctx, userID, 100)
	require.NoError(t, err)
	return history
}
