package repository

import (
	"context"
	"testing"
	"time"

	"tourney/events"
	"tourney/models"
	"tourney/repository/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Scenarios(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus(), 5*time.Second)
	require.True(t, factory.SupportsTransactions())

	testutil.RunStoreScenarios(t, factory)
}

func TestTournamentRepository_GetByID(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	repo := NewTournamentRepository(testDB.DB, 5*time.Second)
	ctx := context.Background()

	t.Run("tournament not found", func(t *testing.T) {
		tournament, err := repo.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, tournament)
	})

	t.Run("tournament found with participants", func(t *testing.T) {
		details := "bracket A"
		created := testutil.CreateTestTournament("Apex", 100, 4)
		created.MatchDetails = &details
		require.NoError(t, repo.Create(ctx, created))

		users := NewUserRepository(testDB.DB, 5*time.Second)
		_, err := users.Create(ctx, "seat-holder", "seat@example.com")
		require.NoError(t, err)
		_, err = repo.AddParticipant(ctx, created.ID, &models.Participant{
			UserID:      "seat-holder",
			DisplayName: "holder",
			Email:       "seat@example.com",
		})
		require.NoError(t, err)

		tournament, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, tournament)

		assert.Equal(t, created.GameName, tournament.GameName)
		assert.Equal(t, "19:00", tournament.TournamentTime)
		assert.Equal(t, created.TournamentDate.Format(time.DateOnly), tournament.TournamentDate.Format(time.DateOnly))
		require.NotNil(t, tournament.MatchDetails)
		assert.Equal(t, details, *tournament.MatchDetails)
		require.Len(t, tournament.Participants, 1)
		assert.Equal(t, 1, tournament.Participants[0].SeatNumber)
	})
}

func TestTournamentRepository_GetAllFiltersByStatus(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	repo := NewTournamentRepository(testDB.DB, 5*time.Second)
	ctx := context.Background()

	upcoming := testutil.CreateTestTournament("Apex", 0, 4)
	live := testutil.CreateTestTournament("Halo", 0, 4)
	require.NoError(t, repo.Create(ctx, upcoming))
	require.NoError(t, repo.Create(ctx, live))
	applied, err := repo.TransitionStatus(ctx, live.ID, models.TournamentStatusUpcoming, models.TournamentStatusLive)
	require.NoError(t, err)
	require.True(t, applied)

	all, err := repo.GetAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := models.TournamentStatusLive
	filtered, err := repo.GetAll(ctx, &status)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, live.ID, filtered[0].ID)

	byIDs, err := repo.GetByIDs(ctx, []uuid.UUID{upcoming.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
	assert.Equal(t, upcoming.ID, byIDs[0].ID)

	_, err = repo.TransitionStatus(ctx, uuid.New(), models.TournamentStatusUpcoming, models.TournamentStatusLive)
	assert.ErrorIs(t, err, models.ErrTournamentNotFound)
}

func TestUnitOfWork_RollbackUndoesDebit(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus(), 5*time.Second)
	ctx := context.Background()

	testutil.SeedUser(t, factory, "rollback-user", 300)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	history, err := uow.UserRepository().ApplyBalanceChange(ctx, &models.BalanceChange{
		OperationID:     uuid.New(),
		UserID:          "rollback-user",
		Amount:          -300,
		TransactionType: models.TransactionTypeTournamentEntry,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), history.BalanceAfter)
	require.NoError(t, uow.Rollback())

	assert.Equal(t, int64(300), testutil.LoadUser(t, factory, "rollback-user").WalletBalance)
	assert.Len(t, testutil.LoadHistory(t, factory, "rollback-user"), 1)
}

func TestRepository_TimeoutIsStoreUnavailable(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	repo := NewTournamentRepository(testDB.DB, time.Nanosecond)

	_, err := repo.GetAll(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.True(t, models.IsRetryable(err))
}

func TestBalanceHistoryRepository_MetadataRoundTrip(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	users := NewUserRepository(testDB.DB, 5*time.Second)
	history := NewBalanceHistoryRepository(testDB.DB, 5*time.Second)
	ctx := context.Background()

	_, err := users.Create(ctx, "meta-user", "meta@example.com")
	require.NoError(t, err)

	related := uuid.New()
	op := uuid.New()
	_, err = users.ApplyBalanceChange(ctx, &models.BalanceChange{
		OperationID:     op,
		UserID:          "meta-user",
		Amount:          75,
		TransactionType: models.TransactionTypeInitial,
		RelatedID:       &related,
		Metadata:        map[string]any{"source": "signup", "campaign": "spring"},
	})
	require.NoError(t, err)

	entry, err := history.GetByOperationID(ctx, op)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "signup", entry.TransactionMetadata["source"])
	require.NotNil(t, entry.RelatedID)
	assert.Equal(t, related, *entry.RelatedID)
	assert.Equal(t, int64(0), entry.BalanceBefore)
	assert.Equal(t, int64(75), entry.BalanceAfter)
}

func TestTournamentRepository_SeatNumbersNotReused(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	repo := NewTournamentRepository(testDB.DB, 5*time.Second)
	users := NewUserRepository(testDB.DB, 5*time.Second)
	ctx := context.Background()

	tournament := testutil.CreateTestTournament("Starcraft", 0, 3)
	require.NoError(t, repo.Create(ctx, tournament))

	for _, id := range []string{"a", "b", "c"} {
		_, err := users.Create(ctx, id, id+"@example.com")
		require.NoError(t, err)
	}
	for _, id := range []string{"a", "b"} {
		_, err := repo.AddParticipant(ctx, tournament.ID, &models.Participant{UserID: id, DisplayName: id + "_name"})
		require.NoError(t, err)
	}

	removed, err := repo.RemoveParticipant(ctx, tournament.ID, "b")
	require.NoError(t, err)
	assert.True(t, removed)

	added, err := repo.AddParticipant(ctx, tournament.ID, &models.Participant{UserID: "c", DisplayName: "c_name"})
	require.NoError(t, err)
	assert.Equal(t, 3, added.SeatNumber)

	stored, err := repo.GetByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Participants, 2)
}
