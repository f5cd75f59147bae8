package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tourney/models"
	"tourney/service"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniqueUser returns a user id that does not collide across subtests sharing a store
func uniqueUser(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

// RunStoreScenarios exercises the join, ledger and lifecycle guarantees against a backend.
// Every subtest seeds its own users and tournaments so one store can serve them all.
func RunStoreScenarios(t *testing.T, factory service.UnitOfWorkFactory) {
	t.Run("JoinDebitsAndSeats", func(t *testing.T) {
		testJoinDebitsAndSeats(t, factory)
	})
	t.Run("RepeatedJoinIsAlreadyJoined", func(t *testing.T) {
		testRepeatedJoinIsAlreadyJoined(t, factory)
	})
	t.Run("InsufficientFundsLeavesNoTrace", func(t *testing.T) {
		testInsufficientFundsLeavesNoTrace(t, factory)
	})
	t.Run("FullTournamentRejects", func(t *testing.T) {
		testFullTournamentRejects(t, factory)
	})
	t.Run("LiveTournamentRejects", func(t *testing.T) {
		testLiveTournamentRejects(t, factory)
	})
	t.Run("LastSeatRace", func(t *testing.T) {
		testLastSeatRace(t, factory)
	})
	t.Run("ConcurrentJoinsRespectCapacity", func(t *testing.T) {
		testConcurrentJoinsRespectCapacity(t, factory)
	})
	t.Run("SameUserConcurrentJoin", func(t *testing.T) {
		testSameUserConcurrentJoin(t, factory)
	})
	t.Run("ReconcileIsIdempotent", func(t *testing.T) {
		testReconcileIsIdempotent(t, factory)
	})
	t.Run("ConcurrentReconcileCountsEachTransitionOnce", func(t *testing.T) {
		testConcurrentReconcileCountsEachTransitionOnce(t, factory)
	})
	t.Run("DuplicateUserCreateIsUserExists", func(t *testing.T) {
		testDuplicateUserCreateIsUserExists(t, factory)
	})
	t.Run("BalanceChangeGuards", func(t *testing.T) {
		testBalanceChangeGuards(t, factory)
	})
	t.Run("MatchDetailsLockAfterCompletion", func(t *testing.T) {
		testMatchDetailsLockAfterCompletion(t, factory)
	})
	t.Run("ListingsReflectJoins", func(t *testing.T) {
		testListingsReflectJoins(t, factory)
	})
}

func newJoinService(factory service.UnitOfWorkFactory) service.JoinService {
	return service.NewJoinService(factory, clockwork.NewRealClock(), 5*time.Second)
}

func testJoinDebitsAndSeats(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	userID := uniqueUser("alice")
	SeedUser(t, factory, userID, 500)
	tournament := SeedTournament(t, factory, CreateTestTournament("Apex", 100, 4))

	result, err := newJoinService(factory).JoinTournament(ctx, userID, tournament.ID, "Alice_01")
	require.NoError(t, err)
	assert.Equal(t, int64(400), result.NewBalance)
	assert.Equal(t, 1, result.Participant.SeatNumber)
	assert.Equal(t, "Alice_01", result.Participant.DisplayName)

	user := LoadUser(t, factory, userID)
	assert.Equal(t, int64(400), user.WalletBalance)
	assert.True(t, user.HasJoined(tournament.ID))

	stored := LoadTournament(t, factory, tournament.ID)
	require.Len(t, stored.Participants, 1)
	assert.Equal(t, userID, stored.Participants[0].UserID)

	history := LoadHistory(t, factory, userID)
	require.Len(t, history, 2)
	assert.Equal(t, result.OperationID, history[0].OperationID)
	assert.Equal(t, int64(-100), history[0].ChangeAmount)
	assert.Equal(t, models.TransactionTypeTournamentEntry, history[0].TransactionType)
	require.NotNil(t, history[0].RelatedID)
	assert.Equal(t, tournament.ID, *history[0].RelatedID)
}

func testRepeatedJoinIsAlreadyJoined(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	userID := uniqueUser("bob")
	SeedUser(t, factory, userID, 150)
	tournament := SeedTournament(t, factory, CreateTestTournament("Fortnite", 100, 4))
	joins := newJoinService(factory)

	_, err := joins.JoinTournament(ctx, userID, tournament.ID, "bob_the_b")
	require.NoError(t, err)

	// The wallet (50) no longer covers the fee, but the repeat is still reported as a repeat
	_, err = joins.JoinTournament(ctx, userID, tournament.ID, "bob_the_b")
	assert.ErrorIs(t, err, models.ErrAlreadyJoined)

	assert.Equal(t, int64(50), LoadUser(t, factory, userID).WalletBalance)
	assert.Len(t, LoadTournament(t, factory, tournament.ID).Participants, 1)
}

func testInsufficientFundsLeavesNoTrace(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	userID := uniqueUser("carol")
	SeedUser(t, factory, userID, 50)
	tournament := SeedTournament(t, factory, CreateTestTournament("Valorant", 100, 4))

	_, err := newJoinService(factory).JoinTournament(ctx, userID, tournament.ID, "carol")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	assert.Equal(t, int64(50), LoadUser(t, factory, userID).WalletBalance)
	assert.Empty(t, LoadTournament(t, factory, tournament.ID).Participants)
	assert.Len(t, LoadHistory(t, factory, userID), 1)
}

func testFullTournamentRejects(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	first := uniqueUser("dave")
	second := uniqueUser("erin")
	SeedUser(t, factory, first, 500)
	SeedUser(t, factory, second, 500)
	tournament := SeedTournament(t, factory, CreateTestTournament("Rocket League", 100, 1))
	joins := newJoinService(factory)

	_, err := joins.JoinTournament(ctx, first, tournament.ID, "dave")
	require.NoError(t, err)

	_, err = joins.JoinTournament(ctx, second, tournament.ID, "erin")
	assert.ErrorIs(t, err, models.ErrTournamentFull)
	assert.Equal(t, int64(500), LoadUser(t, factory, second).WalletBalance)
}

func testLiveTournamentRejects(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	userID := uniqueUser("frank")
	SeedUser(t, factory, userID, 500)
	tournament := SeedTournament(t, factory, CreateTestTournament("Dota", 100, 4))

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	applied, err := uow.TournamentRepository().TransitionStatus(ctx, tournament.ID, models.TournamentStatusUpcoming, models.TournamentStatusLive)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, uow.Commit())

	_, err = newJoinService(factory).JoinTournament(ctx, userID, tournament.ID, "frank")
	assert.ErrorIs(t, err, models.ErrRegistrationClosed)
	assert.Equal(t, int64(500), LoadUser(t, factory, userID).WalletBalance)
}

func testLastSeatRace(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	const contenders = 8
	tournament := SeedTournament(t, factory, CreateTestTournament("Chess", 100, 1))

	userIDs := make([]string, contenders)
	for i := range userIDs {
		userIDs[i] = uniqueUser(fmt.Sprintf("racer%d", i))
		SeedUser(t, factory, userIDs[i], 100)
	}

	joins := newJoinService(factory)
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range userIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = joins.JoinTournament(ctx, userIDs[i], tournament.ID, fmt.Sprintf("racer_%d", i))
		}(i)
	}
	close(start)
	wg.Wait()

	var winners, full int
	var total int64
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, models.ErrTournamentFull):
			full++
		default:
			t.Errorf("contender %d: unexpected error %v", i, err)
		}
		total += LoadUser(t, factory, userIDs[i]).WalletBalance
	}

	assert.Equal(t, 1, winners)
	assert.Equal(t, contenders-1, full)
	// Exactly one entry fee left the system
	assert.Equal(t, int64(contenders*100-100), total)
	assert.Len(t, LoadTournament(t, factory, tournament.ID).Participants, 1)
}

func testConcurrentJoinsRespectCapacity(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	const users = 10
	const seats = 3
	tournament := SeedTournament(t, factory, CreateTestTournament("Smash", 25, seats))

	userIDs := make([]string, users)
	for i := range userIDs {
		userIDs[i] = uniqueUser(fmt.Sprintf("player%d", i))
		SeedUser(t, factory, userIDs[i], 25)
	}

	joins := newJoinService(factory)
	var wg sync.WaitGroup
	for i := range userIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = joins.JoinTournament(ctx, userIDs[i], tournament.ID, fmt.Sprintf("player_%d", i))
		}(i)
	}
	wg.Wait()

	stored := LoadTournament(t, factory, tournament.ID)
	require.Len(t, stored.Participants, seats)

	seatNumbers := map[int]bool{}
	for _, p := range stored.Participants {
		assert.False(t, seatNumbers[p.SeatNumber], "seat %d assigned twice", p.SeatNumber)
		seatNumbers[p.SeatNumber] = true

		user := LoadUser(t, factory, p.UserID)
		assert.Equal(t, int64(0), user.WalletBalance)
		assert.True(t, user.HasJoined(tournament.ID))
	}

	var seatedWithoutMirror, paidWithoutSeat int
	for _, id := range userIDs {
		user := LoadUser(t, factory, id)
		if user.WalletBalance == 0 && !stored.HasParticipant(id) {
			paidWithoutSeat++
		}
		if stored.HasParticipant(id) && !user.HasJoined(tournament.ID) {
			seatedWithoutMirror++
		}
	}
	assert.Zero(t, paidWithoutSeat)
	assert.Zero(t, seatedWithoutMirror)
}

func testSameUserConcurrentJoin(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	userID := uniqueUser("grace")
	SeedUser(t, factory, userID, 1000)
	tournament := SeedTournament(t, factory, CreateTestTournament("Tekken", 100, 10))

	joins := newJoinService(factory)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = joins.JoinTournament(ctx, userID, tournament.ID, "grace")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrAlreadyJoined)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(900), LoadUser(t, factory, userID).WalletBalance)
	assert.Len(t, LoadTournament(t, factory, tournament.ID).Participants, 1)
}

func testReconcileIsIdempotent(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	day := time.Date(2031, 7, 4, 0, 0, 0, 0, time.UTC)
	due := SeedTournament(t, factory, CreateTestTournamentAt("Overwatch", day, "12:00"))
	notYet := SeedTournament(t, factory, CreateTestTournamentAt("Overwatch", day, "12:01"))

	clock := clockwork.NewFakeClockAt(time.Date(2031, 7, 4, 12, 0, 30, 0, time.UTC))
	statuses := service.NewTournamentStatusService(factory, clock, time.UTC)

	first, err := statuses.ReconcileStatuses(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first.UpdatedCount, 1)
	assert.Empty(t, first.Failures)

	second, err := statuses.ReconcileStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.UpdatedCount)

	assert.Equal(t, models.TournamentStatusLive, LoadTournament(t, factory, due.ID).Status)
	assert.Equal(t, models.TournamentStatusUpcoming, LoadTournament(t, factory, notYet.ID).Status)

	// Statuses never move backwards
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()
	applied, err := uow.TournamentRepository().TransitionStatus(ctx, due.ID, models.TournamentStatusUpcoming, models.TournamentStatusLive)
	require.NoError(t, err)
	assert.False(t, applied)
	_, err = uow.TournamentRepository().TransitionStatus(ctx, due.ID, models.TournamentStatusLive, models.TournamentStatusUpcoming)
	assert.Error(t, err)
}

// Scheduled before every other seeded tournament so only these are due
func testConcurrentReconcileCountsEachTransitionOnce(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	day := time.Date(2029, 3, 10, 0, 0, 0, 0, time.UTC)
	var due []*models.Tournament
	for _, at := range []string{"09:00", "09:30", "10:00", "10:15"} {
		due = append(due, SeedTournament(t, factory, CreateTestTournamentAt("Rocket League", day, at)))
	}

	clock := clockwork.NewFakeClockAt(time.Date(2029, 3, 10, 10, 30, 0, 0, time.UTC))
	statuses := service.NewTournamentStatusService(factory, clock, time.UTC)

	const runners = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		updated int
	)
	for i := 0; i < runners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := statuses.ReconcileStatuses(ctx)
			if !assert.NoError(t, err) {
				return
			}
			assert.Empty(t, result.Failures)
			mu.Lock()
			updated += result.UpdatedCount
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(due), updated)
	for _, tournament := range due {
		assert.Equal(t, models.TournamentStatusLive, LoadTournament(t, factory, tournament.ID).Status)
	}
}

func testDuplicateUserCreateIsUserExists(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	userID := uniqueUser("ivan")
	SeedUser(t, factory, userID, 0)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.UserRepository().Create(ctx, userID, userID+"@example.com")
	assert.ErrorIs(t, err, models.ErrUserExists)
	require.NoError(t, uow.Rollback())

	// A repeated signup keeps the single initial credit
	users := service.NewUserService(factory)
	_, err = users.GetOrCreateUser(ctx, userID, userID+"@example.com", 250)
	require.NoError(t, err)
	_, err = users.GetOrCreateUser(ctx, userID, userID+"@example.com", 250)
	require.NoError(t, err)
	assert.Equal(t, int64(250), LoadUser(t, factory, userID).WalletBalance)
}

func testBalanceChangeGuards(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	userID := uniqueUser("heidi")
	SeedUser(t, factory, userID, 100)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()
	users := uow.UserRepository()

	_, err := users.ApplyBalanceChange(ctx, &models.BalanceChange{
		OperationID:     uuid.New(),
		UserID:          userID,
		Amount:          -101,
		TransactionType: models.TransactionTypeTournamentEntry,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, err = users.ApplyBalanceChange(ctx, &models.BalanceChange{
		OperationID:     uuid.New(),
		UserID:          uniqueUser("nobody"),
		Amount:          10,
		TransactionType: models.TransactionTypeInitial,
	})
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	change := &models.BalanceChange{
		OperationID:     uuid.New(),
		UserID:          userID,
		Amount:          -100,
		TransactionType: models.TransactionTypeTournamentEntry,
		Metadata:        map[string]any{"note": "exact balance"},
	}
	first, err := users.ApplyBalanceChange(ctx, change)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, int64(0), first.BalanceAfter)

	replay, err := users.ApplyBalanceChange(ctx, change)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.OperationID, replay.OperationID)
	assert.Equal(t, int64(0), replay.BalanceAfter)
	require.NoError(t, uow.Commit())

	assert.Equal(t, int64(0), LoadUser(t, factory, userID).WalletBalance)
	assert.Len(t, LoadHistory(t, factory, userID), 2)
}

func testMatchDetailsLockAfterCompletion(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	tournament := SeedTournament(t, factory, CreateTestTournament("Halo", 0, 8))
	admin := service.NewTournamentAdminService(factory)
	details := "server eu-west, password hunter2"

	require.NoError(t, admin.UpdateMatchDetails(ctx, tournament.ID, &details))
	stored := LoadTournament(t, factory, tournament.ID)
	require.NotNil(t, stored.MatchDetails)
	assert.Equal(t, details, *stored.MatchDetails)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	applied, err := uow.TournamentRepository().TransitionStatus(ctx, tournament.ID, models.TournamentStatusUpcoming, models.TournamentStatusCompleted)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, uow.Commit())

	err = admin.UpdateMatchDetails(ctx, tournament.ID, nil)
	assert.ErrorIs(t, err, models.ErrMatchDetailsLocked)

	err = admin.UpdateMatchDetails(ctx, uuid.New(), &details)
	assert.ErrorIs(t, err, models.ErrTournamentNotFound)
}

func testListingsReflectJoins(t *testing.T, factory service.UnitOfWorkFactory) {
	ctx := context.Background()
	userID := uniqueUser("ivan")
	SeedUser(t, factory, userID, 300)
	details := "discord stage 2"
	joined := CreateTestTournament("CS2", 100, 4)
	joined.MatchDetails = &details
	other := CreateTestTournament("CS2", 100, 4)
	other.MatchDetails = &details
	SeedTournament(t, factory, joined)
	SeedTournament(t, factory, other)

	_, err := newJoinService(factory).JoinTournament(ctx, userID, joined.ID, "ivan_cs")
	require.NoError(t, err)

	queries := service.NewTournamentQueryService(factory, nil, time.UTC)

	mine, err := queries.ListUserTournaments(ctx, userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, joined.ID, mine[0].Tournament.ID)
	require.NotNil(t, mine[0].MatchDetails)

	all, err := queries.ListTournaments(ctx, userID)
	require.NoError(t, err)
	for _, view := range all {
		switch view.Tournament.ID {
		case joined.ID:
			assert.True(t, view.HasJoined)
			assert.NotNil(t, view.MatchDetails)
		case other.ID:
			assert.False(t, view.HasJoined)
			assert.Nil(t, view.MatchDetails)
		}
	}
}
