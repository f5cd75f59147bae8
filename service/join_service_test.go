package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tourney/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestJoinService_JoinTournament_Transactional(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tournament := newTestTournament()
	user := newTestUser(1000)

	mocks.Factory.On("SupportsTransactions").Return(true)
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Commit").Return(nil)
	mocks.UoW.On("Rollback").Return(nil)

	mocks.TournamentRepo.On("GetByID", ctx, tournament.ID).Return(tournament, nil)
	mocks.UserRepo.On("GetByID", ctx, testUserID).Return(user, nil)
	mocks.UserRepo.On("ApplyBalanceChange", ctx, entryDebit(100)).Return(&models.BalanceHistory{
		UserID:          testUserID,
		BalanceBefore:   1000,
		BalanceAfter:    900,
		ChangeAmount:    -100,
		TransactionType: models.TransactionTypeTournamentEntry,
	}, nil)
	mocks.TournamentRepo.On("AddParticipant", ctx, tournament.ID, mock.MatchedBy(func(p *models.Participant) bool {
		return p.UserID == testUserID && p.DisplayName == testDisplay && p.Email == testEmail && p.JoinedAt.Equal(testNow)
	})).Return(&models.Participant{UserID: testUserID, DisplayName: testDisplay, SeatNumber: 1, JoinedAt: testNow}, nil)
	mocks.UserRepo.On("AddJoinedTournament", ctx, testUserID, tournament.ID).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return()
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.ParticipantJoinedEvent")).Return()

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	result, err := service.JoinTournament(ctx, testUserID, tournament.ID, "  "+testDisplay+" ")

	require.NoError(t, err)
	assert.Equal(t, tournament.ID, result.TournamentID)
	assert.Equal(t, int64(100), result.EntryFee)
	assert.Equal(t, int64(900), result.NewBalance)
	assert.Equal(t, 1, result.Participant.SeatNumber)
	assert.NotEqual(t, uuid.Nil, result.OperationID)

	mocks.AssertAllExpectations(t)
}

func TestJoinService_JoinTournament_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		tournament *models.Tournament
		balance    int64
		wantErr    error
	}{
		{
			name:       "already joined",
			tournament: newTestTournament(seated(testUserID)),
			balance:    50,
			wantErr:    models.ErrAlreadyJoined,
		},
		{
			name:       "insufficient funds",
			tournament: newTestTournament(),
			balance:    99,
			wantErr:    models.ErrInsufficientFunds,
		},
		{
			name: "tournament full",
			tournament: newTestTournament(func(t *models.Tournament) {
				t.MaxParticipants = 2
			}, seated("a", "b")),
			balance: 1000,
			wantErr: models.ErrTournamentFull,
		},
		{
			name: "registration closed",
			tournament: newTestTournament(func(t *models.Tournament) {
				t.Status = models.TournamentStatusLive
			}),
			balance: 1000,
			wantErr: models.ErrRegistrationClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mocks := NewTestMocks()

			mocks.Factory.On("SupportsTransactions").Return(true)
			mocks.UoW.On("Begin", ctx).Return(nil)
			mocks.UoW.On("Rollback").Return(nil)
			mocks.TournamentRepo.On("GetByID", ctx, tt.tournament.ID).Return(tt.tournament, nil)
			mocks.UserRepo.On("GetByID", ctx, testUserID).Return(newTestUser(tt.balance), nil)

			service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

			result, err := service.JoinTournament(ctx, testUserID, tt.tournament.ID, testDisplay)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
			mocks.UserRepo.AssertNotCalled(t, "ApplyBalanceChange", mock.Anything, mock.Anything)
			mocks.TournamentRepo.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
			mocks.UoW.AssertNotCalled(t, "Commit")
			mocks.AssertAllExpectations(t)
		})
	}
}

func TestJoinService_JoinTournament_InvalidDisplayName(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	for _, name := range []string{"", "ab", "has space", "way_too_long_display_name", "bad-dash"} {
		_, err := service.JoinTournament(ctx, testUserID, uuid.New(), name)
		assert.ErrorIs(t, err, models.ErrInvalidUsername, "name %q", name)
	}

	mocks.Factory.AssertNotCalled(t, "Create")
}

func TestJoinService_JoinTournament_NotFound(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tournamentID := uuid.New()

	mocks.Factory.On("SupportsTransactions").Return(true)
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.TournamentRepo.On("GetByID", ctx, tournamentID).Return(nil, nil)

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	_, err := service.JoinTournament(ctx, testUserID, tournamentID, testDisplay)

	assert.ErrorIs(t, err, models.ErrTournamentNotFound)
	mocks.AssertAllExpectations(t)
}

func TestJoinService_JoinTournament_SeatLostAfterDebitRollsBack(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tournament := newTestTournament()

	mocks.Factory.On("SupportsTransactions").Return(true)
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.TournamentRepo.On("GetByID", ctx, tournament.ID).Return(tournament, nil)
	mocks.UserRepo.On("GetByID", ctx, testUserID).Return(newTestUser(1000), nil)
	mocks.UserRepo.On("ApplyBalanceChange", ctx, entryDebit(100)).Return(&models.BalanceHistory{
		UserID: testUserID, BalanceBefore: 1000, BalanceAfter: 900, ChangeAmount: -100,
	}, nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return()
	// A concurrent join took the last seat between the read and the guarded write
	mocks.TournamentRepo.On("AddParticipant", ctx, tournament.ID, mock.Anything).Return(nil, models.ErrTournamentFull)

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	_, err := service.JoinTournament(ctx, testUserID, tournament.ID, testDisplay)

	assert.ErrorIs(t, err, models.ErrTournamentFull)
	mocks.UoW.AssertNotCalled(t, "Commit")
	mocks.HistoryRepo.AssertNotCalled(t, "GetByOperationID", mock.Anything, mock.Anything)
	mocks.AssertAllExpectations(t)
}

func TestJoinService_JoinTournament_CompensatesRejectedSeat(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tournament := newTestTournament()
	tournamentID := tournament.ID

	mocks.Factory.On("SupportsTransactions").Return(false)
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.UoW.On("Commit").Return(nil)
	mocks.TournamentRepo.On("GetByID", ctx, tournament.ID).Return(tournament, nil)
	mocks.UserRepo.On("GetByID", ctx, testUserID).Return(newTestUser(1000), nil)

	var debitOp uuid.UUID
	mocks.UserRepo.On("ApplyBalanceChange", ctx, entryDebit(100)).
		Run(func(args mock.Arguments) {
			debitOp = args.Get(1).(*models.BalanceChange).OperationID
		}).
		Return(&models.BalanceHistory{UserID: testUserID, BalanceBefore: 1000, BalanceAfter: 900, ChangeAmount: -100}, nil)
	mocks.TournamentRepo.On("AddParticipant", ctx, tournament.ID, mock.Anything).Return(nil, models.ErrRegistrationClosed)

	mocks.HistoryRepo.On("GetByOperationID", mock.Anything, mock.Anything).Return(&models.BalanceHistory{
		UserID:       testUserID,
		ChangeAmount: -100,
		RelatedID:    &tournamentID,
	}, nil)
	mocks.UserRepo.On("ApplyBalanceChange", mock.Anything, entryRefund()).Return(&models.BalanceHistory{
		UserID: testUserID, BalanceBefore: 900, BalanceAfter: 1000, ChangeAmount: 100,
		TransactionType: models.TransactionTypeTournamentEntryRefund,
	}, nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return()
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.JoinCompensatedEvent")).Return()

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	_, err := service.JoinTournament(ctx, testUserID, tournament.ID, testDisplay)

	assert.ErrorIs(t, err, models.ErrRegistrationClosed)
	mocks.HistoryRepo.AssertCalled(t, "GetByOperationID", mock.Anything, debitOp)
	mocks.UserRepo.AssertCalled(t, "ApplyBalanceChange", mock.Anything, mock.MatchedBy(func(c *models.BalanceChange) bool {
		return c.OperationID == models.RefundOperationID(debitOp) && c.Amount == 100
	}))
	mocks.TournamentRepo.AssertNotCalled(t, "RemoveParticipant", mock.Anything, mock.Anything, mock.Anything)
	mocks.AssertAllExpectations(t)
}

func TestJoinService_JoinTournament_CompensationReleasesSeatWhenMirrorFails(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tournament := newTestTournament()
	tournamentID := tournament.ID
	mirrorErr := errors.New("joined set rejected write")

	mocks.Factory.On("SupportsTransactions").Return(false)
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.UoW.On("Commit").Return(nil)
	mocks.TournamentRepo.On("GetByID", ctx, tournament.ID).Return(tournament, nil)
	mocks.UserRepo.On("GetByID", ctx, testUserID).Return(newTestUser(1000), nil)
	mocks.UserRepo.On("ApplyBalanceChange", ctx, entryDebit(100)).Return(&models.BalanceHistory{
		UserID: testUserID, BalanceBefore: 1000, BalanceAfter: 900, ChangeAmount: -100,
	}, nil)
	mocks.TournamentRepo.On("AddParticipant", ctx, tournament.ID, mock.Anything).Return(&models.Participant{
		UserID: testUserID, DisplayName: testDisplay, SeatNumber: 1,
	}, nil)
	mocks.UserRepo.On("AddJoinedTournament", mock.Anything, testUserID, tournament.ID).Return(mirrorErr)
	mocks.TournamentRepo.On("RemoveParticipant", mock.Anything, tournament.ID, testUserID).Return(true, nil)
	mocks.HistoryRepo.On("GetByOperationID", mock.Anything, mock.Anything).Return(&models.BalanceHistory{
		UserID: testUserID, ChangeAmount: -100, RelatedID: &tournamentID,
	}, nil)
	mocks.UserRepo.On("ApplyBalanceChange", mock.Anything, entryRefund()).Return(&models.BalanceHistory{
		UserID: testUserID, BalanceBefore: 900, BalanceAfter: 1000, ChangeAmount: 100,
	}, nil)
	mocks.EventPublisher.On("Publish", mock.Anything).Return()

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	_, err := service.JoinTournament(ctx, testUserID, tournament.ID, testDisplay)

	assert.ErrorIs(t, err, mirrorErr)
	mocks.EventPublisher.AssertNotCalled(t, "Publish", mock.AnythingOfType("events.ParticipantJoinedEvent"))
	mocks.AssertAllExpectations(t)
}

func TestJoinService_JoinTournament_UnconfirmedRefundIsStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tournament := newTestTournament()

	mocks.Factory.On("SupportsTransactions").Return(false)
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.TournamentRepo.On("GetByID", ctx, tournament.ID).Return(tournament, nil)
	mocks.UserRepo.On("GetByID", ctx, testUserID).Return(newTestUser(1000), nil)
	mocks.UserRepo.On("ApplyBalanceChange", ctx, entryDebit(100)).Return(&models.BalanceHistory{
		UserID: testUserID, BalanceBefore: 1000, BalanceAfter: 900, ChangeAmount: -100,
	}, nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return()
	mocks.TournamentRepo.On("AddParticipant", ctx, tournament.ID, mock.Anything).Return(nil, models.ErrTournamentFull)
	mocks.HistoryRepo.On("GetByOperationID", mock.Anything, mock.Anything).Return(nil, errors.New("ledger offline"))

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	_, err := service.JoinTournament(ctx, testUserID, tournament.ID, testDisplay)

	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	mocks.UoW.AssertNotCalled(t, "Commit")
	mocks.AssertAllExpectations(t)
}

func TestJoinService_JoinTournament_UnreleasedSeatKeepsFee(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tournament := newTestTournament()
	mirrorErr := errors.New("joined set rejected write")

	mocks.Factory.On("SupportsTransactions").Return(false)
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.TournamentRepo.On("GetByID", ctx, tournament.ID).Return(tournament, nil)
	mocks.UserRepo.On("GetByID", ctx, testUserID).Return(newTestUser(1000), nil)
	mocks.UserRepo.On("ApplyBalanceChange", ctx, entryDebit(100)).Return(&models.BalanceHistory{
		UserID: testUserID, BalanceBefore: 1000, BalanceAfter: 900, ChangeAmount: -100,
	}, nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return()
	mocks.TournamentRepo.On("AddParticipant", ctx, tournament.ID, mock.Anything).Return(&models.Participant{
		UserID: testUserID, DisplayName: testDisplay, SeatNumber: 1,
	}, nil)
	mocks.UserRepo.On("AddJoinedTournament", mock.Anything, testUserID, tournament.ID).Return(mirrorErr)
	mocks.TournamentRepo.On("RemoveParticipant", mock.Anything, tournament.ID, testUserID).
		Return(false, errors.New("tournament document locked"))

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	_, err := service.JoinTournament(ctx, testUserID, tournament.ID, testDisplay)

	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	mocks.HistoryRepo.AssertNotCalled(t, "GetByOperationID", mock.Anything, mock.Anything)
	mocks.UserRepo.AssertNotCalled(t, "ApplyBalanceChange", mock.Anything, entryRefund())
	mocks.UoW.AssertNotCalled(t, "Commit")
	mocks.AssertAllExpectations(t)
}

func TestJoinService_JoinTournament_RepeatRepairsJoinedSet(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tournament := newTestTournament(seated(testUserID))

	mocks.Factory.On("SupportsTransactions").Return(false)
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.TournamentRepo.On("GetByID", ctx, tournament.ID).Return(tournament, nil)
	mocks.UserRepo.On("GetByID", ctx, testUserID).Return(newTestUser(900), nil)
	mocks.UserRepo.On("AddJoinedTournament", ctx, testUserID, tournament.ID).Return(nil)

	service := NewJoinService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.Second)

	_, err := service.JoinTournament(ctx, testUserID, tournament.ID, testDisplay)

	assert.ErrorIs(t, err, models.ErrAlreadyJoined)
	mocks.UserRepo.AssertNotCalled(t, "ApplyBalanceChange", mock.Anything, mock.Anything)
	mocks.AssertAllExpectations(t)
}
