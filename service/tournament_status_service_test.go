package service

import (
	"context"
	"testing"
	"time"

	"tourney/events"
	"tourney/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func scheduled(date time.Time, hhmm string) func(*models.Tournament) {
	return func(t *models.Tournament) {
		t.TournamentDate = date
		t.TournamentTime = hhmm
	}
}

func TestTournamentStatusService_ReconcileStatuses(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	today := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	due := newTestTournament(scheduled(today, "17:30"))
	dueExactly := newTestTournament(scheduled(today, "18:00"))
	later := newTestTournament(scheduled(today, "18:01"))
	broken := newTestTournament(scheduled(today, "25:99"))
	alreadyMoved := newTestTournament(scheduled(today.AddDate(0, 0, -1), "09:00"))

	upcoming := models.TournamentStatusUpcoming
	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.UoW.On("Commit").Return(nil)
	mocks.TournamentRepo.On("GetAll", ctx, &upcoming).Return([]*models.Tournament{due, dueExactly, later, broken, alreadyMoved}, nil)
	mocks.TournamentRepo.On("TransitionStatus", ctx, due.ID, models.TournamentStatusUpcoming, models.TournamentStatusLive).Return(true, nil)
	mocks.TournamentRepo.On("TransitionStatus", ctx, dueExactly.ID, models.TournamentStatusUpcoming, models.TournamentStatusLive).Return(true, nil)
	// Another process promoted this one first
	mocks.TournamentRepo.On("TransitionStatus", ctx, alreadyMoved.ID, models.TournamentStatusUpcoming, models.TournamentStatusLive).Return(false, nil)
	mocks.EventPublisher.On("Publish", mock.MatchedBy(func(e events.TournamentStatusChangeEvent) bool {
		return (e.TournamentID == due.ID || e.TournamentID == dueExactly.ID) && e.NewStatus == models.TournamentStatusLive
	})).Return().Twice()

	service := NewTournamentStatusService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.UTC)

	result, err := service.ReconcileStatuses(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, result.UpdatedCount)
	assert.Equal(t, 5, result.Examined)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failures)
	mocks.TournamentRepo.AssertNotCalled(t, "TransitionStatus", ctx, later.ID, mock.Anything, mock.Anything)
	mocks.TournamentRepo.AssertNotCalled(t, "TransitionStatus", ctx, broken.ID, mock.Anything, mock.Anything)
	mocks.AssertAllExpectations(t)
}

func TestTournamentStatusService_ReconcileStatuses_FailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	yesterday := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

	failing := newTestTournament(scheduled(yesterday, "10:00"))
	healthy := newTestTournament(scheduled(yesterday, "11:00"))

	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.UoW.On("Commit").Return(nil)
	mocks.TournamentRepo.On("GetAll", ctx, mock.Anything).Return([]*models.Tournament{failing, healthy}, nil)
	mocks.TournamentRepo.On("TransitionStatus", ctx, failing.ID, mock.Anything, mock.Anything).Return(false, models.ErrStoreUnavailable)
	mocks.TournamentRepo.On("TransitionStatus", ctx, healthy.ID, mock.Anything, mock.Anything).Return(true, nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.TournamentStatusChangeEvent")).Return().Once()

	service := NewTournamentStatusService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.UTC)

	result, err := service.ReconcileStatuses(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, failing.ID, result.Failures[0].TournamentID)
	assert.ErrorIs(t, result.Failures[0].Err, models.ErrStoreUnavailable)
	assert.Equal(t, failing.ID, FailedTournamentIDs(result)[0])
	mocks.AssertAllExpectations(t)
}

func TestTournamentStatusService_ReconcileStatuses_ListFailure(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()

	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.TournamentRepo.On("GetAll", ctx, mock.Anything).Return(nil, models.ErrStoreUnavailable)

	service := NewTournamentStatusService(mocks.Factory, clockwork.NewFakeClockAt(testNow), time.UTC)

	result, err := service.ReconcileStatuses(ctx)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	mocks.AssertAllExpectations(t)
}

func TestTournamentStatusService_ReconcileStatuses_UsesConfiguredTimezone(t *testing.T) {
	ctx := context.Background()
	mocks := NewTestMocks()
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 in Tokyo on the 14th is 11:00 UTC, already past the 18:00 UTC clock
	tournament := newTestTournament(scheduled(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), "20:00"))

	mocks.UoW.On("Begin", ctx).Return(nil)
	mocks.UoW.On("Rollback").Return(nil)
	mocks.UoW.On("Commit").Return(nil)
	mocks.TournamentRepo.On("GetAll", ctx, mock.Anything).Return([]*models.Tournament{tournament}, nil)
	mocks.TournamentRepo.On("TransitionStatus", ctx, tournament.ID, models.TournamentStatusUpcoming, models.TournamentStatusLive).Return(true, nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.TournamentStatusChangeEvent")).Return()

	service := NewTournamentStatusService(mocks.Factory, clockwork.NewFakeClockAt(testNow), tokyo)

	result, err := service.ReconcileStatuses(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedCount)
	mocks.AssertAllExpectations(t)
}
