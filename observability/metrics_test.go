package observability

import (
	"context"
	"testing"
	"time"

	"tourney/events"
	"tourney/models"
	"tourney/service"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentJoinService_CountsOutcomes(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetrics()
	next := new(service.MockJoinService)
	tournamentID := uuid.New()

	next.On("JoinTournament", ctx, "winner", tournamentID, "winner").Return(&models.JoinResult{TournamentID: tournamentID}, nil)
	next.On("JoinTournament", ctx, "late", tournamentID, "late_one").Return(nil, models.ErrTournamentFull)

	joins := InstrumentJoinService(next, metrics)

	_, err := joins.JoinTournament(ctx, "winner", tournamentID, "winner")
	require.NoError(t, err)
	_, err = joins.JoinTournament(ctx, "late", tournamentID, "late_one")
	assert.ErrorIs(t, err, models.ErrTournamentFull)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.joinAttempts.WithLabelValues("Joined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.joinAttempts.WithLabelValues("TournamentFull")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.joinLatency))
	next.AssertExpectations(t)
}

func TestInstrumentStatusService_RecordsPasses(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetrics()
	next := new(service.MockTournamentStatusService)

	next.On("ReconcileStatuses", ctx).Return(&models.ReconcileResult{
		UpdatedCount: 3,
		Failures:     []models.ReconcileFailure{{TournamentID: uuid.New(), Err: models.ErrStoreUnavailable}},
	}, nil).Once()
	next.On("ReconcileStatuses", ctx).Return(nil, models.ErrStoreUnavailable).Once()

	statuses := InstrumentStatusService(next, metrics)

	_, err := statuses.ReconcileStatuses(ctx)
	require.NoError(t, err)
	_, err = statuses.ReconcileStatuses(ctx)
	assert.Error(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.reconcileUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reconcileFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reconcilePasses.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reconcilePasses.WithLabelValues("error")))
}

func TestMetrics_CountsCompensationEvents(t *testing.T) {
	metrics := NewMetrics()
	bus := events.NewBus()
	metrics.SubscribeEvents(bus)

	bus.Emit(context.Background(), events.JoinCompensatedEvent{UserID: "u", Amount: 10})

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.compensations) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMetrics_ObserveHTTP(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveHTTP("/api/v1/tournaments", "GET", 200, 15*time.Millisecond)
	metrics.ObserveHTTP("/api/v1/tournaments", "GET", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.httpRequests.WithLabelValues("/api/v1/tournaments", "GET", "200")))

	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
