package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tourney/models"
	"tourney/service"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func counting(counter *atomic.Int32) func(mock.Arguments) {
	return func(mock.Arguments) { counter.Add(1) }
}

func TestReconcileWorker_RunsImmediatelyAndOnInterval(t *testing.T) {
	var passes atomic.Int32
	statusService := new(service.MockTournamentStatusService)
	statusService.On("ReconcileStatuses", mock.Anything).Run(counting(&passes)).Return(&models.ReconcileResult{Examined: 1}, nil)

	clock := clockwork.NewFakeClock()
	worker := NewReconcileWorker(statusService, time.Minute, clock)

	stop, err := worker.Start(context.Background())
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool { return passes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return passes.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestReconcileWorker_SurvivesFailedPass(t *testing.T) {
	var passes atomic.Int32
	statusService := new(service.MockTournamentStatusService)
	statusService.On("ReconcileStatuses", mock.Anything).Run(counting(&passes)).Return(nil, errors.New("store unavailable")).Once()
	statusService.On("ReconcileStatuses", mock.Anything).Run(counting(&passes)).Return(&models.ReconcileResult{
		Examined: 2,
		Failures: []models.ReconcileFailure{{TournamentID: uuid.New(), Err: models.ErrStoreUnavailable}},
	}, nil)

	clock := clockwork.NewFakeClock()
	stop, err := NewReconcileWorker(statusService, time.Minute, clock).Start(context.Background())
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return passes.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestReconcileWorker_ZeroIntervalDisables(t *testing.T) {
	statusService := new(service.MockTournamentStatusService)

	stop, err := NewReconcileWorker(statusService, 0, clockwork.NewFakeClock()).Start(context.Background())
	require.NoError(t, err)
	stop()

	statusService.AssertNotCalled(t, "ReconcileStatuses", mock.Anything)
}

func TestReconcileWorker_CancelledContextSkipsPass(t *testing.T) {
	statusService := new(service.MockTournamentStatusService)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := NewReconcileWorker(statusService, time.Minute, clockwork.NewFakeClock())
	worker.runOnce(ctx)

	statusService.AssertNotCalled(t, "ReconcileStatuses", mock.Anything)
}
