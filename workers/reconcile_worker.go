package workers

import (
	"context"
	"fmt"
	"time"

	"tourney/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// ReconcileWorker runs the status engine on a fixed interval
type ReconcileWorker struct {
	statusService service.TournamentStatusService
	interval      time.Duration
	clock         clockwork.Clock
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(statusService service.TournamentStatusService, interval time.Duration, clock clockwork.Clock) *ReconcileWorker {
	return &ReconcileWorker{
		statusService: statusService,
		interval:      interval,
		clock:         clock,
	}
}

// Start schedules the first pass immediately and one per interval after that.
// The returned cleanup function stops the scheduler and waits for a running pass.
func (w *ReconcileWorker) Start(ctx context.Context) (func(), error) {
	if w.interval <= 0 {
		log.Info("Reconcile worker disabled")
		return func() {}, nil
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(w.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.runOnce(ctx) }),
		gocron.WithName("reconcile-tournament-statuses"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to schedule reconcile job: %w", err)
	}

	scheduler.Start()
	log.WithField("interval", w.interval).Info("Reconcile worker started")

	return func() {
		if err := scheduler.Shutdown(); err != nil {
			log.WithError(err).Warn("Reconcile scheduler did not shut down cleanly")
		}
		log.Info("Reconcile worker stopped")
	}, nil
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := w.statusService.ReconcileStatuses(ctx)
	if err != nil {
		log.WithError(err).Error("Scheduled reconcile pass failed")
		return
	}

	entry := log.WithFields(log.Fields{
		"examined": result.Examined,
		"updated":  result.UpdatedCount,
		"skipped":  result.Skipped,
	})
	if len(result.Failures) > 0 {
		entry.WithField("failed_tournaments", service.FailedTournamentIDs(result)).Warn("Scheduled reconcile pass completed with failures")
		return
	}
	entry.Debug("Scheduled reconcile pass completed")
}
