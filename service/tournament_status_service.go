package service

import (
	"context"
	"fmt"
	"time"

	"tourney/events"
	"tourney/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// tournamentStatusService implements the TournamentStatusService interface
type tournamentStatusService struct {
	uowFactory UnitOfWorkFactory
	clock      clockwork.Clock
	location   *time.Location
}

// NewTournamentStatusService creates a new status engine.
// Tournament dates and times are interpreted in location.
func NewTournamentStatusService(uowFactory UnitOfWorkFactory, clock clockwork.Clock, location *time.Location) TournamentStatusService {
	if location == nil {
		location = time.UTC
	}
	return &tournamentStatusService{
		uowFactory: uowFactory,
		clock:      clock,
		location:   location,
	}
}

// ReconcileStatuses moves every upcoming tournament whose start time has passed to live.
// Each transition is applied on its own; one failure never blocks the others.
func (s *tournamentStatusService) ReconcileStatuses(ctx context.Context) (*models.ReconcileResult, error) {
	now := s.clock.Now()

	candidates, err := s.upcomingTournaments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming tournaments: %w", err)
	}

	result := &models.ReconcileResult{Examined: len(candidates)}

	for _, tournament := range candidates {
		due, err := tournament.ShouldGoLive(now, s.location)
		if err != nil {
			result.Skipped++
			log.WithFields(log.Fields{
				"tournament_id":   tournament.ID,
				"tournament_date": tournament.TournamentDate.Format(time.DateOnly),
				"tournament_time": tournament.TournamentTime,
			}).WithError(err).Warn("Skipping tournament with unusable schedule")
			continue
		}
		if !due {
			continue
		}

		applied, err := s.goLive(ctx, tournament)
		if err != nil {
			result.Failures = append(result.Failures, models.ReconcileFailure{TournamentID: tournament.ID, Err: err})
			log.WithFields(log.Fields{
				"tournament_id": tournament.ID,
			}).WithError(err).Error("Failed to transition tournament to live")
			continue
		}
		if applied {
			result.UpdatedCount++
		}
	}

	if result.UpdatedCount > 0 || len(result.Failures) > 0 {
		log.WithFields(log.Fields{
			"updated":  result.UpdatedCount,
			"examined": result.Examined,
			"skipped":  result.Skipped,
			"failed":   len(result.Failures),
		}).Info("Reconciled tournament statuses")
	}

	return result, nil
}

func (s *tournamentStatusService) upcomingTournaments(ctx context.Context) ([]*models.Tournament, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	status := models.TournamentStatusUpcoming
	tournaments, err := uow.TournamentRepository().GetAll(ctx, &status)
	if err != nil {
		return nil, err
	}

	// The store may ignore the filter; the status check keeps the engine correct either way
	upcoming := tournaments[:0]
	for _, t := range tournaments {
		if t.Status == models.TournamentStatusUpcoming {
			upcoming = append(upcoming, t)
		}
	}
	return upcoming, nil
}

// goLive applies one guarded transition. It reports false when another caller got there first.
func (s *tournamentStatusService) goLive(ctx context.Context, tournament *models.Tournament) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, err
	}
	defer uow.Rollback()

	applied, err := uow.TournamentRepository().TransitionStatus(ctx, tournament.ID, models.TournamentStatusUpcoming, models.TournamentStatusLive)
	if err != nil {
		return false, err
	}

	if applied {
		scheduledAt, _ := tournament.ScheduledAt(s.location)
		uow.EventBus().Publish(events.TournamentStatusChangeEvent{
			TournamentID: tournament.ID,
			GameName:     tournament.GameName,
			OldStatus:    models.TournamentStatusUpcoming,
			NewStatus:    models.TournamentStatusLive,
			ScheduledAt:  scheduledAt,
		})
	}

	if err := uow.Commit(); err != nil {
		return false, err
	}
	return applied, nil
}

// FailedTournamentIDs lists the tournaments a reconcile pass could not update
func FailedTournamentIDs(result *models.ReconcileResult) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(result.Failures))
	for _, f := range result.Failures {
		ids = append(ids, f.TournamentID)
	}
	return ids
}
