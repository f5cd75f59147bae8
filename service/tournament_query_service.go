package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tourney/models"

	log "github.com/sirupsen/logrus"
)

// tournamentQueryService implements the TournamentQueryService interface
type tournamentQueryService struct {
	uowFactory    UnitOfWorkFactory
	statusService TournamentStatusService
	location      *time.Location
}

// NewTournamentQueryService creates a listing service that reconciles statuses before each read
func NewTournamentQueryService(uowFactory UnitOfWorkFactory, statusService TournamentStatusService, location *time.Location) TournamentQueryService {
	if location == nil {
		location = time.UTC
	}
	return &tournamentQueryService{
		uowFactory:    uowFactory,
		statusService: statusService,
		location:      location,
	}
}

// ListTournaments returns all tournaments ordered upcoming, live, completed
func (s *tournamentQueryService) ListTournaments(ctx context.Context, viewerID string) ([]*models.TournamentView, error) {
	s.reconcile(ctx)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tournaments, err := uow.TournamentRepository().GetAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}

	views := make([]*models.TournamentView, 0, len(tournaments))
	for _, t := range tournaments {
		views = append(views, s.view(t, viewerID != "" && t.HasParticipant(viewerID)))
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Tournament.Status != b.Tournament.Status {
			return a.Tournament.Status.SortOrder() < b.Tournament.Status.SortOrder()
		}
		return a.ScheduledAt.Before(b.ScheduledAt)
	})

	return views, nil
}

// ListUserTournaments returns the tournaments in the user's joined set, newest scheduled first
func (s *tournamentQueryService) ListUserTournaments(ctx context.Context, userID string) ([]*models.TournamentView, error) {
	s.reconcile(ctx)

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

	tournaments, err := uow.TournamentRepository().GetByIDs(ctx, user.JoinedTournamentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get joined tournaments: %w", err)
	}

	views := make([]*models.TournamentView, 0, len(tournaments))
	for _, t := range tournaments {
		views = append(views, s.view(t, true))
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].ScheduledAt.After(views[j].ScheduledAt)
	})

	return views, nil
}

// reconcile repairs stale statuses before a read. A failed pass is logged and
// the listing is served anyway.
func (s *tournamentQueryService) reconcile(ctx context.Context) {
	if s.statusService == nil {
		return
	}
	if _, err := s.statusService.ReconcileStatuses(ctx); err != nil {
		log.WithError(err).Warn("Failed to reconcile tournament statuses before listing")
	}
}

func (s *tournamentQueryService) view(t *models.Tournament, joined bool) *models.TournamentView {
	view := &models.TournamentView{
		Tournament: t,
		HasJoined:  joined,
	}
	if scheduledAt, err := t.ScheduledAt(s.location); err == nil {
		view.ScheduledAt = scheduledAt
	}
	if t.MatchDetailsVisibleTo(joined) {
		details := *t.MatchDetails
		view.MatchDetails = &details
	}
	return view
}
