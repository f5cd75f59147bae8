package service

import (
	"context"
	"fmt"

	"tourney/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// tournamentAdminService implements the TournamentAdminService interface
type tournamentAdminService struct {
	uowFactory UnitOfWorkFactory
}

// NewTournamentAdminService creates a new tournament admin service
func NewTournamentAdminService(uowFactory UnitOfWorkFactory) TournamentAdminService {
	return &tournamentAdminService{uowFactory: uowFactory}
}

// CreateTournament validates and stores a new upcoming tournament
func (s *tournamentAdminService) CreateTournament(ctx context.Context, tournament *models.Tournament) (*models.Tournament, error) {
	if tournament.ID == uuid.Nil {
		tournament.ID = uuid.New()
	}
	tournament.Status = models.TournamentStatusUpcoming
	tournament.Participants = []*models.Participant{}
	if tournament.GameName == "" {
		return nil, fmt.Errorf("%w: game name is required", models.ErrInvalidTournament)
	}
	if err := tournament.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidTournament, err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.TournamentRepository().Create(ctx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"tournament_id":    tournament.ID,
		"game_name":        tournament.GameName,
		"max_participants": tournament.MaxParticipants,
	}).Info("Tournament created")

	return tournament, nil
}

// UpdateMatchDetails sets or clears match details while the tournament is upcoming or live
func (s *tournamentAdminService) UpdateMatchDetails(ctx context.Context, tournamentID uuid.UUID, details *string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.TournamentRepository().UpdateMatchDetails(ctx, tournamentID, details); err != nil {
		return err
	}

	return uow.Commit()
}
