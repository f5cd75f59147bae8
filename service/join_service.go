package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourney/events"
	"tourney/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// DefaultCompensationTimeout bounds how long a failed join keeps retrying its refund
const DefaultCompensationTimeout = 30 * time.Second

// joinService implements the JoinService interface
type joinService struct {
	uowFactory          UnitOfWorkFactory
	clock               clockwork.Clock
	compensationTimeout time.Duration
}

// NewJoinService creates a new join coordinator
func NewJoinService(uowFactory UnitOfWorkFactory, clock clockwork.Clock, compensationTimeout time.Duration) JoinService {
	if compensationTimeout <= 0 {
		compensationTimeout = DefaultCompensationTimeout
	}
	return &joinService{
		uowFactory:          uowFactory,
		clock:               clock,
		compensationTimeout: compensationTimeout,
	}
}

// JoinTournament debits the entry fee and grants a seat as one atomic unit.
// Stores with transactions do both in one; otherwise a failed seat claim is refunded.
func (s *joinService) JoinTournament(ctx context.Context, userID string, tournamentID uuid.UUID, displayName string) (*models.JoinResult, error) {
	name, err := models.NormalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	if s.uowFactory.SupportsTransactions() {
		return s.joinInTransaction(ctx, userID, tournamentID, name)
	}
	return s.joinWithCompensation(ctx, userID, tournamentID, name)
}

// validateJoin checks a fresh read of the user and tournament.
// A repeated join is reported as AlreadyJoined before any balance check so a retry
// after success is never mistaken for a funding problem.
func validateJoin(user *models.User, tournament *models.Tournament) error {
	switch {
	case tournament.HasParticipant(user.UserID):
		return models.ErrAlreadyJoined
	case !user.CanAfford(tournament.EntryFee):
		return models.ErrInsufficientFunds
	case tournament.IsFull():
		return models.ErrTournamentFull
	case !tournament.IsUpcoming():
		return models.ErrRegistrationClosed
	}
	return nil
}

// loadJoinState reads the authoritative user and tournament records
func loadJoinState(ctx context.Context, uow UnitOfWork, userID string, tournamentID uuid.UUID) (*models.User, *models.Tournament, error) {
	tournament, err := uow.TournamentRepository().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament == nil {
		return nil, nil, models.ErrTournamentNotFound
	}

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil, models.ErrUserNotFound
	}

	return user, tournament, nil
}

func entryChange(userID string, tournament *models.Tournament, operationID uuid.UUID) models.BalanceChange {
	tournamentID := tournament.ID
	return models.BalanceChange{
		OperationID:     operationID,
		UserID:          userID,
		Amount:          tournament.EntryFee,
		TransactionType: models.TransactionTypeTournamentEntry,
		RelatedID:       &tournamentID,
		Metadata: map[string]any{
			"tournament_id": tournament.ID.String(),
			"game_name":     tournament.GameName,
		},
	}
}

// joinInTransaction performs every read and write inside one store transaction
func (s *joinService) joinInTransaction(ctx context.Context, userID string, tournamentID uuid.UUID, displayName string) (*models.JoinResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, tournament, err := loadJoinState(ctx, uow, userID, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := validateJoin(user, tournament); err != nil {
		return nil, err
	}

	operationID := uuid.New()
	ledger := NewWalletLedger(uow.UserRepository(), uow.EventBus())
	debit, err := ledger.Debit(ctx, entryChange(userID, tournament, operationID))
	if err != nil {
		return nil, debitError(err)
	}

	participant, err := uow.TournamentRepository().AddParticipant(ctx, tournamentID, &models.Participant{
		UserID:      userID,
		DisplayName: displayName,
		Email:       user.Email,
		JoinedAt:    s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := uow.UserRepository().AddJoinedTournament(ctx, userID, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to record joined tournament: %w", err)
	}

	uow.EventBus().Publish(joinedEvent(tournament, participant))

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":       userID,
		"tournament_id": tournamentID,
		"seat":          participant.SeatNumber,
		"new_balance":   debit.BalanceAfter,
	}).Info("User joined tournament")

	return &models.JoinResult{
		TournamentID: tournamentID,
		Participant:  participant,
		EntryFee:     tournament.EntryFee,
		NewBalance:   debit.BalanceAfter,
		OperationID:  operationID,
	}, nil
}

// joinWithCompensation runs the join as a sequence of single-record guarded writes:
// debit, seat claim, then joined-set mirror. A failure after the debit releases
// whatever was written and refunds the fee before the error is returned.
func (s *joinService) joinWithCompensation(ctx context.Context, userID string, tournamentID uuid.UUID, displayName string) (*models.JoinResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer uow.Rollback()

	user, tournament, err := loadJoinState(ctx, uow, userID, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := validateJoin(user, tournament); err != nil {
		if errors.Is(err, models.ErrAlreadyJoined) && !user.HasJoined(tournamentID) {
			s.repairJoinedSet(ctx, uow, userID, tournamentID)
		}
		return nil, err
	}

	operationID := uuid.New()
	ledger := NewWalletLedger(uow.UserRepository(), uow.EventBus())
	debit, err := ledger.Debit(ctx, entryChange(userID, tournament, operationID))
	if err != nil {
		// The guarded debit either applied fully or not at all. An ambiguous
		// failure is settled by the refund, which is a no-op if the debit never landed.
		if !errors.Is(err, models.ErrInsufficientFunds) && !errors.Is(err, models.ErrUserNotFound) {
			s.compensate(ctx, uow, tournament, userID, operationID, false, err)
		}
		return nil, debitError(err)
	}

	participant, err := uow.TournamentRepository().AddParticipant(ctx, tournamentID, &models.Participant{
		UserID:      userID,
		DisplayName: displayName,
		Email:       user.Email,
		JoinedAt:    s.clock.Now(),
	})
	if err != nil {
		if cerr := s.compensate(ctx, uow, tournament, userID, operationID, false, err); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}

	err = s.retry(ctx, func(ctx context.Context) error {
		return uow.UserRepository().AddJoinedTournament(ctx, userID, tournamentID)
	})
	if err != nil {
		if cerr := s.compensate(ctx, uow, tournament, userID, operationID, true, err); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("failed to record joined tournament: %w", err)
	}

	uow.EventBus().Publish(joinedEvent(tournament, participant))
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to publish join: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":       userID,
		"tournament_id": tournamentID,
		"seat":          participant.SeatNumber,
		"new_balance":   debit.BalanceAfter,
	}).Info("User joined tournament")

	return &models.JoinResult{
		TournamentID: tournamentID,
		Participant:  participant,
		EntryFee:     tournament.EntryFee,
		NewBalance:   debit.BalanceAfter,
		OperationID:  operationID,
	}, nil
}

// compensate undoes a partially applied join. It runs detached from the caller's
// context so an abandoned request still restores the wallet.
// A non-nil return means the refund could not be confirmed.
func (s *joinService) compensate(ctx context.Context, uow UnitOfWork, tournament *models.Tournament, userID string, debitOperationID uuid.UUID, releaseSeat bool, cause error) error {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	logger := log.WithFields(log.Fields{
		"user_id":       userID,
		"tournament_id": tournament.ID,
		"operation_id":  debitOperationID,
	})

	if releaseSeat {
		err := s.retry(compCtx, func(ctx context.Context) error {
			_, err := uow.TournamentRepository().RemoveParticipant(ctx, tournament.ID, userID)
			return err
		})
		if err != nil {
			// The seat stays paid for; a later join attempt repairs the joined set
			logger.WithError(err).Error("Failed to release seat during join compensation, keeping entry fee")
			return fmt.Errorf("%w: seat release for operation %s not confirmed: %w", models.ErrStoreUnavailable, debitOperationID, err)
		}
	}

	refundID := models.RefundOperationID(debitOperationID)
	ledger := NewWalletLedger(uow.UserRepository(), uow.EventBus())

	var refunded *models.BalanceHistory
	err := s.retry(compCtx, func(ctx context.Context) error {
		debit, err := uow.BalanceHistoryRepository().GetByOperationID(ctx, debitOperationID)
		if err != nil {
			return err
		}
		if debit == nil {
			// The debit never applied, so there is nothing to refund
			return nil
		}
		refunded, err = ledger.Credit(ctx, models.BalanceChange{
			OperationID:     refundID,
			UserID:          userID,
			Amount:          -debit.ChangeAmount,
			TransactionType: models.TransactionTypeTournamentEntryRefund,
			RelatedID:       debit.RelatedID,
			Metadata: map[string]any{
				"tournament_id":      tournament.ID.String(),
				"debit_operation_id": debitOperationID.String(),
				"reason":             cause.Error(),
			},
		})
		return err
	})
	if err != nil {
		logger.WithError(err).Error("Failed to refund entry fee after rejected join")
		return fmt.Errorf("%w: refund of operation %s not confirmed: %w", models.ErrStoreUnavailable, debitOperationID, err)
	}

	if refunded != nil {
		logger.WithField("reason", cause.Error()).Warn("Refunded entry fee after rejected join")
		uow.EventBus().Publish(events.JoinCompensatedEvent{
			TournamentID:      tournament.ID,
			UserID:            userID,
			Amount:            refunded.ChangeAmount,
			RefundOperationID: refundID,
			Reason:            cause.Error(),
		})
		// Compensation events are released even though the join itself failed
		if err := uow.Commit(); err != nil {
			logger.WithError(err).Warn("Failed to publish join compensation events")
		}
	}
	return nil
}

// repairJoinedSet adds a seated user's missing joined-set entry, left behind when
// an earlier join kept the seat but could not record it
func (s *joinService) repairJoinedSet(ctx context.Context, uow UnitOfWork, userID string, tournamentID uuid.UUID) {
	logger := log.WithFields(log.Fields{
		"user_id":       userID,
		"tournament_id": tournamentID,
	})
	if err := uow.UserRepository().AddJoinedTournament(ctx, userID, tournamentID); err != nil {
		logger.WithError(err).Warn("Failed to repair joined tournament entry")
		return
	}
	logger.Info("Repaired joined tournament entry for seated user")
}

// retry runs op with exponential backoff until it succeeds, returns a permanent
// error, or ctx is done
func (s *joinService) retry(ctx context.Context, op func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = s.compensationTimeout

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !models.IsRetryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// debitError keeps join rejections verbatim and wraps everything else
func debitError(err error) error {
	if models.IsValidationError(err) || errors.Is(err, models.ErrUserNotFound) {
		return err
	}
	return fmt.Errorf("failed to debit entry fee: %w", err)
}

func joinedEvent(tournament *models.Tournament, participant *models.Participant) events.ParticipantJoinedEvent {
	return events.ParticipantJoinedEvent{
		TournamentID:    tournament.ID,
		GameName:        tournament.GameName,
		UserID:          participant.UserID,
		DisplayName:     participant.DisplayName,
		SeatNumber:      participant.SeatNumber,
		MaxParticipants: tournament.MaxParticipants,
		EntryFee:        tournament.EntryFee,
	}
}
