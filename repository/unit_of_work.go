package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourney/database"
	"tourney/events"
	"tourney/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface on a pgx transaction
type unitOfWork struct {
	db                 *database.DB
	tx                 pgx.Tx
	ctx                context.Context
	timeout            time.Duration
	transactionalBus   *events.TransactionalBus
	tournamentRepo     service.TournamentRepository
	userRepo           service.UserRepository
	balanceHistoryRepo service.BalanceHistoryRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory.
// timeout bounds every statement issued through the unit of work.
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus, timeout time.Duration) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
		timeout:  timeout,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
	timeout  time.Duration
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		timeout:          f.timeout,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

func (f *unitOfWorkFactory) SupportsTransactions() bool {
	return true
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	beginCtx, cancel := withStoreTimeout(ctx, u.timeout)
	defer cancel()

	tx, err := u.db.BeginTx(beginCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classifyError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	u.tx = tx
	u.ctx = ctx

	u.tournamentRepo = newTournamentRepositoryWithTx(tx, u.timeout)
	u.userRepo = newUserRepositoryWithTx(tx, u.timeout)
	u.balanceHistoryRepo = newBalanceHistoryRepositoryWithTx(tx, u.timeout)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	commitCtx, cancel := withStoreTimeout(u.ctx, u.timeout)
	defer cancel()

	err := u.tx.Commit(commitCtx)
	u.tx = nil
	if err != nil {
		u.transactionalBus.Discard()
		return classifyError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	// Flush pending events after successful commit
	u.transactionalBus.Flush(u.ctx)

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	// Rollback must run even when the caller's context is already cancelled
	rollbackCtx, cancel := withStoreTimeout(context.WithoutCancel(u.ctx), u.timeout)
	defer cancel()

	err := u.tx.Rollback(rollbackCtx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// TournamentRepository returns the tournament repository for this unit of work
func (u *unitOfWork) TournamentRepository() service.TournamentRepository {
	if u.tournamentRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.tournamentRepo
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	if u.balanceHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceHistoryRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
