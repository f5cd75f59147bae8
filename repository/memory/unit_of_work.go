package memory

import (
	"context"
	"fmt"

	"tourney/events"
	"tourney/service"
)

// unitOfWork groups repositories over the store. Writes apply immediately;
// Commit only releases the buffered events and Rollback drops them.
type unitOfWork struct {
	store            *Store
	ctx              context.Context
	started          bool
	transactionalBus *events.TransactionalBus
	tournamentRepo   *TournamentRepository
	userRepo         *UserRepository
	historyRepo      *BalanceHistoryRepository
}

// NewUnitOfWorkFactory creates a UnitOfWork factory backed by the store
func NewUnitOfWorkFactory(store *Store, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{store: store, eventBus: eventBus}
}

type unitOfWorkFactory struct {
	store    *Store
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// SupportsTransactions is false: each repository call commits on its own
func (f *unitOfWorkFactory) SupportsTransactions() bool {
	return false
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.started {
		return fmt.Errorf("unit of work already started")
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	u.started = true
	u.ctx = ctx
	u.tournamentRepo = NewTournamentRepository(u.store)
	u.userRepo = NewUserRepository(u.store)
	u.historyRepo = NewBalanceHistoryRepository(u.store)
	return nil
}

func (u *unitOfWork) Commit() error {
	if !u.started {
		return fmt.Errorf("no unit of work to commit")
	}
	u.started = false
	u.transactionalBus.Flush(u.ctx)
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.started {
		return nil
	}
	u.started = false
	u.transactionalBus.Discard()
	return nil
}

func (u *unitOfWork) TournamentRepository() service.TournamentRepository {
	if u.tournamentRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.tournamentRepo
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	if u.historyRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.historyRepo
}

func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
