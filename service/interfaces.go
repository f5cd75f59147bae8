package service

import (
	"context"

	"tourney/events"
	"tourney/models"

	"github.com/google/uuid"
)

// TournamentRepository defines the interface for tournament data access.
// Every mutation is a guarded conditional update; none of them overwrite blindly.
type TournamentRepository interface {
	// GetAll returns tournaments with participants, optionally filtered by status
	GetAll(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)

	// GetByID returns a tournament with its participants, or nil if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error)

	// GetByIDs returns the tournaments that exist among the given ids
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Tournament, error)

	// Create inserts a new tournament
	Create(ctx context.Context, tournament *models.Tournament) error

	// TransitionStatus sets status to `to` only while the stored status is still `from`.
	// It returns false when the precondition no longer holds.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.TournamentStatus) (bool, error)

	// AddParticipant appends a participant only while the tournament is upcoming,
	// has an open seat and does not already contain the user
	AddParticipant(ctx context.Context, tournamentID uuid.UUID, participant *models.Participant) (*models.Participant, error)

	// RemoveParticipant releases the user's seat, returning false if they held none
	RemoveParticipant(ctx context.Context, tournamentID uuid.UUID, userID string) (bool, error)

	// UpdateMatchDetails sets match details while the tournament is upcoming or live
	UpdateMatchDetails(ctx context.Context, tournamentID uuid.UUID, details *string) error
}

// UserRepository defines the interface for user and wallet data access
type UserRepository interface {
	// GetByID retrieves a user with their joined tournament ids, or nil if not found
	GetByID(ctx context.Context, userID string) (*models.User, error)

	// Create creates a new user with an empty wallet
	Create(ctx context.Context, userID, email string) (*models.User, error)

	// ApplyBalanceChange applies a signed amount to the wallet in one guarded, idempotent step.
	// The balance never goes below zero. Replaying an operation id returns the original entry.
	ApplyBalanceChange(ctx context.Context, change *models.BalanceChange) (*models.BalanceHistory, error)

	// AddJoinedTournament adds a tournament id to the user's joined set (idempotent)
	AddJoinedTournament(ctx context.Context, userID string, tournamentID uuid.UUID) error

	// RemoveJoinedTournament removes a tournament id from the user's joined set (idempotent)
	RemoveJoinedTournament(ctx context.Context, userID string, tournamentID uuid.UUID) error
}

// BalanceHistoryRepository defines the interface for reading the wallet ledger
type BalanceHistoryRepository interface {
	// GetByUser returns the most recent ledger entries for a user
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error)

	// GetByOperationID returns the entry for an operation, or nil if it was never applied
	GetByOperationID(ctx context.Context, operationID uuid.UUID) (*models.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for repository operations sharing one store session
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	TournamentRepository() TournamentRepository
	UserRepository() UserRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork

	// SupportsTransactions reports whether a unit of work spans multiple writes atomically.
	// When false each write commits on its own and callers must compensate on failure.
	SupportsTransactions() bool
}

// TournamentStatusService promotes tournaments along their lifecycle
type TournamentStatusService interface {
	// ReconcileStatuses moves every upcoming tournament whose start time has passed to live
	ReconcileStatuses(ctx context.Context) (*models.ReconcileResult, error)
}

// JoinService registers users in tournaments
type JoinService interface {
	// JoinTournament debits the entry fee and grants a seat as one atomic unit
	JoinTournament(ctx context.Context, userID string, tournamentID uuid.UUID, displayName string) (*models.JoinResult, error)
}

// TournamentQueryService serves tournament listings, reconciling statuses before each read
type TournamentQueryService interface {
	// ListTournaments returns all tournaments as seen by the viewer
	ListTournaments(ctx context.Context, viewerID string) ([]*models.TournamentView, error)

	// ListUserTournaments returns the tournaments the user has joined, newest first
	ListUserTournaments(ctx context.Context, userID string) ([]*models.TournamentView, error)
}

// TournamentAdminService covers tournament management performed outside the join flow
type TournamentAdminService interface {
	// CreateTournament validates and stores a new upcoming tournament
	CreateTournament(ctx context.Context, tournament *models.Tournament) (*models.Tournament, error)

	// UpdateMatchDetails sets or clears match details while the tournament is upcoming or live
	UpdateMatchDetails(ctx context.Context, tournamentID uuid.UUID, details *string) error
}

// UserService defines the interface for user and wallet operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates one funded with the initial balance
	GetOrCreateUser(ctx context.Context, userID, email string, initialBalance int64) (*models.User, error)

	// GetWallet returns the user's balance and recent ledger entries
	GetWallet(ctx context.Context, userID string, historyLimit int) (*models.WalletSummary, error)
}
