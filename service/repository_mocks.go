package service

import (
	"context"

	"tourney/events"
	"tourney/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockTournamentRepository is a mock implementation of TournamentRepository
type MockTournamentRepository struct {
	mock.Mock
}

func (m *MockTournamentRepository) GetAll(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Tournament), args.Error(1)
}

func (m *MockTournamentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tournament), args.Error(1)
}

func (m *MockTournamentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Tournament, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Tournament), args.Error(1)
}

func (m *MockTournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	args := m.Called(ctx, tournament)
	return args.Error(0)
}

func (m *MockTournamentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.TournamentStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockTournamentRepository) AddParticipant(ctx context.Context, tournamentID uuid.UUID, participant *models.Participant) (*models.Participant, error) {
	args := m.Called(ctx, tournamentID, participant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Participant), args.Error(1)
}

func (m *MockTournamentRepository) RemoveParticipant(ctx context.Context, tournamentID uuid.UUID, userID string) (bool, error) {
	args := m.Called(ctx, tournamentID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTournamentRepository) UpdateMatchDetails(ctx context.Context, tournamentID uuid.UUID, details *string) error {
	args := m.Called(ctx, tournamentID, details)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, userID, email string) (*models.User, error) {
	args := m.Called(ctx, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ApplyBalanceChange(ctx context.Context, change *models.BalanceChange) (*models.BalanceHistory, error) {
	args := m.Called(ctx, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceHistory), args.Error(1)
}

func (m *MockUserRepository) AddJoinedTournament(ctx context.Context, userID string, tournamentID uuid.UUID) error {
	args := m.Called(ctx, userID, tournamentID)
	return args.Error(0)
}

func (m *MockUserRepository) RemoveJoinedTournament(ctx context.Context, userID string, tournamentID uuid.UUID) error {
	args := m.Called(ctx, userID, tournamentID)
	return args.Error(0)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

func (m *MockBalanceHistoryRepository) GetByOperationID(ctx context.Context, operationID uuid.UUID) (*models.BalanceHistory, error) {
	args := m.Called(ctx, operationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceHistory), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork.
// Repository getters return whatever SetRepositories installed.
type MockUnitOfWork struct {
	mock.Mock
	tournamentRepo     TournamentRepository
	userRepo           UserRepository
	balanceHistoryRepo BalanceHistoryRepository
	eventBus           EventPublisher
}

// SetRepositories installs the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(tournamentRepo TournamentRepository, userRepo UserRepository, balanceHistoryRepo BalanceHistoryRepository, eventBus EventPublisher) {
	m.tournamentRepo = tournamentRepo
	m.userRepo = userRepo
	m.balanceHistoryRepo = balanceHistoryRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) TournamentRepository() TournamentRepository {
	return m.tournamentRepo
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.balanceHistoryRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

func (m *MockUnitOfWorkFactory) SupportsTransactions() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockTournamentStatusService is a mock implementation of TournamentStatusService
type MockTournamentStatusService struct {
	mock.Mock
}

func (m *MockTournamentStatusService) ReconcileStatuses(ctx context.Context) (*models.ReconcileResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReconcileResult), args.Error(1)
}

// MockJoinService is a mock implementation of JoinService
type MockJoinService struct {
	mock.Mock
}

func (m *MockJoinService) JoinTournament(ctx context.Context, userID string, tournamentID uuid.UUID, displayName string) (*models.JoinResult, error) {
	args := m.Called(ctx, userID, tournamentID, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JoinResult), args.Error(1)
}

// MockTournamentQueryService is a mock implementation of TournamentQueryService
type MockTournamentQueryService struct {
	mock.Mock
}

func (m *MockTournamentQueryService) ListTournaments(ctx context.Context, viewerID string) ([]*models.TournamentView, error) {
	args := m.Called(ctx, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TournamentView), args.Error(1)
}

func (m *MockTournamentQueryService) ListUserTournaments(ctx context.Context, userID string) ([]*models.TournamentView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TournamentView), args.Error(1)
}

// MockTournamentAdminService is a mock implementation of TournamentAdminService
type MockTournamentAdminService struct {
	mock.Mock
}

func (m *MockTournamentAdminService) CreateTournament(ctx context.Context, tournament *models.Tournament) (*models.Tournament, error) {
	args := m.Called(ctx, tournament)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tournament), args.Error(1)
}

func (m *MockTournamentAdminService) UpdateMatchDetails(ctx context.Context, tournamentID uuid.UUID, details *string) error {
	args := m.Called(ctx, tournamentID, details)
	return args.Error(0)
}

// MockUserService is a mock implementation of UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetOrCreateUser(ctx context.Context, userID, email string, initialBalance int64) (*models.User, error) {
	args := m.Called(ctx, userID, email, initialBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetWallet(ctx context.Context, userID string, historyLimit int) (*models.WalletSummary, error) {
	args := m.Called(ctx, userID, historyLimit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletSummary), args.Error(1)
}
