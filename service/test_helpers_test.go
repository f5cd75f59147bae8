package service

import (
	"testing"
	"time"

	"tourney/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

const (
	testUserID  = "user-1"
	testEmail   = "player@example.com"
	testDisplay = "Player_One"
)

var testNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// TestMocks holds a unit of work wired to mock repositories
type TestMocks struct {
	Factory        *MockUnitOfWorkFactory
	UoW            *MockUnitOfWork
	TournamentRepo *MockTournamentRepository
	UserRepo       *MockUserRepository
	HistoryRepo    *MockBalanceHistoryRepository
	EventPublisher *MockEventPublisher
}

// NewTestMocks creates a new set of mocks with the unit of work returned by the factory
func NewTestMocks() *TestMocks {
	m := &TestMocks{
		Factory:        new(MockUnitOfWorkFactory),
		UoW:            new(MockUnitOfWork),
		TournamentRepo: new(MockTournamentRepository),
		UserRepo:       new(MockUserRepository),
		HistoryRepo:    new(MockBalanceHistoryRepository),
		EventPublisher: new(MockEventPublisher),
	}
	m.UoW.SetRepositories(m.TournamentRepo, m.UserRepo, m.HistoryRepo, m.EventPublisher)
	m.Factory.On("Create").Return(m.UoW)
	return m
}

// AssertAllExpectations asserts all mock expectations
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.Factory.AssertExpectations(t)
	m.UoW.AssertExpectations(t)
	m.TournamentRepo.AssertExpectations(t)
	m.UserRepo.AssertExpectations(t)
	m.HistoryRepo.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

func newTestTournament(mutators ...func(*models.Tournament)) *models.Tournament {
	t := &models.Tournament{
		ID:              uuid.New(),
		GameName:        "Valorant",
		GameType:        "fps",
		Status:          models.TournamentStatusUpcoming,
		TournamentDate:  time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		TournamentTime:  "20:00",
		EntryFee:        100,
		PrizePool:       1000,
		MaxParticipants: 4,
		Participants:    []*models.Participant{},
	}
	for _, mutate := range mutators {
		mutate(t)
	}
	return t
}

func newTestUser(balance int64) *models.User {
	return &models.User{
		UserID:        testUserID,
		Email:         testEmail,
		WalletBalance: balance,
	}
}

func seated(userIDs ...string) func(*models.Tournament) {
	return func(t *models.Tournament) {
		for i, id := range userIDs {
			t.Participants = append(t.Participants, &models.Participant{
				UserID:      id,
				DisplayName: "seat_" + id,
				SeatNumber:  i + 1,
			})
		}
	}
}

func entryDebit(amount int64) interface{} {
	return mock.MatchedBy(func(c *models.BalanceChange) bool {
		return c.TransactionType == models.TransactionTypeTournamentEntry && c.Amount == -amount
	})
}

func entryRefund() interface{} {
	return mock.MatchedBy(func(c *models.BalanceChange) bool {
		return c.TransactionType == models.TransactionTypeTournamentEntryRefund
	})
}
