package memory

import (
	"context"
	"fmt"
	"sort"

	"tourney/models"

	"github.com/google/uuid"
)

// TournamentRepository implements the TournamentRepository interface in memory
type TournamentRepository struct {
	store *Store
}

// NewTournamentRepository creates a new in-memory tournament repository
func NewTournamentRepository(store *Store) *TournamentRepository {
	return &TournamentRepository{store: store}
}

// GetAll returns tournaments, optionally filtered by status
func (r *TournamentRepository) GetAll(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tournaments := make([]*models.Tournament, 0, len(r.store.tournaments))
	for _, t := range r.store.tournaments {
		if status != nil && t.Status != *status {
			continue
		}
		tournaments = append(tournaments, t.Clone())
	}
	sortTournaments(tournaments)
	return tournaments, nil
}

// GetByID returns a tournament, or nil if it does not exist
func (r *TournamentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.tournaments[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

// GetByIDs returns the tournaments that exist among the given ids
func (r *TournamentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Tournament, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tournaments := make([]*models.Tournament, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if t, ok := r.store.tournaments[id]; ok {
			tournaments = append(tournaments, t.Clone())
		}
	}
	sortTournaments(tournaments)
	return tournaments, nil
}

// Create inserts a new tournament
func (r *TournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if tournament.ID == uuid.Nil {
		tournament.ID = uuid.New()
	}
	if _, exists := r.store.tournaments[tournament.ID]; exists {
		return fmt.Errorf("tournament %s already exists", tournament.ID)
	}
	if tournament.Status == "" {
		tournament.Status = models.TournamentStatusUpcoming
	}
	if tournament.Participants == nil {
		tournament.Participants = []*models.Participant{}
	}
	if err := tournament.Validate(); err != nil {
		return err
	}

	now := r.store.clock.Now()
	tournament.CreatedAt = now
	tournament.UpdatedAt = now

	r.store.tournaments[tournament.ID] = tournament.Clone()
	return nil
}

// TransitionStatus sets status to `to` only while the stored status is still `from`
func (r *TournamentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.TournamentStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("invalid status transition from %s to %s", from, to)
	}
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.tournaments[id]
	if !ok {
		return false, models.ErrTournamentNotFound
	}
	if t.Status != from {
		return false, nil
	}

	t.Status = to
	t.UpdatedAt = r.store.clock.Now()
	return true, nil
}

// AddParticipant appends a participant while the tournament is upcoming, has a free
// seat and does not already hold the user
func (r *TournamentRepository) AddParticipant(ctx context.Context, tournamentID uuid.UUID, participant *models.Participant) (*models.Participant, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.tournaments[tournamentID]
	if !ok {
		return nil, models.ErrTournamentNotFound
	}

	switch {
	case t.HasParticipant(participant.UserID):
		return nil, models.ErrAlreadyJoined
	case t.IsFull():
		return nil, models.ErrTournamentFull
	case !t.IsUpcoming():
		return nil, models.ErrRegistrationClosed
	}

	added := *participant
	if added.JoinedAt.IsZero() {
		added.JoinedAt = r.store.clock.Now()
	}
	added.SeatNumber = nextSeatNumber(t)

	t.Participants = append(t.Participants, &added)
	t.UpdatedAt = r.store.clock.Now()

	result := added
	return &result, nil
}

// RemoveParticipant releases the user's seat, returning false if they held none
func (r *TournamentRepository) RemoveParticipant(ctx context.Context, tournamentID uuid.UUID, userID string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.tournaments[tournamentID]
	if !ok {
		return false, nil
	}

	for i, p := range t.Participants {
		if p.UserID == userID {
			t.Participants = append(t.Participants[:i:i], t.Participants[i+1:]...)
			t.UpdatedAt = r.store.clock.Now()
			return true, nil
		}
	}
	return false, nil
}

// UpdateMatchDetails sets match details while the tournament is upcoming or live
func (r *TournamentRepository) UpdateMatchDetails(ctx context.Context, tournamentID uuid.UUID, details *string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.tournaments[tournamentID]
	if !ok {
		return models.ErrTournamentNotFound
	}
	if !t.CanEditMatchDetails() {
		return models.ErrMatchDetailsLocked
	}

	if details == nil {
		t.MatchDetails = nil
	} else {
		value := *details
		t.MatchDetails = &value
	}
	t.UpdatedAt = r.store.clock.Now()
	return nil
}

func nextSeatNumber(t *models.Tournament) int {
	seat := 0
	for _, p := range t.Participants {
		if p.SeatNumber > seat {
			seat = p.SeatNumber
		}
	}
	return seat + 1
}

func sortTournaments(tournaments []*models.Tournament) {
	sort.SliceStable(tournaments, func(i, j int) bool {
		a, b := tournaments[i], tournaments[j]
		if !a.TournamentDate.Equal(b.TournamentDate) {
			return a.TournamentDate.Before(b.TournamentDate)
		}
		if a.TournamentTime != b.TournamentTime {
			return a.TournamentTime < b.TournamentTime
		}
		return a.ID.String() < b.ID.String()
	})
}
