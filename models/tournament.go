package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TournamentStatus represents the lifecycle state of a tournament
type TournamentStatus string

const (
	TournamentStatusUpcoming  TournamentStatus = "upcoming"
	TournamentStatusLive      TournamentStatus = "live"
	TournamentStatusCompleted TournamentStatus = "completed"
)

// rank orders statuses along the lifecycle; transitions may only increase it
func (s TournamentStatus) rank() int {
	switch s {
	case TournamentStatusUpcoming:
		return 0
	case TournamentStatusLive:
		return 1
	case TournamentStatusCompleted:
		return 2
	default:
		return -1
	}
}

// IsValid checks if the status is one of the known lifecycle states
func (s TournamentStatus) IsValid() bool {
	return s.rank() >= 0
}

// CanTransitionTo reports whether moving from s to next is a forward lifecycle step
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	return s.IsValid() && next.IsValid() && next.rank() > s.rank()
}

// SortOrder returns the listing position of the status (upcoming first, completed last)
func (s TournamentStatus) SortOrder() int {
	if r := s.rank(); r >= 0 {
		return r
	}
	return 3
}

// Tournament represents a scheduled competitive event
type Tournament struct {
	ID              uuid.UUID        `db:"id"`
	GameName        string           `db:"game_name"`
	GameType        string           `db:"game_type"`
	Status          TournamentStatus `db:"status"`
	TournamentDate  time.Time        `db:"tournament_date"` // calendar date only
	TournamentTime  string           `db:"tournament_time"` // "HH:MM", 24-hour
	EntryFee        int64            `db:"entry_fee"`
	PrizePool       int64            `db:"prize_pool"`
	MaxParticipants int              `db:"max_participants"`
	MatchDetails    *string          `db:"match_details"`
	Participants    []*Participant   `db:"-"`
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
}

// timeOfDayPattern mirrors the tournaments.tournament_time CHECK constraint
var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ParseTimeOfDay parses a 24-hour "HH:MM" string with exactly two digits per field
func ParseTimeOfDay(value string) (hours, minutes int, err error) {
	match := timeOfDayPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: expected HH:MM", value)
	}
	hours, _ = strconv.Atoi(match[1])
	minutes, _ = strconv.Atoi(match[2])
	return hours, minutes, nil
}

// ScheduledAt combines the stored date and time of day in the given location.
// The date's own location is ignored: only its year, month and day are used.
func (t *Tournament) ScheduledAt(loc *time.Location) (time.Time, error) {
	if t.TournamentDate.IsZero() {
		return time.Time{}, fmt.Errorf("tournament %s has no date", t.ID)
	}
	hours, minutes, err := ParseTimeOfDay(t.TournamentTime)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	year, month, day := t.TournamentDate.Date()
	return time.Date(year, month, day, hours, minutes, 0, 0, loc), nil
}

// ShouldGoLive checks if an upcoming tournament has reached its start time
func (t *Tournament) ShouldGoLive(now time.Time, loc *time.Location) (bool, error) {
	if t.Status != TournamentStatusUpcoming {
		return false, nil
	}
	scheduledAt, err := t.ScheduledAt(loc)
	if err != nil {
		return false, err
	}
	return !now.Before(scheduledAt), nil
}

// IsUpcoming checks if registration is still open
func (t *Tournament) IsUpcoming() bool {
	return t.Status == TournamentStatusUpcoming
}

// IsFull checks if every seat has been taken
func (t *Tournament) IsFull() bool {
	return len(t.Participants) >= t.MaxParticipants
}

// SeatsRemaining returns the number of open seats
func (t *Tournament) SeatsRemaining() int {
	remaining := t.MaxParticipants - len(t.Participants)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasParticipant checks if the user already holds a seat
func (t *Tournament) HasParticipant(userID string) bool {
	return t.GetParticipant(userID) != nil
}

// GetParticipant returns the user's participant record, or nil
func (t *Tournament) GetParticipant(userID string) *Participant {
	for _, p := range t.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// CanEditMatchDetails checks if match details may still be changed
func (t *Tournament) CanEditMatchDetails() bool {
	return t.Status == TournamentStatusUpcoming || t.Status == TournamentStatusLive
}

// MatchDetailsVisibleTo reports whether match details may be shown to a viewer.
// Live tournaments show them to everyone; upcoming ones only to participants.
func (t *Tournament) MatchDetailsVisibleTo(joined bool) bool {
	if t.MatchDetails == nil || *t.MatchDetails == "" {
		return false
	}
	switch t.Status {
	case TournamentStatusLive:
		return true
	case TournamentStatusUpcoming:
		return joined
	default:
		return false
	}
}

// Validate checks the structural invariants of a tournament record
func (t *Tournament) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("tournament id is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid tournament status: %s", t.Status)
	}
	if t.EntryFee < 0 {
		return fmt.Errorf("entry fee cannot be negative")
	}
	if t.PrizePool < 0 {
		return fmt.Errorf("prize pool cannot be negative")
	}
	if t.MaxParticipants <= 0 {
		return fmt.Errorf("max participants must be positive")
	}
	if len(t.Participants) > t.MaxParticipants {
		return fmt.Errorf("tournament has %d participants but only %d seats", len(t.Participants), t.MaxParticipants)
	}
	if _, _, err := ParseTimeOfDay(t.TournamentTime); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy of the tournament
func (t *Tournament) Clone() *Tournament {
	clone := *t
	if t.MatchDetails != nil {
		details := *t.MatchDetails
		clone.MatchDetails = &details
	}
	clone.Participants = make([]*Participant, len(t.Participants))
	for i, p := range t.Participants {
		cp := *p
		clone.Participants[i] = &cp
	}
	return &clone
}
