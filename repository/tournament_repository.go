package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourney/database"
	"tourney/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tournamentColumns = `
	t.id, t.game_name, t.game_type, t.status, t.tournament_date, t.tournament_time,
	t.entry_fee, t.prize_pool, t.max_participants, t.match_details, t.created_at, t.updated_at`

// TournamentRepository implements the TournamentRepository interface
type TournamentRepository struct {
	q       queryable
	timeout time.Duration
}

// NewTournamentRepository creates a new tournament repository
func NewTournamentRepository(db *database.DB, timeout time.Duration) *TournamentRepository {
	return &TournamentRepository{q: db.Pool, timeout: timeout}
}

// newTournamentRepositoryWithTx creates a new tournament repository with a transaction
func newTournamentRepositoryWithTx(tx queryable, timeout time.Duration) *TournamentRepository {
	return &TournamentRepository{q: tx, timeout: timeout}
}

// GetAll returns tournaments with participants, optionally filtered by status
func (r *TournamentRepository) GetAll(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + tournamentColumns + `
		FROM tournaments t
		WHERE ($1::text IS NULL OR t.status = $1)
		ORDER BY t.tournament_date, t.tournament_time, t.id`

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	rows, err := r.q.Query(ctx, query, statusArg)
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to list tournaments: %w", err))
	}
	tournaments, err := r.collectTournaments(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachParticipants(ctx, tournaments); err != nil {
		return nil, err
	}
	return tournaments, nil
}

// GetByID returns a tournament with its participants, or nil if it does not exist
func (r *TournamentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + tournamentColumns + ` FROM tournaments t WHERE t.id = $1`

	tournament, err := scanTournament(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to get tournament %s: %w", id, err))
	}

	if err := r.attachParticipants(ctx, []*models.Tournament{tournament}); err != nil {
		return nil, err
	}
	return tournament, nil
}

// GetByIDs returns the tournaments that exist among the given ids
func (r *TournamentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Tournament, error) {
	if len(ids) == 0 {
		return []*models.Tournament{}, nil
	}

	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + tournamentColumns + `
		FROM tournaments t
		WHERE t.id = ANY($1)
		ORDER BY t.tournament_date, t.tournament_time, t.id`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to get tournaments by ids: %w", err))
	}
	tournaments, err := r.collectTournaments(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachParticipants(ctx, tournaments); err != nil {
		return nil, err
	}
	return tournaments, nil
}

// Create inserts a new tournament
func (r *TournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	if tournament.ID == uuid.Nil {
		tournament.ID = uuid.New()
	}
	if tournament.Status == "" {
		tournament.Status = models.TournamentStatusUpcoming
	}

	query := `
		INSERT INTO tournaments
		(id, game_name, game_type, status, tournament_date, tournament_time,
		 entry_fee, prize_pool, max_participants, match_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		tournament.ID,
		tournament.GameName,
		tournament.GameType,
		tournament.Status,
		dateOnly(tournament.TournamentDate),
		tournament.TournamentTime,
		tournament.EntryFee,
		tournament.PrizePool,
		tournament.MaxParticipants,
		tournament.MatchDetails,
	).Scan(&tournament.CreatedAt, &tournament.UpdatedAt)
	if err != nil {
		return classifyError(fmt.Errorf("failed to create tournament: %w", err))
	}

	if tournament.Participants == nil {
		tournament.Participants = []*models.Participant{}
	}
	return nil
}

// TransitionStatus sets status to `to` only while the stored status is still `from`
func (r *TournamentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.TournamentStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("invalid status transition from %s to %s", from, to)
	}

	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE tournaments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.q.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, classifyError(fmt.Errorf("failed to transition tournament %s: %w", id, err))
	}
	if result.RowsAffected() == 1 {
		return true, nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, models.ErrTournamentNotFound
	}
	return false, nil
}

// AddParticipant claims a seat and appends the participant in a single guarded statement
func (r *TournamentRepository) AddParticipant(ctx context.Context, tournamentID uuid.UUID, participant *models.Participant) (*models.Participant, error) {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	// The seat counter row lock serializes concurrent joins; a waiting statement
	// re-checks the capacity guard against the committed count. Seat numbers come
	// from the locked row and are never handed out twice.
	query := `
		WITH seat AS (
			UPDATE tournaments
			SET participant_count = participant_count + 1,
			    last_seat_number = last_seat_number + 1,
			    updated_at = NOW()
			WHERE id = $1::uuid
			  AND status = 'upcoming'
			  AND participant_count < max_participants
			  AND NOT EXISTS (
				SELECT 1 FROM tournament_participants
				WHERE tournament_id = $1 AND user_id = $2
			  )
			RETURNING id, last_seat_number
		)
		INSERT INTO tournament_participants
		(tournament_id, user_id, display_name, email, seat_number, joined_at)
		SELECT seat.id, $2::text, $3::text, $4::text, seat.last_seat_number, $5::timestamptz
		FROM seat
		RETURNING user_id, display_name, email, seat_number, joined_at
	`

	joinedAt := participant.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now()
	}

	var added models.Participant
	err := r.q.QueryRow(ctx, query,
		tournamentID,
		participant.UserID,
		participant.DisplayName,
		participant.Email,
		joinedAt,
	).Scan(&added.UserID, &added.DisplayName, &added.Email, &added.SeatNumber, &added.JoinedAt)

	switch {
	case err == nil:
		return &added, nil
	case isUniqueViolation(err):
		return nil, models.ErrAlreadyJoined
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, classifyError(fmt.Errorf("failed to add participant to tournament %s: %w", tournamentID, err))
	}

	return nil, r.seatRejection(ctx, tournamentID, participant.UserID)
}

// seatRejection explains why a guarded seat claim matched no row
func (r *TournamentRepository) seatRejection(ctx context.Context, tournamentID uuid.UUID, userID string) error {
	query := `
		SELECT t.status, t.participant_count, t.max_participants,
		       EXISTS (SELECT 1 FROM tournament_participants p WHERE p.tournament_id = t.id AND p.user_id = $2)
		FROM tournaments t
		WHERE t.id = $1
	`

	var (
		status          models.TournamentStatus
		count, capacity int
		seated          bool
	)
	err := r.q.QueryRow(ctx, query, tournamentID, userID).Scan(&status, &count, &capacity, &seated)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrTournamentNotFound
	}
	if err != nil {
		return classifyError(fmt.Errorf("failed to inspect tournament %s: %w", tournamentID, err))
	}

	switch {
	case seated:
		return models.ErrAlreadyJoined
	case count >= capacity:
		return models.ErrTournamentFull
	case status != models.TournamentStatusUpcoming:
		return models.ErrRegistrationClosed
	default:
		// The guard failed but the row now looks joinable: a concurrent change raced us
		return fmt.Errorf("%w: seat claim for tournament %s lost a race", models.ErrStoreUnavailable, tournamentID)
	}
}

// RemoveParticipant releases the user's seat, returning false if they held none
func (r *TournamentRepository) RemoveParticipant(ctx context.Context, tournamentID uuid.UUID, userID string) (bool, error) {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		WITH removed AS (
			DELETE FROM tournament_participants
			WHERE tournament_id = $1 AND user_id = $2
			RETURNING tournament_id
		)
		UPDATE tournaments
		SET participant_count = participant_count - 1, updated_at = NOW()
		WHERE id IN (SELECT tournament_id FROM removed)
	`

	result, err := r.q.Exec(ctx, query, tournamentID, userID)
	if err != nil {
		return false, classifyError(fmt.Errorf("failed to remove participant from tournament %s: %w", tournamentID, err))
	}
	return result.RowsAffected() == 1, nil
}

// UpdateMatchDetails sets match details while the tournament is upcoming or live
func (r *TournamentRepository) UpdateMatchDetails(ctx context.Context, tournamentID uuid.UUID, details *string) error {
	ctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE tournaments
		SET match_details = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('upcoming', 'live')
	`

	result, err := r.q.Exec(ctx, query, tournamentID, details)
	if err != nil {
		return classifyError(fmt.Errorf("failed to update match details for tournament %s: %w", tournamentID, err))
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	exists, err := r.exists(ctx, tournamentID)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrTournamentNotFound
	}
	return models.ErrMatchDetailsLocked
}

func (r *TournamentRepository) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tournaments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, classifyError(fmt.Errorf("failed to check tournament %s: %w", id, err))
	}
	return exists, nil
}

func (r *TournamentRepository) collectTournaments(rows pgx.Rows) ([]*models.Tournament, error) {
	defer rows.Close()

	tournaments := []*models.Tournament{}
	for rows.Next() {
		tournament, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, tournament)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(fmt.Errorf("failed to iterate tournaments: %w", err))
	}
	return tournaments, nil
}

// attachParticipants loads participants for all given tournaments in one query
func (r *TournamentRepository) attachParticipants(ctx context.Context, tournaments []*models.Tournament) error {
	if len(tournaments) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(tournaments))
	byID := make(map[uuid.UUID]*models.Tournament, len(tournaments))
	for i, t := range tournaments {
		ids[i] = t.ID
		byID[t.ID] = t
		t.Participants = []*models.Participant{}
	}

	query := `
		SELECT tournament_id, user_id, display_name, email, seat_number, joined_at
		FROM tournament_participants
		WHERE tournament_id = ANY($1)
		ORDER BY tournament_id, seat_number, joined_at
	`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return classifyError(fmt.Errorf("failed to load participants: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var tournamentID uuid.UUID
		var p models.Participant
		if err := rows.Scan(&tournamentID, &p.UserID, &p.DisplayName, &p.Email, &p.SeatNumber, &p.JoinedAt); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		if t, ok := byID[tournamentID]; ok {
			t.Participants = append(t.Participants, &p)
		}
	}
	if err := rows.Err(); err != nil {
		return classifyError(fmt.Errorf("failed to iterate participants: %w", err))
	}
	return nil
}

func scanTournament(row pgx.Row) (*models.Tournament, error) {
	var t models.Tournament
	err := row.Scan(
		&t.ID,
		&t.GameName,
		&t.GameType,
		&t.Status,
		&t.TournamentDate,
		&t.TournamentTime,
		&t.EntryFee,
		&t.PrizePool,
		&t.MaxParticipants,
		&t.MatchDetails,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// dateOnly strips the clock so a DATE column stores the intended calendar day
func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
