package api

import (
	"time"

	"tourney/models"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type participantResponse struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	SeatNumber  int       `json:"seatNumber"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type tournamentResponse struct {
	ID               uuid.UUID             `json:"id"`
	GameName         string                `json:"gameName"`
	GameType         string                `json:"gameType"`
	Status           string                `json:"status"`
	TournamentDate   string                `json:"tournamentDate"`
	TournamentTime   string                `json:"tournamentTime"`
	ScheduledAt      *time.Time            `json:"scheduledAt,omitempty"`
	EntryFee         int64                 `json:"entryFee"`
	PrizePool        int64                 `json:"prizePool"`
	MaxParticipants  int                   `json:"maxParticipants"`
	ParticipantCount int                   `json:"participantCount"`
	HasJoined        bool                  `json:"hasJoined"`
	MatchDetails     *string               `json:"matchDetails,omitempty"`
	Participants     []participantResponse `json:"participants"`
}

type joinRequest struct {
	DisplayName string `json:"displayName"`
}

type joinResponse struct {
	TournamentID uuid.UUID           `json:"tournamentId"`
	Participant  participantResponse `json:"participant"`
	EntryFee     int64               `json:"entryFee"`
	NewBalance   int64               `json:"newBalance"`
	OperationID  uuid.UUID           `json:"operationId"`
}

type reconcileResponse struct {
	UpdatedCount int         `json:"updatedCount"`
	Examined     int         `json:"examined"`
	Skipped      int         `json:"skipped"`
	Failed       []uuid.UUID `json:"failed"`
}

type ledgerEntryResponse struct {
	OperationID     uuid.UUID  `json:"operationId"`
	TransactionType string     `json:"transactionType"`
	ChangeAmount    int64      `json:"changeAmount"`
	BalanceBefore   int64      `json:"balanceBefore"`
	BalanceAfter    int64      `json:"balanceAfter"`
	RelatedID       *uuid.UUID `json:"relatedId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type walletResponse struct {
	UserID        string                `json:"userId"`
	WalletBalance int64                 `json:"walletBalance"`
	History       []ledgerEntryResponse `json:"history"`
}

type createTournamentRequest struct {
	GameName        string  `json:"gameName"`
	GameType        string  `json:"gameType"`
	TournamentDate  string  `json:"tournamentDate"`
	TournamentTime  string  `json:"tournamentTime"`
	EntryFee        int64   `json:"entryFee"`
	PrizePool       int64   `json:"prizePool"`
	MaxParticipants int     `json:"maxParticipants"`
	MatchDetails    *string `json:"matchDetails"`
}

type matchDetailsRequest struct {
	MatchDetails *string `json:"matchDetails"`
}

type createUserRequest struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	InitialBalance int64  `json:"initialBalance"`
}

type userResponse struct {
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	WalletBalance int64  `json:"walletBalance"`
}

func toParticipantResponse(p *models.Participant) participantResponse {
	return participantResponse{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		SeatNumber:  p.SeatNumber,
		JoinedAt:    p.JoinedAt,
	}
}

func toTournamentResponse(view *models.TournamentView) tournamentResponse {
	t := view.Tournament
	resp := tournamentResponse{
		ID:               t.ID,
		GameName:         t.GameName,
		GameType:         t.GameType,
		Status:           string(t.Status),
		TournamentDate:   t.TournamentDate.Format(dateLayout),
		TournamentTime:   t.TournamentTime,
		EntryFee:         t.EntryFee,
		PrizePool:        t.PrizePool,
		MaxParticipants:  t.MaxParticipants,
		ParticipantCount: len(t.Participants),
		HasJoined:        view.HasJoined,
		MatchDetails:     view.MatchDetails,
		Participants:     make([]participantResponse, 0, len(t.Participants)),
	}
	if !view.ScheduledAt.IsZero() {
		scheduled := view.ScheduledAt
		resp.ScheduledAt = &scheduled
	}
	for _, p := range t.Participants {
		resp.Participants = append(resp.Participants, toParticipantResponse(p))
	}
	return resp
}

func toTournamentResponses(views []*models.TournamentView) []tournamentResponse {
	out := make([]tournamentResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toTournamentResponse(v))
	}
	return out
}

func toWalletResponse(w *models.WalletSummary) walletResponse {
	resp := walletResponse{
		UserID:        w.UserID,
		WalletBalance: w.WalletBalance,
		History:       make([]ledgerEntryResponse, 0, len(w.History)),
	}
	for _, h := range w.History {
		resp.History = append(resp.History, ledgerEntryResponse{
			OperationID:     h.OperationID,
			TransactionType: string(h.TransactionType),
			ChangeAmount:    h.ChangeAmount,
			BalanceBefore:   h.BalanceBefore,
			BalanceAfter:    h.BalanceAfter,
			RelatedID:       h.RelatedID,
			CreatedAt:       h.CreatedAt,
		})
	}
	return resp
}

func (r createTournamentRequest) toModel() (*models.Tournament, error) {
	date, err := time.Parse(dateLayout, r.TournamentDate)
	if err != nil {
		return nil, err
	}
	return &models.Tournament{
		GameName:        r.GameName,
		GameType:        r.GameType,
		TournamentDate:  date,
		TournamentTime:  r.TournamentTime,
		EntryFee:        r.EntryFee,
		PrizePool:       r.PrizePool,
		MaxParticipants: r.MaxParticipants,
		MatchDetails:    r.MatchDetails,
	}, nil
}
