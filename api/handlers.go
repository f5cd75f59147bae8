package api

import (
	"context"
	"strings"

	"tourney/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

type handlers struct {
	join   service.JoinService
	query  service.TournamentQueryService
	admin  service.TournamentAdminService
	users  service.UserService
	status service.TournamentStatusService
	health HealthChecker
}

func (h *handlers) healthz(c *fiber.Ctx) error {
	if h.health != nil {
		if err := h.health.Healthy(c.UserContext()); err != nil {
			log.WithError(err).Warn("Health check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) reconcile(c *fiber.Ctx) error {
	result, err := h.status.ReconcileStatuses(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}

	failed := service.FailedTournamentIDs(result)
	if failed == nil {
		failed = []uuid.UUID{}
	}
	return c.JSON(reconcileResponse{
		UpdatedCount: result.UpdatedCount,
		Examined:     result.Examined,
		Skipped:      result.Skipped,
		Failed:       failed,
	})
}

func (h *handlers) listTournaments(c *fiber.Ctx) error {
	views, err := h.query.ListTournaments(c.UserContext(), callerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTournamentResponses(views))
}

func (h *handlers) listMyTournaments(c *fiber.Ctx) error {
	views, err := h.query.ListUserTournaments(c.UserContext(), callerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTournamentResponses(views))
}

func (h *handlers) joinTournament(c *fiber.Ctx) error {
	tournamentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid tournament id")
	}

	var req joinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.join.JoinTournament(c.UserContext(), callerID(c), tournamentID, req.DisplayName)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(joinResponse{
		TournamentID: result.TournamentID,
		Participant:  toParticipantResponse(result.Participant),
		EntryFee:     result.EntryFee,
		NewBalance:   result.NewBalance,
		OperationID:  result.OperationID,
	})
}

func (h *handlers) wallet(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", service.DefaultHistoryLimit)
	if limit > 100 {
		limit = 100
	}

	summary, err := h.users.GetWallet(c.UserContext(), callerID(c), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toWalletResponse(summary))
}

func (h *handlers) createTournament(c *fiber.Ctx) error {
	var req createTournamentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	tournament, err := req.toModel()
	if err != nil {
		return badRequest(c, "tournamentDate must be YYYY-MM-DD")
	}

	created, err := h.admin.CreateTournament(c.UserContext(), tournament)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(tournamentResponse{
		ID:              created.ID,
		GameName:        created.GameName,
		GameType:        created.GameType,
		Status:          string(created.Status),
		TournamentDate:  created.TournamentDate.Format(dateLayout),
		TournamentTime:  created.TournamentTime,
		EntryFee:        created.EntryFee,
		PrizePool:       created.PrizePool,
		MaxParticipants: created.MaxParticipants,
		MatchDetails:    created.MatchDetails,
		Participants:    []participantResponse{},
	})
}

func (h *handlers) updateMatchDetails(c *fiber.Ctx) error {
	tournamentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid tournament id")
	}

	var req matchDetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.MatchDetails != nil && strings.TrimSpace(*req.MatchDetails) == "" {
		req.MatchDetails = nil
	}

	if err := h.admin.UpdateMatchDetails(c.UserContext(), tournamentID, req.MatchDetails); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) createUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return badRequest(c, "userId is required")
	}
	if req.InitialBalance < 0 {
		return badRequest(c, "initialBalance cannot be negative")
	}

	user, err := h.users.GetOrCreateUser(c.UserContext(), req.UserID, req.Email, req.InitialBalance)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(userResponse{
		UserID:        user.UserID,
		Email:         user.Email,
		WalletBalance: user.WalletBalance,
	})
}
