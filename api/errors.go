package api

import (
	"errors"

	"tourney/models"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const codeInvalidRequest = "InvalidRequest"

// statusForCode maps a stable error code to its HTTP status
func statusForCode(code string) int {
	switch code {
	case "InvalidUsername", "InvalidTournament":
		return fiber.StatusBadRequest
	case "AlreadyJoined", "TournamentFull", "RegistrationClosed", "MatchDetailsLocked":
		return fiber.StatusConflict
	case "InsufficientFunds":
		return fiber.StatusUnprocessableEntity
	case "NotFound":
		return fiber.StatusNotFound
	case "StoreUnavailable":
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders a service error as {error, code}
func writeError(c *fiber.Ctx, err error) error {
	code := models.ErrorCode(err)
	status := statusForCode(code)

	message := err.Error()
	switch status {
	case fiber.StatusServiceUnavailable:
		c.Set(fiber.HeaderRetryAfter, "1")
		log.WithError(err).WithField("path", c.Path()).Warn("Store unavailable while serving request")
	case fiber.StatusInternalServerError:
		log.WithError(err).WithField("path", c.Path()).Error("Request failed")
		message = "internal error"
	}

	return c.Status(status).JSON(errorResponse{Error: message, Code: code})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: message, Code: codeInvalidRequest})
}

// errorHandler renders errors that escape a handler, such as unknown routes
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message, Code: codeInvalidRequest})
	}
	return writeError(c, err)
}
