package api

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"tourney/observability"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const (
	headerUserID     = "X-User-ID"
	headerAdminToken = "X-Admin-Token"
	localsUserID     = "user_id"
)

// userContextMiddleware copies the caller id set by the gateway into the request locals
func userContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(localsUserID, strings.TrimSpace(c.Get(headerUserID)))
		return c.Next()
	}
}

// requireUser rejects requests that carry no caller id
func requireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if callerID(c) == "" {
			log.WithField("path", c.Path()).Debug("Rejected request without X-User-ID")
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{
				Error: "missing X-User-ID",
				Code:  "Unauthorized",
			})
		}
		return c.Next()
	}
}

// adminTokenMiddleware guards admin routes when a token is configured
func adminTokenMiddleware(expected string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expected == "" {
			return c.Next()
		}
		token := c.Get(headerAdminToken)
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			log.WithField("path", c.Path()).Warn("Rejected admin request with invalid token")
			return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{
				Error: "invalid admin token",
				Code:  "Unauthorized",
			})
		}
		return c.Next()
	}
}

// metricsMiddleware records latency and status per matched route
func metricsMiddleware(metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		if metrics != nil {
			metrics.ObserveHTTP(route, c.Method(), status, elapsed)
		}

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   route,
			"status":  status,
			"latency": elapsed,
		}).Debug("Handled request")
		return err
	}
}

func callerID(c *fiber.Ctx) string {
	userID, _ := c.Locals(localsUserID).(string)
	return userID
}
