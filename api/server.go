// Package api serves the tournament operations over HTTP.
package api

import (
	"context"

	"tourney/observability"
	"tourney/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Dependencies are the services the HTTP surface delegates to
type Dependencies struct {
	JoinService   service.JoinService
	QueryService  service.TournamentQueryService
	AdminService  service.TournamentAdminService
	UserService   service.UserService
	StatusService service.TournamentStatusService
	Metrics       *observability.Metrics
	Health        HealthChecker // nil when the backend has nothing to ping
	AdminToken    string
}

// Server wraps the fiber application
type Server struct {
	app *fiber.App
}

// NewServer builds the fiber app with every route registered
func NewServer(deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "tourney",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(metricsMiddleware(deps.Metrics))
	app.Use(userContextMiddleware())

	h := &handlers{
		join:   deps.JoinService,
		query:  deps.QueryService,
		admin:  deps.AdminService,
		users:  deps.UserService,
		status: deps.StatusService,
		health: deps.Health,
	}

	app.Get("/healthz", h.healthz)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")
	v1.Get("/tournaments", h.listTournaments)
	v1.Post("/tournaments/reconcile", h.reconcile)
	v1.Post("/tournaments/:id/join", requireUser(), h.joinTournament)

	me := v1.Group("/users/me", requireUser())
	me.Get("/tournaments", h.listMyTournaments)
	me.Get("/wallet", h.wallet)

	admin := v1.Group("/admin", adminTokenMiddleware(deps.AdminToken))
	admin.Post("/tournaments", h.createTournament)
	admin.Put("/tournaments/:id/match-details", h.updateMatchDetails)
	admin.Post("/users", h.createUser)

	return &Server{app: app}
}

// App exposes the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP until Shutdown is called
func (s *Server) Listen(addr string) error {
	log.WithField("address", addr).Info("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
