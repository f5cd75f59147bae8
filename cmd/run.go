package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourney/api"
	"tourney/config"
	"tourney/database"
	"tourney/events"
	"tourney/infrastructure"
	"tourney/models"
	"tourney/observability"
	"tourney/repository"
	"tourney/repository/memory"
	"tourney/service"
	"tourney/workers"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// ConfigureLogging applies the configured level and picks JSON output outside development
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// store is the selected backend together with its release function
type store struct {
	uowFactory service.UnitOfWorkFactory
	db         *database.DB
}

func (s *store) close() {
	if s.db != nil {
		log.Info("Closing database connection...")
		s.db.Close()
	}
}

func openStore(ctx context.Context, cfg *config.Config, bus *events.Bus, clock clockwork.Clock) (*store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Warn("Using in-memory store; data is lost on exit")
		return &store{uowFactory: memory.NewUnitOfWorkFactory(memory.NewStore(clock), bus)}, nil
	default:
		log.Info("Connecting to database...")
		db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), database.PoolOptions{
			MaxConns: cfg.DBMaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established successfully")
		return &store{
			uowFactory: repository.NewUnitOfWorkFactory(db, bus, cfg.StoreTimeout),
			db:         db,
		}, nil
	}
}

// attachNotifiers subscribes the optional discord and NATS forwarders.
// A notifier that cannot connect is skipped; the returned function closes the rest.
func attachNotifiers(cfg *config.Config, bus *events.Bus) func() {
	var closers []func() error

	if cfg.NotificationsEnabled() {
		notifier, err := infrastructure.NewDiscordNotifier(cfg.DiscordToken, cfg.DiscordChannelID)
		if err != nil {
			log.WithError(err).Error("Discord notifications disabled")
		} else {
			notifier.Subscribe(bus)
			closers = append(closers, notifier.Close)
			log.WithField("channel_id", cfg.DiscordChannelID).Info("Discord notifications enabled")
		}
	}

	if cfg.NATSServers != "" {
		publisher, err := infrastructure.ConnectNATS(cfg.NATSServers)
		if err != nil {
			log.WithError(err).Error("NATS event forwarding disabled")
		} else {
			publisher.Subscribe(bus)
			closers = append(closers, publisher.Close)
		}
	}

	return func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.WithError(err).Warn("Error closing notifier")
			}
		}
	}
}

// Run wires every component and serves HTTP until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting tourney...")

	// Create event bus and metrics
	clock := clockwork.NewRealClock()
	eventBus := events.NewBus()
	metrics := observability.NewMetrics()
	metrics.SubscribeEvents(eventBus)

	// Open the configured store
	st, err := openStore(ctx, cfg, eventBus, clock)
	if err != nil {
		return err
	}
	defer st.close()

	closeNotifiers := attachNotifiers(cfg, eventBus)
	defer closeNotifiers()

	// Create services
	location := cfg.Location()
	statusService := observability.InstrumentStatusService(
		service.NewTournamentStatusService(st.uowFactory, clock, location), metrics)
	joinService := observability.InstrumentJoinService(
		service.NewJoinService(st.uowFactory, clock, service.DefaultCompensationTimeout), metrics)

	deps := api.Dependencies{
		JoinService:   joinService,
		QueryService:  service.NewTournamentQueryService(st.uowFactory, statusService, location),
		AdminService:  service.NewTournamentAdminService(st.uowFactory),
		UserService:   service.NewUserService(st.uowFactory),
		StatusService: statusService,
		Metrics:       metrics,
		AdminToken:    cfg.AdminToken,
	}
	if st.db != nil {
		deps.Health = st.db
	}

	// Start background workers
	stopWorker, err := workers.NewReconcileWorker(statusService, cfg.ReconcileInterval, clock).Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start reconcile worker: %w", err)
	}
	defer stopWorker()

	// Start HTTP server
	server := api.NewServer(deps)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen(cfg.HTTPAddress)
	}()

	// Wait for shutdown signal or server failure
	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	log.Info("Shutdown completed")
	return nil
}

// Reconcile runs a single status pass against the configured store
func Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	cfg := config.Get()
	ConfigureLogging(cfg)

	clock := clockwork.NewRealClock()
	st, err := openStore(ctx, cfg, events.NewBus(), clock)
	if err != nil {
		return nil, err
	}
	defer st.close()

	return service.NewTournamentStatusService(st.uowFactory, clock, cfg.Location()).ReconcileStatuses(ctx)
}
