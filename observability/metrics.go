// Package observability exposes prometheus metrics for joins, reconcile passes and HTTP traffic.
package observability

import (
	"context"
	"strconv"
	"time"

	"tourney/events"
	"tourney/models"
	"tourney/service"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tourney"

// Metrics holds every collector the service exports
type Metrics struct {
	Registry *prometheus.Registry

	joinAttempts      *prometheus.CounterVec
	joinLatency       prometheus.Histogram
	compensations     prometheus.Counter
	reconcilePasses   *prometheus.CounterVec
	reconcileUpdates  prometheus.Counter
	reconcileFailures prometheus.Counter
	reconcileLatency  prometheus.Histogram
	httpLatency       *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a dedicated registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		joinAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "join",
			Name:      "attempts_total",
			Help:      "Tournament join attempts by outcome code",
		}, []string{"outcome"}),
		joinLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "join",
			Name:      "duration_seconds",
			Help:      "Time taken to process a join attempt",
			Buckets:   prometheus.DefBuckets,
		}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "join",
			Name:      "compensations_total",
			Help:      "Entry fees refunded after a rejected seat claim",
		}),
		reconcilePasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Status reconcile passes by result",
		}, []string{"result"}),
		reconcileUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "transitions_total",
			Help:      "Tournaments moved from upcoming to live",
		}),
		reconcileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "transition_failures_total",
			Help:      "Transitions that failed and will be retried on the next pass",
		}),
		reconcileLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Time taken by a reconcile pass",
			Buckets:   prometheus.DefBuckets,
		}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route",
		}, []string{"route", "method", "code"}),
	}

	m.Registry.MustRegister(
		m.joinAttempts,
		m.joinLatency,
		m.compensations,
		m.reconcilePasses,
		m.reconcileUpdates,
		m.reconcileFailures,
		m.reconcileLatency,
		m.httpLatency,
		m.httpRequests,
	)
	return m
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.httpLatency.WithLabelValues(route, method, code).Observe(elapsed.Seconds())
	m.httpRequests.WithLabelValues(route, method, code).Inc()
}

// SubscribeEvents counts domain events that have no synchronous call site to instrument
func (m *Metrics) SubscribeEvents(bus *events.Bus) {
	bus.Subscribe(events.EventTypeJoinCompensated, func(_ context.Context, _ events.Event) {
		m.compensations.Inc()
	})
}

// instrumentedJoinService records the outcome and latency of each join
type instrumentedJoinService struct {
	next    service.JoinService
	metrics *Metrics
}

// InstrumentJoinService wraps a join service with attempt and latency metrics
func InstrumentJoinService(next service.JoinService, metrics *Metrics) service.JoinService {
	return &instrumentedJoinService{next: next, metrics: metrics}
}

func (s *instrumentedJoinService) JoinTournament(ctx context.Context, userID string, tournamentID uuid.UUID, displayName string) (*models.JoinResult, error) {
	start := time.Now()
	result, err := s.next.JoinTournament(ctx, userID, tournamentID, displayName)
	s.metrics.joinLatency.Observe(time.Since(start).Seconds())

	outcome := "Joined"
	if err != nil {
		outcome = models.ErrorCode(err)
	}
	s.metrics.joinAttempts.WithLabelValues(outcome).Inc()
	return result, err
}

// instrumentedStatusService records reconcile pass results
type instrumentedStatusService struct {
	next    service.TournamentStatusService
	metrics *Metrics
}

// InstrumentStatusService wraps a status service with reconcile metrics
func InstrumentStatusService(next service.TournamentStatusService, metrics *Metrics) service.TournamentStatusService {
	return &instrumentedStatusService{next: next, metrics: metrics}
}

func (s *instrumentedStatusService) ReconcileStatuses(ctx context.Context) (*models.ReconcileResult, error) {
	start := time.Now()
	result, err := s.next.ReconcileStatuses(ctx)
	s.metrics.reconcileLatency.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		s.metrics.reconcilePasses.WithLabelValues("error").Inc()
	case len(result.Failures) > 0:
		s.metrics.reconcilePasses.WithLabelValues("partial").Inc()
	default:
		s.metrics.reconcilePasses.WithLabelValues("ok").Inc()
	}
	if result != nil {
		s.metrics.reconcileUpdates.Add(float64(result.UpdatedCount))
		s.metrics.reconcileFailures.Add(float64(len(result.Failures)))
	}
	return result, err
}
