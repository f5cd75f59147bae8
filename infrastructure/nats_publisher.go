package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tourney/events"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const sourceService = "tourney"

// MessagePublisher is the part of a NATS connection the event publisher needs
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// EventEnvelope wraps a domain event on the wire
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// SubjectForEvent maps a domain event type to its NATS subject
func SubjectForEvent(eventType events.EventType) string {
	switch eventType {
	case events.EventTypeTournamentStatusChange:
		return "tourney.tournaments.status_changed"
	case events.EventTypeParticipantJoined:
		return "tourney.tournaments.participant_joined"
	case events.EventTypeBalanceChange:
		return "tourney.wallets.balance_changed"
	case events.EventTypeJoinCompensated:
		return "tourney.wallets.join_compensated"
	default:
		return fmt.Sprintf("tourney.unknown.%s", eventType)
	}
}

// NATSEventPublisher forwards committed domain events to NATS
type NATSEventPublisher struct {
	conn      *nats.Conn
	publisher MessagePublisher
	now       func() time.Time
}

// ConnectNATS dials the given servers and returns a publisher over the connection
func ConnectNATS(servers string) (*NATSEventPublisher, error) {
	opts := []nats.Option{
		nats.Name(sourceService),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("servers", servers).Info("Connected to NATS")
	return &NATSEventPublisher{conn: nc, publisher: nc, now: time.Now}, nil
}

// NewNATSEventPublisher creates a publisher over an existing message publisher
func NewNATSEventPublisher(publisher MessagePublisher) *NATSEventPublisher {
	return &NATSEventPublisher{publisher: publisher, now: time.Now}
}

// Subscribe forwards every domain event on the bus
func (p *NATSEventPublisher) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(func(_ context.Context, event events.Event) {
		if err := p.Publish(event); err != nil {
			log.WithField("eventType", event.Type()).WithError(err).Error("Failed to forward event to NATS")
		}
	})
}

// Publish wraps the event in an envelope and sends it on the event's subject
func (p *NATSEventPublisher) Publish(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     string(event.Type()),
		Timestamp:     p.now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := SubjectForEvent(event.Type())
	if err := p.publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Published event to NATS")
	return nil
}

// Close drains the connection if the publisher owns one
func (p *NATSEventPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
