package events

import (
	"context"
	"sync"
	"time"

	"tourney/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeTournamentStatusChange EventType = "tournament_status_change"
	EventTypeParticipantJoined      EventType = "participant_joined"
	EventTypeBalanceChange          EventType = "balance_change"
	EventTypeJoinCompensated        EventType = "join_compensated"
)

// AllEventTypes lists every event type the system emits
var AllEventTypes = []EventType{
	EventTypeTournamentStatusChange,
	EventTypeParticipantJoined,
	EventTypeBalanceChange,
	EventTypeJoinCompensated,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// TournamentStatusChangeEvent represents an applied lifecycle transition
type TournamentStatusChangeEvent struct {
	TournamentID uuid.UUID               `json:"tournament_id"`
	GameName     string                  `json:"game_name"`
	OldStatus    models.TournamentStatus `json:"old_status"`
	NewStatus    models.TournamentStatus `json:"new_status"`
	ScheduledAt  time.Time               `json:"scheduled_at"`
}

func (e TournamentStatusChangeEvent) Type() EventType {
	return EventTypeTournamentStatusChange
}

// ParticipantJoinedEvent represents a seat granted in a tournament
type ParticipantJoinedEvent struct {
	TournamentID    uuid.UUID `json:"tournament_id"`
	GameName        string    `json:"game_name"`
	UserID          string    `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	SeatNumber      int       `json:"seat_number"`
	MaxParticipants int       `json:"max_participants"`
	EntryFee        int64     `json:"entry_fee"`
}

func (e ParticipantJoinedEvent) Type() EventType {
	return EventTypeParticipantJoined
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          string                 `json:"user_id"`
	OperationID     uuid.UUID              `json:"operation_id"`
	OldBalance      int64                  `json:"old_balance"`
	NewBalance      int64                  `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    int64                  `json:"change_amount"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// JoinCompensatedEvent represents a join that debited the wallet and was then refunded
type JoinCompensatedEvent struct {
	TournamentID      uuid.UUID `json:"tournament_id"`
	UserID            string    `json:"user_id"`
	Amount            int64     `json:"amount"`
	RefundOperationID uuid.UUID `json:"refund_operation_id"`
	Reason            string    `json:"reason"`
}

func (e JoinCompensatedEvent) Type() EventType {
	return EventTypeJoinCompensated
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow subscriber never blocks the caller
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits.
// Flush forwards them to the underlying bus; Discard drops them.
type TransactionalBus struct {
	mu      sync.Mutex
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	log.WithField("pendingEventCount", len(pending)).Debug("Flushing pending events to main event bus")

	// Handlers outlive the request, so they must not inherit its cancellation
	eventCtx := context.WithoutCancel(ctx)

	if b.real == nil {
		return nil
	}
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
	return nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
