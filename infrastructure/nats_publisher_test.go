package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"tourney/events"
	"tourney/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{subject: subject, data: data})
	return nil
}

func (f *fakePublisher) published() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage(nil), f.messages...)
}

func TestSubjectForEvent(t *testing.T) {
	assert.Equal(t, "tourney.tournaments.status_changed", SubjectForEvent(events.EventTypeTournamentStatusChange))
	assert.Equal(t, "tourney.tournaments.participant_joined", SubjectForEvent(events.EventTypeParticipantJoined))
	assert.Equal(t, "tourney.wallets.balance_changed", SubjectForEvent(events.EventTypeBalanceChange))
	assert.Equal(t, "tourney.wallets.join_compensated", SubjectForEvent(events.EventTypeJoinCompensated))
	assert.Equal(t, "tourney.unknown.mystery", SubjectForEvent(events.EventType("mystery")))
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	fake := &fakePublisher{}
	publisher := NewNATSEventPublisher(fake)
	fixed := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	publisher.now = func() time.Time { return fixed }

	tournamentID := uuid.New()
	err := publisher.Publish(events.TournamentStatusChangeEvent{
		TournamentID: tournamentID,
		GameName:     "Apex Legends",
		OldStatus:    models.TournamentStatusUpcoming,
		NewStatus:    models.TournamentStatusLive,
	})
	require.NoError(t, err)

	messages := fake.published()
	require.Len(t, messages, 1)
	assert.Equal(t, "tourney.tournaments.status_changed", messages[0].subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(messages[0].data, &envelope))
	assert.Equal(t, "tournament_status_change", envelope.EventType)
	assert.Equal(t, "tourney", envelope.SourceService)
	assert.True(t, fixed.Equal(envelope.Timestamp))
	_, err = uuid.Parse(envelope.EventID)
	assert.NoError(t, err)

	var payload events.TournamentStatusChangeEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, tournamentID, payload.TournamentID)
	assert.Equal(t, models.TournamentStatusLive, payload.NewStatus)
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	publisher := NewNATSEventPublisher(&fakePublisher{err: errors.New("nats: connection closed")})

	err := publisher.Publish(events.BalanceChangeEvent{UserID: "user-1"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event to NATS")
}

func TestNATSEventPublisher_ForwardsEveryBusEvent(t *testing.T) {
	fake := &fakePublisher{}
	bus := events.NewBus()
	NewNATSEventPublisher(fake).Subscribe(bus)

	ctx := context.Background()
	bus.Emit(ctx, events.ParticipantJoinedEvent{UserID: "user-1"})
	bus.Emit(ctx, events.BalanceChangeEvent{UserID: "user-1"})
	bus.Emit(ctx, events.JoinCompensatedEvent{UserID: "user-1"})

	require.Eventually(t, func() bool { return len(fake.published()) == 3 }, time.Second, 10*time.Millisecond)

	subjects := make([]string, 0, 3)
	for _, m := range fake.published() {
		subjects = append(subjects, m.subject)
	}
	assert.ElementsMatch(t, []string{
		"tourney.tournaments.participant_joined",
		"tourney.wallets.balance_changed",
		"tourney.wallets.join_compensated",
	}, subjects)
}
