package infrastructure

import (
	"context"
	"fmt"

	"tourney/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// EmbedSender is the part of a discord session the notifier needs
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier announces tournament lifecycle events in a discord channel
type DiscordNotifier struct {
	session   *discordgo.Session
	sender    EmbedSender
	channelID string
}

// NewDiscordNotifier opens a bot session used to post announcements
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	return &DiscordNotifier{session: dg, sender: dg, channelID: channelID}, nil
}

// NewDiscordNotifierWithSender creates a notifier over an existing sender
func NewDiscordNotifierWithSender(sender EmbedSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{sender: sender, channelID: channelID}
}

// Subscribe registers the notifier's handlers on the bus
func (n *DiscordNotifier) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeTournamentStatusChange, n.handleStatusChange)
	bus.Subscribe(events.EventTypeParticipantJoined, n.handleParticipantJoined)
}

// Close closes the discord session if the notifier owns one
func (n *DiscordNotifier) Close() error {
	if n.session == nil {
		return nil
	}
	return n.session.Close()
}

func (n *DiscordNotifier) handleStatusChange(_ context.Context, event events.Event) {
	e, ok := event.(events.TournamentStatusChangeEvent)
	if !ok {
		return
	}
	n.send(statusChangeEmbed(e), log.Fields{"tournament_id": e.TournamentID, "new_status": e.NewStatus})
}

func (n *DiscordNotifier) handleParticipantJoined(_ context.Context, event events.Event) {
	e, ok := event.(events.ParticipantJoinedEvent)
	if !ok {
		return
	}
	n.send(participantJoinedEmbed(e), log.Fields{"tournament_id": e.TournamentID, "user_id": e.UserID})
}

func (n *DiscordNotifier) send(embed *discordgo.MessageEmbed, fields log.Fields) {
	if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to post tournament announcement")
	}
}

func statusChangeEmbed(e events.TournamentStatusChangeEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s is now %s", e.GameName, e.NewStatus),
		Color:       ColorInfo,
		Description: fmt.Sprintf("Scheduled for %s", FormatDiscordTimestamp(e.ScheduledAt, "f")),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Previous Status",
				Value:  string(e.OldStatus),
				Inline: true,
			},
			{
				Name:   "Tournament",
				Value:  e.TournamentID.String(),
				Inline: true,
			},
		},
	}
}

func participantJoinedEmbed(e events.ParticipantJoinedEvent) *discordgo.MessageEmbed {
	color := ColorSuccess
	if e.SeatNumber >= e.MaxParticipants {
		color = ColorWarning
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s joined %s", e.DisplayName, e.GameName),
		Color:       color,
		Description: fmt.Sprintf("Seat %d of %d taken", e.SeatNumber, e.MaxParticipants),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Entry Fee",
				Value:  FormatCoins(e.EntryFee),
				Inline: true,
			},
		},
	}
}
