// Package notifier posts punishment events to a Discord audit channel.
package notifier

import (
	"fmt"
	"sync"
	"time"

	"punish-engine/events"
	"punish-engine/model"
	"punish-engine/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const queueSize = 256

var (
	errQueueFull = errors.New("audit queue full")
	errClosed    = errors.New("audit notifier closed")
)

// AuditNotifier mirrors ledger events into a channel. Posting happens on its
// own goroutine so event delivery never waits on Discord.
type AuditNotifier struct {
	sender    utils.EmbedSender
	channelID string
	log       logrus.FieldLogger

	mu     sync.Mutex
	closed bool
	queue  chan *discordgo.MessageEmbed
	wg     sync.WaitGroup
}

func NewAuditNotifier(sender utils.EmbedSender, channelID string, log logrus.FieldLogger) *AuditNotifier {
	n := &AuditNotifier{
		sender:    sender,
		channelID: channelID,
		log:       log.WithFields(logrus.Fields{"pkg": "notifier", "channel": channelID}),
		queue:     make(chan *discordgo.MessageEmbed, queueSize),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Subscribe registers the notifier on the bus.
func (n *AuditNotifier) Subscribe(bus *events.Bus) {
	bus.OnPunished(func(e model.PlayerPunished) error {
		return n.enqueue(PunishedEmbed(e))
	})
	bus.OnReversed(func(e model.PlayerPunishmentReversed) error {
		return n.enqueue(ReversedEmbed(e))
	})
}

// Close stops accepting events once the queue drains.
func (n *AuditNotifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

// enqueue drops the embed rather than block the publisher.
func (n *AuditNotifier) enqueue(embed *discordgo.MessageEmbed) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errClosed
	}
	select {
	case n.queue <- embed:
		return nil
	default:
		return errQueueFull
	}
}

func (n *AuditNotifier) run() {
	defer n.wg.Done()
	for embed := range n.queue {
		if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
			n.log.WithError(err).WithField("title", embed.Title).Error("Failed to send audit message")
		}
	}
}

func PunishedEmbed(e model.PlayerPunished) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Target", Value: userField(e.TargetID, e.TargetName), Inline: true},
		{Name: "Moderator", Value: userField(e.AuthorID, e.AuthorName), Inline: true},
		{Name: "Severity", Value: e.Severity.String(), Inline: true},
	}
	if e.Type.Temporary() || e.DurationSeconds == model.Permanent {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: utils.FormatPunishmentDuration(e.DurationSeconds), Inline: true})
	}
	fields = append(fields,
		&discordgo.MessageEmbedField{Name: "Reason", Value: utils.TruncateField(e.Reason)},
		&discordgo.MessageEmbedField{Name: "Punishment ID", Value: e.PunishmentID},
	)

	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("%s applied", e.Type),
		Color:     utils.SeverityColor(e.Severity),
		Fields:    fields,
		Timestamp: e.AppliedAt.Format(time.RFC3339),
	}
}

func ReversedEmbed(e model.PlayerPunishmentReversed) *discordgo.MessageEmbed {
	title := fmt.Sprintf("%s pardoned", e.Type)
	color := utils.ColorGreen
	if e.ReversalType == model.ReversalCorrection {
		title = fmt.Sprintf("%s superseded", e.Type)
		color = utils.ColorGray
	}

	return &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Target", Value: userField(e.TargetID, e.TargetName), Inline: true},
			{Name: "By", Value: userField(e.ActorID, ""), Inline: true},
			{Name: "Reason", Value: utils.TruncateField(e.Reason)},
			{Name: "Punishment ID", Value: e.PunishmentID},
		},
		Timestamp: e.ReversedAt.Format(time.RFC3339),
	}
}

func userField(id, name string) string {
	if id == model.SystemIdentity {
		return "system"
	}
	if name == "" {
		return fmt.Sprintf("<@%s> (`%s`)", id, id)
	}
	return fmt.Sprintf("%s <@%s> (`%s`)", name, id, id)
}
