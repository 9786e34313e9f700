package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"punish-engine/model"
	"punish-engine/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// StatsSource answers the aggregate queries behind the stats report.
type StatsSource interface {
	AuthorStats(ctx context.Context, since time.Time) (map[string]int, error)
	TypeStats(ctx context.Context, since time.Time) (map[model.Type]int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

func GeneratePunishmentStatsEmbed(ctx context.Context, src StatsSource, window time.Duration, now time.Time) (*discordgo.MessageEmbed, error) {
	since := now.Add(-window)
	stats, err := src.AuthorStats(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get author punishment stats")
	}

	byType, err := src.TypeStats(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get punishment type stats")
	}

	total, err := src.CountSince(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get total punishment count")
	}

	var sortedAuthors []string
	for authorID := range stats {
		sortedAuthors = append(sortedAuthors, authorID)
	}
	sort.Slice(sortedAuthors, func(i, j int) bool {
		if stats[sortedAuthors[i]] == stats[sortedAuthors[j]] {
			return sortedAuthors[i] < sortedAuthors[j]
		}
		return stats[sortedAuthors[i]] > stats[sortedAuthors[j]]
	})

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("### Punishments in the last %s\n", utils.FormatPunishmentDuration(int64(window.Seconds()))))
	builder.WriteString(fmt.Sprintf("**Total: %d**\n\n", total))

	builder.WriteString("**By type:**\n")
	for _, typ := range model.Types {
		if n := byType[typ]; n > 0 {
			builder.WriteString(fmt.Sprintf("- %s: %d\n", typ, n))
		}
	}

	builder.WriteString("\n**By moderator:**\n")
	for i, authorID := range sortedAuthors {
		builder.WriteString(fmt.Sprintf("%d. %s: %d\n", i+1, mention(authorID), stats[authorID]))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Punishment Leaderboard",
		Description: builder.String(),
		Timestamp:   now.Format(time.RFC3339),
		Color:       utils.ColorGreen,
	}
	return embed, nil
}

func mention(authorID string) string {
	if authorID == model.SystemIdentity {
		return "system"
	}
	return fmt.Sprintf("<@%s>", authorID)
}

// StatsReporter keeps one stats message per channel up to date: the first
// update posts it and later updates edit it in place.
type StatsReporter struct {
	sender    utils.EmbedSender
	src       StatsSource
	channelID string
	window    time.Duration
	now       func() time.Time
	log       logrus.FieldLogger

	mu        sync.Mutex
	messageID string
}

func NewStatsReporter(sender utils.EmbedSender, src StatsSource, channelID string, window time.Duration, log logrus.FieldLogger) *StatsReporter {
	return &StatsReporter{
		sender:    sender,
		src:       src,
		channelID: channelID,
		window:    window,
		now:       time.Now,
		log:       log.WithFields(logrus.Fields{"pkg": "tasks", "channel": channelID}),
	}
}

func (r *StatsReporter) UpdatePunishmentStats(ctx context.Context) error {
	embed, err := GeneratePunishmentStatsEmbed(ctx, r.src, r.window, r.now())
	if err != nil {
		r.log.WithError(err).Error("Failed to generate punishment stats embed")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.messageID != "" {
		if _, err = r.sender.ChannelMessageEditEmbed(r.channelID, r.messageID, embed); err == nil {
			return nil
		}
		// The message may have been deleted; post a fresh one.
		r.log.WithError(err).WithField("message", r.messageID).Warn("Failed to edit punishment stats message")
	}

	msg, err := r.sender.ChannelMessageSendEmbed(r.channelID, embed)
	if err != nil {
		r.log.WithError(err).Error("Failed to send punishment stats message")
		return errors.Wrap(err, "failed to send punishment stats message")
	}
	r.messageID = msg.ID
	return nil
}
