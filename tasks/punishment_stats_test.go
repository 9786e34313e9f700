package tasks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"punish-engine/model"
	"punish-engine/utils/testutil"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type fixedStats struct {
	authors map[string]int
	types   map[model.Type]int
	total   int
	err     error
	since   time.Time
}

func (f *fixedStats) AuthorStats(_ context.Context, since time.Time) (map[string]int, error) {
	f.since = since
	return f.authors, f.err
}

func (f *fixedStats) TypeStats(context.Context, time.Time) (map[model.Type]int, error) {
	return f.types, nil
}

func (f *fixedStats) CountSince(context.Context, time.Time) (int, error) {
	return f.total, nil
}

type fakeSender struct {
	sent    []*discordgo.MessageEmbed
	edited  []string
	editErr error
	nextID  int
}

func (s *fakeSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.sent = append(s.sent, embed)
	s.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", s.nextID), ChannelID: channelID}, nil
}

func (s *fakeSender) ChannelMessageEditEmbed(_, messageID string, _ *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if s.editErr != nil {
		return nil, s.editErr
	}
	s.edited = append(s.edited, messageID)
	return &discordgo.Message{ID: messageID}, nil
}

func TestGeneratePunishmentStatsEmbed(t *testing.T) {
	src := &fixedStats{
		authors: map[string]int{"mod-b": 1, "mod-a": 3, model.SystemIdentity: 1},
		types:   map[model.Type]int{model.TypeWarn: 3, model.TypeBan: 2},
		total:   5,
	}

	embed, err := GeneratePunishmentStatsEmbed(context.Background(), src, 7*24*time.Hour, now)
	require.NoError(t, err)

	assert.Equal(t, now.Add(-7*24*time.Hour), src.since)
	assert.Contains(t, embed.Description, "last 7d")
	assert.Contains(t, embed.Description, "**Total: 5**")
	assert.Contains(t, embed.Description, "- WARN: 3\n- BAN: 2\n")
	assert.Contains(t, embed.Description, "1. <@mod-a>: 3\n2. <@mod-b>: 1\n3. system: 1\n")
	assert.Equal(t, now.Format(time.RFC3339), embed.Timestamp)
}

func TestGeneratePunishmentStatsEmbedError(t *testing.T) {
	src := &fixedStats{err: errors.New("db down")}
	_, err := GeneratePunishmentStatsEmbed(context.Background(), src, time.Hour, now)
	assert.Error(t, err)
}

func TestStatsReporterSendsThenEdits(t *testing.T) {
	sender := &fakeSender{}
	r := NewStatsReporter(sender, &fixedStats{total: 1}, "chan", time.Hour, testutil.Log())
	r.now = func() time.Time { return now }

	require.NoError(t, r.UpdatePunishmentStats(context.Background()))
	require.NoError(t, r.UpdatePunishmentStats(context.Background()))

	assert.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"msg-1"}, sender.edited)
}

func TestStatsReporterReplacesLostMessage(t *testing.T) {
	sender := &fakeSender{}
	r := NewStatsReporter(sender, &fixedStats{}, "chan", time.Hour, testutil.Log())

	require.NoError(t, r.UpdatePunishmentStats(context.Background()))
	sender.editErr = errors.New("unknown message")
	require.NoError(t, r.UpdatePunishmentStats(context.Background()))

	assert.Len(t, sender.sent, 2)
	assert.Equal(t, "msg-2", r.messageID)
}
