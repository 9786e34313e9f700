package resolver

import (
	"testing"
	"time"

	"punish-engine/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id string, typ model.Type, appliedAt time.Time, duration int64) model.Punishment {
	return model.Punishment{
		ID:              id,
		TargetID:        "player-1",
		Type:            typ,
		Severity:        model.SeverityMedium,
		Reason:          "test",
		AuthorID:        "admin-1",
		AppliedAt:       appliedAt,
		DurationSeconds: duration,
	}
}

func TestIsCurrentlyActive(t *testing.T) {
	tempBan := record("a", model.TypeTempBan, t0, 60)
	permBan := record("b", model.TypeBan, t0, model.Permanent)
	kick := record("c", model.TypeKick, t0, 0)
	warn := record("d", model.TypeWarn, t0, 0)
	pardoned, err := permBan.Reverse(model.ReversalPardon, "admin-2", t0.Add(time.Minute), "appeal")
	require.NoError(t, err)

	tests := []struct {
		name   string
		p      model.Punishment
		at     time.Time
		active bool
	}{
		{name: "temp ban before end", p: tempBan, at: t0.Add(59 * time.Second), active: true},
		{name: "temp ban at end", p: tempBan, at: t0.Add(60 * time.Second), active: false},
		{name: "temp ban after end", p: tempBan, at: t0.Add(61 * time.Second), active: false},
		{name: "permanent ban far future", p: permBan, at: t0.Add(10_000_000 * time.Second), active: true},
		{name: "pardoned permanent ban", p: pardoned, at: t0.Add(2 * time.Minute), active: false},
		{name: "kick is never active", p: kick, at: t0, active: false},
		{name: "immediate warn", p: warn, at: t0, active: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, IsCurrentlyActive(tt.p, tt.at))
		})
	}
}

func TestResolveActive(t *testing.T) {
	older := record("older", model.TypeMute, t0, model.Permanent)
	newer := record("newer", model.TypeMute, t0.Add(time.Minute), model.Permanent)
	ban := record("ban", model.TypeBan, t0, model.Permanent)
	records := []model.Punishment{older, ban, newer}

	p, ok := ResolveActive(records, model.TypeMute, t0.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, "newer", p.ID, "the latest applied record wins the tie-break")
	assert.Equal(t, []model.Punishment{older}, Superseded(records, model.TypeMute, t0.Add(time.Hour)))

	_, ok = ResolveActive(records, model.TypeTempMute, t0.Add(time.Hour))
	assert.False(t, ok)

	_, ok = ResolveActive(nil, model.TypeBan, t0)
	assert.False(t, ok)
	assert.Nil(t, Superseded(records, model.TypeBan, t0))
}

func TestResolveCategory(t *testing.T) {
	perm := record("perm", model.TypeBan, t0, model.Permanent)
	temp := record("temp", model.TypeTempBan, t0.Add(time.Minute), 3600)

	p, ok := ResolveCategory([]model.Punishment{perm, temp}, model.CategoryBan, t0.Add(2*time.Minute))
	require.True(t, ok)
	assert.Equal(t, "temp", p.ID)

	p, ok = ResolveCategory([]model.Punishment{perm, temp}, model.CategoryBan, t0.Add(2*time.Hour))
	require.True(t, ok)
	assert.Equal(t, "perm", p.ID, "the permanent ban remains once the temporary one lapses")

	_, ok = ResolveCategory([]model.Punishment{perm, temp}, model.CategoryMute, t0)
	assert.False(t, ok)
}

func TestActiveSet(t *testing.T) {
	records := []model.Punishment{
		record("mute", model.TypeTempMute, t0, 30),
		record("ban", model.TypeBan, t0, model.Permanent),
		record("kick", model.TypeKick, t0, 0),
	}
	set := ActiveSet(records, t0.Add(10*time.Second))
	assert.Len(t, set, 2)
	assert.Contains(t, set, model.TypeTempMute)
	assert.Contains(t, set, model.TypeBan)

	set = ActiveSet(records, t0.Add(time.Minute))
	assert.Len(t, set, 1)
}
