package api

import (
	"context"
	"errors"
	"sync"
	"testing"

	"punish-engine/ledger"
	"punish-engine/model"
	"punish-engine/utils/testutil"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu      sync.Mutex
	records map[string][]model.Punishment
	fail    error
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[string][]model.Punishment)}
}

func (s *stubStore) Load(_ context.Context, targetID string) ([]model.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	return append([]model.Punishment(nil), s.records[targetID]...), nil
}

func (s *stubStore) Save(_ context.Context, p model.Punishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.records[p.TargetID] = append(s.records[p.TargetID], p)
	return nil
}

func (s *stubStore) Update(_ context.Context, p model.Punishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	for i, r := range s.records[p.TargetID] {
		if r.ID == p.ID {
			s.records[p.TargetID][i] = p
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *stubStore) Supersede(_ context.Context, reversed []model.Punishment, next model.Punishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	for _, r := range reversed {
		for i, existing := range s.records[r.TargetID] {
			if existing.ID == r.ID {
				s.records[r.TargetID][i] = r
			}
		}
	}
	s.records[next.TargetID] = append(s.records[next.TargetID], next)
	return nil
}

type nameBook map[string]string

func (b nameBook) ResolveIdentity(_ context.Context, name string) (string, error) {
	id, ok := b[name]
	if !ok {
		return "", model.ErrUnknownIdentity
	}
	return id, nil
}

func ban(target string) model.Punishment {
	return model.Punishment{
		TargetID:        target,
		Type:            model.TypeBan,
		Severity:        model.SeverityHigh,
		Reason:          "cheating",
		AuthorID:        "admin-1",
		DurationSeconds: model.Permanent,
	}
}

func attached(t *testing.T, policy FailPolicy) (*Facade, *stubStore) {
	t.Helper()
	store := newStubStore()
	log := testutil.Log()
	f := NewFacade(policy, nameBook{"Steve": "uuid-steve"}, log)
	f.Attach(ledger.New(store, nil, log, ledger.Options{}))
	return f, store
}

func TestSafeDefaultsBeforeAttach(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	f := NewFacade(FailPolicy{}, nil, log)
	ctx := context.Background()

	assert.False(t, f.IsAvailable())
	assert.False(t, f.IsBanned(ctx, "p1"))
	assert.False(t, f.IsMuted(ctx, "p1"))
	assert.False(t, f.HasActivePunishment(ctx, "p1", model.TypeBan))
	_, ok, err := f.GetActivePunishment(ctx, "p1", model.TypeBan)
	assert.False(t, ok)
	assert.ErrorIs(t, err, model.ErrNotInitialized)
	assert.Equal(t, model.SeverityLow, f.SuggestSeverity(ctx, "p1", model.CategoryBan))

	applied, err := f.ApplyPunishment(ctx, ban("p1"))
	assert.False(t, applied)
	assert.ErrorIs(t, err, model.ErrNotInitialized)

	pardoned, err := f.PardonPunishment(ctx, "p1", model.TypeBan, "admin-1", "appeal")
	assert.False(t, pardoned)
	assert.ErrorIs(t, err, model.ErrNotInitialized)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings, "the missing engine is logged once")
}

func TestApplyAndPardonThroughFacade(t *testing.T) {
	f, _ := attached(t, FailPolicy{})
	ctx := context.Background()
	require.True(t, f.IsAvailable())

	ok, err := f.ApplyPunishment(ctx, ban("p1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.IsBanned(ctx, "p1"))
	assert.True(t, f.HasActivePunishment(ctx, "p1", model.TypeBan))

	ok, err = f.PardonPunishment(ctx, "p1", model.TypeBan, "admin-2", "appeal granted")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.IsBanned(ctx, "p1"))

	ok, err = f.PardonPunishment(ctx, "p1", model.TypeBan, "admin-2", "appeal granted")
	require.NoError(t, err)
	assert.False(t, ok)

	history, err := f.History(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestValidationErrorIsReturned(t *testing.T) {
	f, _ := attached(t, FailPolicy{})
	d := ban("p1")
	d.Reason = ""

	ok, err := f.ApplyPunishment(context.Background(), d)
	assert.False(t, ok)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestUnbanAndUnmute(t *testing.T) {
	f, _ := attached(t, FailPolicy{})
	ctx := context.Background()

	temp := ban("p1")
	temp.Type = model.TypeTempBan
	temp.DurationSeconds = 3600
	_, err := f.ApplyPunishment(ctx, temp)
	require.NoError(t, err)

	ok, err := f.Unban(ctx, "p1", "admin-2", "served")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.IsBanned(ctx, "p1"))

	ok, err = f.Unmute(ctx, "p1", "admin-2", "nothing to lift")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPunishByName(t *testing.T) {
	f, store := attached(t, FailPolicy{})
	ctx := context.Background()

	ok, err := f.PunishByName(ctx, "Steve", ban(""))
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, store.records["uuid-steve"], 1)
	assert.Equal(t, "Steve", store.records["uuid-steve"][0].TargetName)

	ok, err = f.PunishByName(ctx, "Alex", ban(""))
	assert.False(t, ok)
	assert.ErrorIs(t, err, model.ErrUnknownIdentity)
}

func TestFailPolicyDefaults(t *testing.T) {
	f, store := attached(t, FailPolicy{})
	store.fail = errors.New("database is locked")
	ctx := context.Background()

	assert.True(t, f.IsBanned(ctx, "p1"), "ban checks fail closed by default")
	assert.False(t, f.IsMuted(ctx, "p1"), "mute checks fail open by default")
	assert.True(t, f.HasActivePunishment(ctx, "p1", model.TypeBan))
	assert.True(t, f.HasActivePunishment(ctx, "p1", model.TypeTempBan))
	assert.False(t, f.HasActivePunishment(ctx, "p1", model.TypeMute))
	assert.False(t, f.HasActivePunishment(ctx, "p1", model.TypeTempMute))
	assert.False(t, f.HasActivePunishment(ctx, "p1", model.TypeWarn))

	p, ok, err := f.GetActivePunishment(ctx, "p1", model.TypeBan)
	assert.True(t, ok)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Empty(t, p.ID, "no record is invented for a failed lookup")

	ok, err = f.ApplyPunishment(ctx, ban("p1"))
	assert.False(t, ok)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestFailPolicyOverrides(t *testing.T) {
	f, store := attached(t, FailPolicy{BanFailOpen: true, MuteFailClosed: true})
	store.fail = errors.New("database is locked")
	ctx := context.Background()

	assert.False(t, f.IsBanned(ctx, "p1"))
	assert.True(t, f.IsMuted(ctx, "p1"))
	assert.False(t, f.HasActivePunishment(ctx, "p1", model.TypeTempBan))
	assert.True(t, f.HasActivePunishment(ctx, "p1", model.TypeMute))

	_, ok, err := f.GetActivePunishment(ctx, "p1", model.TypeTempMute)
	assert.True(t, ok)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestDetach(t *testing.T) {
	f, _ := attached(t, FailPolicy{})
	ctx := context.Background()
	_, err := f.ApplyPunishment(ctx, ban("p1"))
	require.NoError(t, err)

	f.Detach()
	assert.False(t, f.IsAvailable())
	assert.False(t, f.IsBanned(ctx, "p1"))
}
