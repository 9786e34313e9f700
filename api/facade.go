// Package api is the surface other modules call to query and issue
// punishments. It is safe to use before the ledger is attached: reads return
// "not punished" and writes report model.ErrNotInitialized.
package api

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"punish-engine/ledger"
	"punish-engine/model"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FailPolicy decides what a read reports when the store cannot answer.
type FailPolicy struct {
	// BanFailOpen reports "not banned" on a failed ban check.
	BanFailOpen bool
	// MuteFailClosed reports "muted" on a failed mute check.
	MuteFailClosed bool
}

type Facade struct {
	ledger     atomic.Pointer[ledger.Ledger]
	identities model.IdentityResolver
	policy     FailPolicy
	log        logrus.FieldLogger

	mu         sync.Mutex
	warnedOnce *sync.Once
}

func NewFacade(policy FailPolicy, identities model.IdentityResolver, log logrus.FieldLogger) *Facade {
	return &Facade{
		identities: identities,
		policy:     policy,
		log:        log,
		warnedOnce: &sync.Once{},
	}
}

// Attach wires the ledger in. Called once at startup.
func (f *Facade) Attach(l *ledger.Ledger) {
	f.ledger.Store(l)
	f.mu.Lock()
	f.warnedOnce = &sync.Once{}
	f.mu.Unlock()
	f.log.Info("Punishment engine attached")
}

// Detach unwires the ledger at shutdown.
func (f *Facade) Detach() {
	f.ledger.Store(nil)
	f.log.Info("Punishment engine detached")
}

// IsAvailable separates "definitely not punished" from "engine not ready".
func (f *Facade) IsAvailable() bool {
	return f.ledger.Load() != nil
}

func (f *Facade) current(op string) *ledger.Ledger {
	l := f.ledger.Load()
	if l == nil {
		f.mu.Lock()
		once := f.warnedOnce
		f.mu.Unlock()
		once.Do(func() {
			f.log.WithField("op", op).Warn("Punishment engine used before initialization, returning safe defaults")
		})
	}
	return l
}

// ApplyPunishment reports whether the punishment was committed. A validation
// problem or store failure comes back as the error.
func (f *Facade) ApplyPunishment(ctx context.Context, draft model.Punishment) (bool, error) {
	l := f.current("apply")
	if l == nil {
		return false, model.ErrNotInitialized
	}
	if _, err := l.Apply(ctx, draft); err != nil {
		return false, err
	}
	return true, nil
}

// PunishByName resolves the display name to an identity before applying.
func (f *Facade) PunishByName(ctx context.Context, name string, draft model.Punishment) (bool, error) {
	if f.current("apply") == nil {
		return false, model.ErrNotInitialized
	}
	if f.identities == nil {
		return false, errors.Wrap(model.ErrUnknownIdentity, "no identity resolver configured")
	}
	id, err := f.identities.ResolveIdentity(ctx, name)
	if err != nil {
		return false, errors.Wrapf(err, "resolve identity of %q", name)
	}
	if strings.TrimSpace(id) == "" {
		return false, errors.Wrapf(model.ErrUnknownIdentity, "%q", name)
	}
	draft.TargetID = id
	if draft.TargetName == "" {
		draft.TargetName = name
	}
	return f.ApplyPunishment(ctx, draft)
}

// PardonPunishment returns false with a nil error when nothing was active.
func (f *Facade) PardonPunishment(ctx context.Context, targetID string, typ model.Type, pardonerID, reason string) (bool, error) {
	l := f.current("pardon")
	if l == nil {
		return false, model.ErrNotInitialized
	}
	return l.Pardon(ctx, targetID, typ, pardonerID, reason)
}

// Unban pardons both BAN and TEMP_BAN.
func (f *Facade) Unban(ctx context.Context, targetID, pardonerID, reason string) (bool, error) {
	return f.pardonCategory(ctx, targetID, model.CategoryBan, pardonerID, reason)
}

// Unmute pardons both MUTE and TEMP_MUTE.
func (f *Facade) Unmute(ctx context.Context, targetID, pardonerID, reason string) (bool, error) {
	return f.pardonCategory(ctx, targetID, model.CategoryMute, pardonerID, reason)
}

func (f *Facade) pardonCategory(ctx context.Context, targetID string, category model.Category, pardonerID, reason string) (bool, error) {
	l := f.current("pardon")
	if l == nil {
		return false, model.ErrNotInitialized
	}
	n, err := l.PardonCategory(ctx, targetID, category, pardonerID, reason)
	return n > 0, err
}

// GetActivePunishment returns the active punishment of the given type. When
// the store cannot answer, the returned error is non-nil and the bool follows
// the fail policy for the type's category with a zero Punishment. Before
// Attach it reports none with model.ErrNotInitialized.
func (f *Facade) GetActivePunishment(ctx context.Context, targetID string, typ model.Type) (model.Punishment, bool, error) {
	l := f.current("get")
	if l == nil {
		return model.Punishment{}, false, model.ErrNotInitialized
	}
	p, ok, err := l.Active(ctx, targetID, typ)
	if err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{"target": targetID, "type": typ}).Warn("Active punishment lookup failed, applying fail policy")
		return model.Punishment{}, f.failedLookup(typ.Category()), err
	}
	return p, ok, nil
}

func (f *Facade) HasActivePunishment(ctx context.Context, targetID string, typ model.Type) bool {
	_, ok, _ := f.GetActivePunishment(ctx, targetID, typ)
	return ok
}

// IsBanned fails closed unless the policy says otherwise.
func (f *Facade) IsBanned(ctx context.Context, targetID string) bool {
	l := f.current("isBanned")
	if l == nil {
		return false
	}
	banned, err := l.IsBanned(ctx, targetID)
	if err != nil {
		f.log.WithError(err).WithField("target", targetID).Warn("Ban check failed, applying fail policy")
		return f.failedLookup(model.CategoryBan)
	}
	return banned
}

// IsMuted fails open unless the policy says otherwise.
func (f *Facade) IsMuted(ctx context.Context, targetID string) bool {
	l := f.current("isMuted")
	if l == nil {
		return false
	}
	muted, err := l.IsMuted(ctx, targetID)
	if err != nil {
		f.log.WithError(err).WithField("target", targetID).Warn("Mute check failed, applying fail policy")
		return f.failedLookup(model.CategoryMute)
	}
	return muted
}

// failedLookup is the answer given for a category when the store is down.
// Types outside the mute and ban categories are never active.
func (f *Facade) failedLookup(category model.Category) bool {
	switch category {
	case model.CategoryBan:
		return !f.policy.BanFailOpen
	case model.CategoryMute:
		return f.policy.MuteFailClosed
	default:
		return false
	}
}

// History reports model.ErrNotInitialized when the engine is unavailable.
func (f *Facade) History(ctx context.Context, targetID string) ([]model.Punishment, error) {
	l := f.current("history")
	if l == nil {
		return nil, model.ErrNotInitialized
	}
	return l.History(ctx, targetID)
}

// SuggestSeverity falls back to LOW when the engine is unavailable.
func (f *Facade) SuggestSeverity(ctx context.Context, targetID string, category model.Category) model.Severity {
	l := f.current("suggestSeverity")
	if l == nil {
		return model.SeverityLow
	}
	sev, err := l.SuggestSeverity(ctx, targetID, category)
	if err != nil {
		f.log.WithError(err).WithField("target", targetID).Warn("Severity suggestion failed")
		return model.SeverityLow
	}
	return sev
}
