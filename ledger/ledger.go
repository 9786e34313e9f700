// Package ledger is the only writer of punishment state. It keeps an
// in-memory index of active punishments per target in front of the store.
package ledger

import (
	"context"
	"fmt"
	"time"

	"punish-engine/events"
	"punish-engine/model"
	"punish-engine/resolver"
	"punish-engine/utils"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// activeSet is a cached snapshot of one target's active punishments. It is
// never modified after it is stored; writers replace it whole.
type activeSet map[model.Type]model.Punishment

type Options struct {
	LockStripes int
	Escalation  model.EscalationConfig
	Metrics     *Metrics
	// Clock defaults to time.Now. Every activity decision uses it.
	Clock func() time.Time
}

type Ledger struct {
	store      model.Store
	bus        *events.Bus
	cache      *cache.Cache
	locks      *utils.StripedLock
	escalation model.EscalationConfig
	metrics    *Metrics
	now        func() time.Time
	log        logrus.FieldLogger
}

func New(store model.Store, bus *events.Bus, log logrus.FieldLogger, opts Options) *Ledger {
	if bus == nil {
		bus = events.NewBus(log)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		store:      store,
		bus:        bus,
		cache:      cache.New(cache.NoExpiration, 0),
		locks:      utils.NewStripedLock(opts.LockStripes),
		escalation: opts.Escalation,
		metrics:    opts.Metrics,
		now:        clock,
		log:        log,
	}
}

// Bus returns the bus the ledger publishes on.
func (l *Ledger) Bus() *events.Bus {
	return l.bus
}

// Apply validates and commits a new punishment. The ledger assigns its ID and
// AppliedAt; values on the draft are ignored. An active punishment of the
// same type is reversed as a correction in the same operation. Validation
// failures return a *model.ValidationError without touching the store; store
// failures return an error matching model.ErrStoreUnavailable.
func (l *Ledger) Apply(ctx context.Context, draft model.Punishment) (model.Punishment, error) {
	if err := draft.Validate(); err != nil {
		return model.Punishment{}, err
	}

	next := draft
	next.ID = uuid.NewString()

	unlock := l.locks.Lock(next.TargetID)
	defer unlock()

	now := l.now()
	next.AppliedAt = now
	log := l.log.WithFields(logrus.Fields{"target": next.TargetID, "type": next.Type, "punishment": next.ID})

	records, err := l.load(ctx, next.TargetID)
	if err != nil {
		log.WithError(err).Error("Failed to load punishment history before apply")
		return model.Punishment{}, err
	}

	var corrections []model.Punishment
	if prior, ok := resolver.ResolveActive(records, next.Type, now); ok {
		stale := resolver.Superseded(records, next.Type, now)
		for _, p := range append([]model.Punishment{prior}, stale...) {
			reversed, err := p.Reverse(model.ReversalCorrection, next.AuthorID, now, fmt.Sprintf("superseded by %s", next.ID))
			if err != nil {
				return model.Punishment{}, errors.Wrapf(err, "correct punishment %s", p.ID)
			}
			corrections = append(corrections, reversed)
		}
	}

	if err := l.commit(ctx, corrections, next); err != nil {
		l.metrics.incStoreFailure("apply")
		log.WithError(err).Error("Failed to commit punishment")
		return model.Punishment{}, err
	}

	records = append(replace(records, corrections), next)
	l.cache.Set(next.TargetID, activeSet(resolver.ActiveSet(records, now)), cache.NoExpiration)

	for _, c := range corrections {
		l.metrics.incReversed(string(c.ReversalType))
		log.WithField("corrected", c.ID).Info("Punishment superseded")
		l.bus.PublishReversed(model.NewPlayerPunishmentReversed(c))
	}
	l.metrics.incApplied(string(next.Type))
	log.WithFields(logrus.Fields{"severity": next.Severity, "duration": next.DurationSeconds}).Info("Punishment applied")
	l.bus.PublishPunished(model.NewPlayerPunished(next))

	return next, nil
}

// commit persists the new record. When it supersedes active records, the
// corrections and the insert go through one atomic Supersede.
func (l *Ledger) commit(ctx context.Context, corrections []model.Punishment, next model.Punishment) error {
	if len(corrections) == 0 {
		if err := l.store.Save(ctx, next); err != nil {
			return storeError("save", err)
		}
		return nil
	}
	if err := l.store.Supersede(ctx, corrections, next); err != nil {
		return storeError("supersede", err)
	}
	return nil
}

// Pardon reverses the active punishment of the given type. It returns false
// with a nil error when there is nothing to pardon, which makes repeated calls
// harmless.
func (l *Ledger) Pardon(ctx context.Context, targetID string, typ model.Type, pardonerID, reason string) (bool, error) {
	if err := model.ValidatePardon(targetID, typ, pardonerID, reason); err != nil {
		return false, err
	}

	unlock := l.locks.Lock(targetID)
	defer unlock()
	return l.pardonLocked(ctx, targetID, typ, pardonerID, reason)
}

// PardonCategory pardons every active punishment of the category's types and
// returns how many were pardoned.
func (l *Ledger) PardonCategory(ctx context.Context, targetID string, category model.Category, pardonerID, reason string) (int, error) {
	for _, typ := range category.Types() {
		if err := model.ValidatePardon(targetID, typ, pardonerID, reason); err != nil {
			return 0, err
		}
	}

	unlock := l.locks.Lock(targetID)
	defer unlock()

	pardoned := 0
	for _, typ := range category.Types() {
		ok, err := l.pardonLocked(ctx, targetID, typ, pardonerID, reason)
		if err != nil {
			return pardoned, err
		}
		if ok {
			pardoned++
		}
	}
	return pardoned, nil
}

func (l *Ledger) pardonLocked(ctx context.Context, targetID string, typ model.Type, pardonerID, reason string) (bool, error) {
	log := l.log.WithFields(logrus.Fields{"target": targetID, "type": typ})
	now := l.now()

	records, err := l.load(ctx, targetID)
	if err != nil {
		log.WithError(err).Error("Failed to load punishment history before pardon")
		return false, err
	}
	active, ok := resolver.ResolveActive(records, typ, now)
	if !ok {
		log.Debug("Nothing to pardon")
		return false, nil
	}

	pardoned, err := active.Reverse(model.ReversalPardon, pardonerID, now, reason)
	if err != nil {
		return false, errors.Wrapf(err, "pardon punishment %s", active.ID)
	}
	if err := l.store.Update(ctx, pardoned); err != nil {
		l.metrics.incStoreFailure("pardon")
		log.WithError(err).Error("Failed to persist pardon")
		return false, storeError("update", err)
	}
	changed := []model.Punishment{pardoned}

	// Leftover active duplicates would otherwise surface once the winner is gone.
	for _, stale := range resolver.Superseded(records, typ, now) {
		corrected, err := stale.Reverse(model.ReversalCorrection, pardonerID, now, fmt.Sprintf("duplicate of pardoned %s", active.ID))
		if err != nil {
			continue
		}
		if err := l.store.Update(ctx, corrected); err != nil {
			l.metrics.incStoreFailure("pardon")
			log.WithError(err).WithField("punishment", stale.ID).Warn("Failed to correct duplicate active punishment")
			continue
		}
		changed = append(changed, corrected)
	}

	records = replace(records, changed)
	l.cache.Set(targetID, activeSet(resolver.ActiveSet(records, now)), cache.NoExpiration)

	for _, c := range changed {
		l.metrics.incReversed(string(c.ReversalType))
		l.bus.PublishReversed(model.NewPlayerPunishmentReversed(c))
	}
	log.WithFields(logrus.Fields{"punishment": active.ID, "by": pardonerID}).Info("Punishment pardoned")
	return true, nil
}

// Active returns the active punishment of the given type for the target.
func (l *Ledger) Active(ctx context.Context, targetID string, typ model.Type) (model.Punishment, bool, error) {
	set, err := l.snapshot(ctx, targetID)
	if err != nil {
		return model.Punishment{}, false, err
	}
	p, ok := set[typ]
	if !ok || !resolver.IsCurrentlyActive(p, l.now()) {
		return model.Punishment{}, false, nil
	}
	return p, true, nil
}

// ActiveInCategory returns the most recently applied active punishment among
// the category's types.
func (l *Ledger) ActiveInCategory(ctx context.Context, targetID string, category model.Category) (model.Punishment, bool, error) {
	set, err := l.snapshot(ctx, targetID)
	if err != nil {
		return model.Punishment{}, false, err
	}
	candidates := make([]model.Punishment, 0, len(set))
	for _, p := range set {
		candidates = append(candidates, p)
	}
	p, ok := resolver.ResolveCategory(candidates, category, l.now())
	return p, ok, nil
}

// IsMuted covers both MUTE and TEMP_MUTE.
func (l *Ledger) IsMuted(ctx context.Context, targetID string) (bool, error) {
	_, ok, err := l.ActiveInCategory(ctx, targetID, model.CategoryMute)
	return ok, err
}

// IsBanned covers both BAN and TEMP_BAN.
func (l *Ledger) IsBanned(ctx context.Context, targetID string) (bool, error) {
	_, ok, err := l.ActiveInCategory(ctx, targetID, model.CategoryBan)
	return ok, err
}

// History returns every record of the target, active or not.
func (l *Ledger) History(ctx context.Context, targetID string) ([]model.Punishment, error) {
	return l.load(ctx, targetID)
}

// Invalidate drops the cached snapshot of one target.
func (l *Ledger) Invalidate(targetID string) {
	l.cache.Delete(targetID)
}

// Flush drops every cached snapshot.
func (l *Ledger) Flush() {
	l.cache.Flush()
}

func (l *Ledger) CacheSize() int {
	return l.cache.ItemCount()
}

// EvictInactive drops cached snapshots that no longer hold an active
// punishment. It only frees memory; reads stay correct without it.
func (l *Ledger) EvictInactive() int {
	evicted := 0
	for targetID := range l.cache.Items() {
		if l.evictIfInactive(targetID) {
			evicted++
		}
	}
	return evicted
}

func (l *Ledger) evictIfInactive(targetID string) bool {
	unlock := l.locks.Lock(targetID)
	defer unlock()

	v, ok := l.cache.Get(targetID)
	if !ok {
		return false
	}
	now := l.now()
	for _, p := range v.(activeSet) {
		if resolver.IsCurrentlyActive(p, now) {
			return false
		}
	}
	l.cache.Delete(targetID)
	return true
}

// snapshot returns the cached active set, loading it on a miss. The read lock
// keeps a miss from caching history that a concurrent write is replacing.
func (l *Ledger) snapshot(ctx context.Context, targetID string) (activeSet, error) {
	if v, ok := l.cache.Get(targetID); ok {
		l.metrics.incCacheLookup(true)
		return v.(activeSet), nil
	}
	l.metrics.incCacheLookup(false)

	unlock := l.locks.RLock(targetID)
	defer unlock()

	if v, ok := l.cache.Get(targetID); ok {
		return v.(activeSet), nil
	}
	records, err := l.load(ctx, targetID)
	if err != nil {
		l.log.WithError(err).WithField("target", targetID).Warn("Failed to load punishment history")
		return nil, err
	}
	set := activeSet(resolver.ActiveSet(records, l.now()))
	l.cache.Set(targetID, set, cache.NoExpiration)
	return set, nil
}

func (l *Ledger) load(ctx context.Context, targetID string) ([]model.Punishment, error) {
	records, err := l.store.Load(ctx, targetID)
	if err != nil {
		l.metrics.incStoreFailure("load")
		return nil, storeError("load", err)
	}
	return records, nil
}

// replace returns records with every entry whose ID appears in changed swapped
// for the changed version.
func replace(records, changed []model.Punishment) []model.Punishment {
	byID := make(map[string]model.Punishment, len(changed))
	for _, c := range changed {
		byID[c.ID] = c
	}
	out := make([]model.Punishment, 0, len(records)+1)
	for _, r := range records {
		if c, ok := byID[r.ID]; ok {
			r = c
		}
		out = append(out, r)
	}
	return out
}

func storeError(op string, err error) error {
	if errors.Is(err, model.ErrStoreUnavailable) {
		return errors.WithMessage(err, op)
	}
	return errors.Wrapf(model.ErrStoreUnavailable, "%s: %v", op, err)
}
