// Package resolver decides which punishment, if any, is in force. It performs
// no I/O: callers pass the history and the instant to evaluate against.
package resolver

import (
	"sort"
	"time"

	"punish-engine/model"
)

// IsCurrentlyActive reports whether p restricts its target at now.
func IsCurrentlyActive(p model.Punishment, now time.Time) bool {
	if p.Reversed || p.Type == model.TypeKick {
		return false
	}
	end, ok := p.ExpiresAt()
	if !ok {
		return true
	}
	return now.Before(end)
}

// ResolveActive returns the active record of the given type. When the history
// holds more than one active match, the most recently applied one wins and the
// rest count as superseded.
func ResolveActive(records []model.Punishment, typ model.Type, now time.Time) (model.Punishment, bool) {
	active := activeOf(records, now, typ)
	if len(active) == 0 {
		return model.Punishment{}, false
	}
	return active[0], true
}

// ResolveCategory returns the latest applied active record among the types of
// the category.
func ResolveCategory(records []model.Punishment, category model.Category, now time.Time) (model.Punishment, bool) {
	active := activeOf(records, now, category.Types()...)
	if len(active) == 0 {
		return model.Punishment{}, false
	}
	return active[0], true
}

// Superseded returns the active records of the given type that ResolveActive
// hides behind the tie-break.
func Superseded(records []model.Punishment, typ model.Type, now time.Time) []model.Punishment {
	active := activeOf(records, now, typ)
	if len(active) < 2 {
		return nil
	}
	return active[1:]
}

// ActiveSet resolves every type at once.
func ActiveSet(records []model.Punishment, now time.Time) map[model.Type]model.Punishment {
	set := make(map[model.Type]model.Punishment)
	for _, typ := range model.Types {
		if p, ok := ResolveActive(records, typ, now); ok {
			set[typ] = p
		}
	}
	return set
}

// activeOf returns the active records of the given types, latest first.
func activeOf(records []model.Punishment, now time.Time, types ...model.Type) []model.Punishment {
	var active []model.Punishment
	for _, p := range records {
		if !matches(p.Type, types) || !IsCurrentlyActive(p, now) {
			continue
		}
		active = append(active, p)
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].AppliedAt.Equal(active[j].AppliedAt) {
			return active[i].AppliedAt.After(active[j].AppliedAt)
		}
		return active[i].ID > active[j].ID
	})
	return active
}

func matches(typ model.Type, types []model.Type) bool {
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}
