package model

import (
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Permanent is the DurationSeconds sentinel for punishments without an end.
const Permanent int64 = -1

// SystemIdentity authors automated punishments.
const SystemIdentity = "system"

// Type is the kind of disciplinary action.
type Type string

const (
	TypeWarn     Type = "WARN"
	TypeKick     Type = "KICK"
	TypeMute     Type = "MUTE"
	TypeTempMute Type = "TEMP_MUTE"
	TypeBan      Type = "BAN"
	TypeTempBan  Type = "TEMP_BAN"
)

// Types lists every known punishment type.
var Types = []Type{TypeWarn, TypeKick, TypeMute, TypeTempMute, TypeBan, TypeTempBan}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Temporary reports whether the type must carry a positive duration.
func (t Type) Temporary() bool {
	return t == TypeTempMute || t == TypeTempBan
}

// Category groups the temporary and permanent variants of one restriction.
func (t Type) Category() Category {
	switch t {
	case TypeMute, TypeTempMute:
		return CategoryMute
	case TypeBan, TypeTempBan:
		return CategoryBan
	case TypeKick:
		return CategoryKick
	default:
		return CategoryWarn
	}
}

// ParseType accepts the stored name of a type, case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", errors.Errorf("unknown punishment type %q", s)
	}
	return t, nil
}

// Category is one restriction axis callers query without caring about duration.
type Category string

const (
	CategoryWarn Category = "warn"
	CategoryKick Category = "kick"
	CategoryMute Category = "mute"
	CategoryBan  Category = "ban"
)

// Types returns the punishment types that belong to the category.
func (c Category) Types() []Type {
	switch c {
	case CategoryMute:
		return []Type{TypeMute, TypeTempMute}
	case CategoryBan:
		return []Type{TypeBan, TypeTempBan}
	case CategoryKick:
		return []Type{TypeKick}
	case CategoryWarn:
		return []Type{TypeWarn}
	}
	return nil
}

// Severity classifies a punishment for escalation and audit. Ordered.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity accepts the String form of a severity, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	for sev := SeverityLow; sev <= SeverityCritical; sev++ {
		if strings.EqualFold(strings.TrimSpace(s), sev.String()) {
			return sev, nil
		}
	}
	return 0, errors.Errorf("unknown severity %q", s)
}

// ReversalType tells a pardon apart from a supersession by a newer punishment.
type ReversalType string

const (
	ReversalNone       ReversalType = ""
	ReversalPardon     ReversalType = "PARDON"
	ReversalCorrection ReversalType = "CORRECTION"
)

// Punishment is one disciplinary record. Records are never deleted; the only
// mutation is the one-way transition into the reversed state.
type Punishment struct {
	ID              string
	TargetID        string
	TargetName      string
	Type            Type
	Severity        Severity
	Reason          string
	AuthorID        string
	AuthorName      string
	AppliedAt       time.Time
	DurationSeconds int64

	Reversed       bool
	ReversalType   ReversalType
	ReversedBy     string
	ReversedAt     time.Time
	ReversalReason string
}

func (p Punishment) IsPermanent() bool {
	return p.DurationSeconds == Permanent
}

// ExpiresAt returns the end of the validity window. ok is false for permanent
// punishments.
func (p Punishment) ExpiresAt() (time.Time, bool) {
	if p.IsPermanent() {
		return time.Time{}, false
	}
	return p.AppliedAt.Add(time.Duration(p.DurationSeconds) * time.Second), true
}

// Validate checks a draft before it reaches the store and reports every
// problem at once.
func (p Punishment) Validate() error {
	var result *multierror.Error
	if strings.TrimSpace(p.TargetID) == "" {
		result = multierror.Append(result, errors.New("target identity is required"))
	}
	if strings.TrimSpace(p.AuthorID) == "" {
		result = multierror.Append(result, errors.New("author identity is required"))
	}
	if strings.TrimSpace(p.Reason) == "" {
		result = multierror.Append(result, errors.New("reason is required"))
	}
	if !p.Type.Valid() {
		result = multierror.Append(result, errors.Errorf("unknown punishment type %q", p.Type))
	}
	if !p.Severity.Valid() {
		result = multierror.Append(result, errors.Errorf("unknown severity %d", p.Severity))
	}
	switch {
	case p.DurationSeconds < Permanent:
		result = multierror.Append(result, errors.Errorf("malformed duration %d", p.DurationSeconds))
	case p.Type == TypeKick && p.DurationSeconds != 0:
		result = multierror.Append(result, errors.New("a kick cannot carry a duration"))
	case p.Type.Temporary() && p.DurationSeconds <= 0:
		result = multierror.Append(result, errors.Errorf("%s requires a positive duration", p.Type))
	case (p.Type == TypeMute || p.Type == TypeBan) && p.DurationSeconds == 0:
		result = multierror.Append(result, errors.Errorf("%s requires a duration, use %d for permanent", p.Type, Permanent))
	}
	if p.Reversed {
		result = multierror.Append(result, errors.New("a new punishment cannot already be reversed"))
	}
	if result == nil {
		return nil
	}
	return &ValidationError{errs: result}
}

// Reverse returns a copy of p moved into the terminal reversed state.
func (p Punishment) Reverse(kind ReversalType, by string, at time.Time, reason string) (Punishment, error) {
	if p.Reversed {
		return p, ErrAlreadyReversed
	}
	if kind != ReversalPardon && kind != ReversalCorrection {
		return p, errors.Errorf("unknown reversal type %q", kind)
	}
	p.Reversed = true
	p.ReversalType = kind
	p.ReversedBy = by
	p.ReversedAt = at
	p.ReversalReason = reason
	return p, nil
}

// ValidatePardon checks the arguments of a pardon request.
func ValidatePardon(targetID string, typ Type, pardonerID, reason string) error {
	var problems []error
	if strings.TrimSpace(targetID) == "" {
		problems = append(problems, errors.New("target identity is required"))
	}
	if !typ.Valid() {
		problems = append(problems, errors.Errorf("unknown punishment type %q", typ))
	}
	if strings.TrimSpace(pardonerID) == "" {
		problems = append(problems, errors.New("pardoner identity is required"))
	}
	if strings.TrimSpace(reason) == "" {
		problems = append(problems, errors.New("reason is required"))
	}
	return NewValidationError(problems...)
}
