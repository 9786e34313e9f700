package model

import "time"

// PlayerPunished is published after a punishment has been committed.
type PlayerPunished struct {
	PunishmentID    string
	TargetID        string
	TargetName      string
	AuthorID        string
	AuthorName      string
	Type            Type
	Severity        Severity
	Reason          string
	DurationSeconds int64 // Permanent (-1) for no end
	AppliedAt       time.Time
}

// PlayerPunishmentReversed is published after a pardon or a correction has
// been committed.
type PlayerPunishmentReversed struct {
	PunishmentID string
	TargetID     string
	TargetName   string
	Type         Type
	Severity     Severity
	ReversalType ReversalType
	ActorID      string
	Reason       string
	ReversedAt   time.Time
}

func NewPlayerPunished(p Punishment) PlayerPunished {
	return PlayerPunished{
		PunishmentID:    p.ID,
		TargetID:        p.TargetID,
		TargetName:      p.TargetName,
		AuthorID:        p.AuthorID,
		AuthorName:      p.AuthorName,
		Type:            p.Type,
		Severity:        p.Severity,
		Reason:          p.Reason,
		DurationSeconds: p.DurationSeconds,
		AppliedAt:       p.AppliedAt,
	}
}

// NewPlayerPunishmentReversed builds the notification for an already reversed record.
func NewPlayerPunishmentReversed(p Punishment) PlayerPunishmentReversed {
	return PlayerPunishmentReversed{
		PunishmentID: p.ID,
		TargetID:     p.TargetID,
		TargetName:   p.TargetName,
		Type:         p.Type,
		Severity:     p.Severity,
		ReversalType: p.ReversalType,
		ActorID:      p.ReversedBy,
		Reason:       p.ReversalReason,
		ReversedAt:   p.ReversedAt,
	}
}
