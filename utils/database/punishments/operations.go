package punishments

import (
	"context"
	"time"

	"punish-engine/model"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type punishmentRow struct {
	PunishmentID    string `db:"punishment_id"`
	TargetID        string `db:"target_id"`
	TargetName      string `db:"target_name"`
	PunishmentType  string `db:"punishment_type"`
	Severity        string `db:"severity"`
	Reason          string `db:"reason"`
	AuthorID        string `db:"author_id"`
	AuthorName      string `db:"author_name"`
	AppliedAt       int64  `db:"applied_at"` // unix milliseconds
	DurationSeconds int64  `db:"duration_seconds"`
	Reversed        bool   `db:"reversed"`
	ReversalType    string `db:"reversal_type"`
	ReversedBy      string `db:"reversed_by"`
	ReversedAt      int64  `db:"reversed_at"` // unix milliseconds, 0 until reversed
	ReversalReason  string `db:"reversal_reason"`
}

const insertQuery = `INSERT INTO punishments (punishment_id, target_id, target_name, punishment_type, severity, reason, author_id, author_name, applied_at, duration_seconds, reversed, reversal_type, reversed_by, reversed_at, reversal_reason)
			  VALUES (:punishment_id, :target_id, :target_name, :punishment_type, :severity, :reason, :author_id, :author_name, :applied_at, :duration_seconds, :reversed, :reversal_type, :reversed_by, :reversed_at, :reversal_reason)`

// Reversal is one-way: a reversed row is never touched again.
const reverseQuery = `UPDATE punishments
			  SET reversed = 1, reversal_type = :reversal_type, reversed_by = :reversed_by, reversed_at = :reversed_at, reversal_reason = :reversal_reason
			  WHERE punishment_id = :punishment_id AND reversed = 0`

func toRow(p model.Punishment) punishmentRow {
	row := punishmentRow{
		PunishmentID:    p.ID,
		TargetID:        p.TargetID,
		TargetName:      p.TargetName,
		PunishmentType:  string(p.Type),
		Severity:        p.Severity.String(),
		Reason:          p.Reason,
		AuthorID:        p.AuthorID,
		AuthorName:      p.AuthorName,
		AppliedAt:       p.AppliedAt.UnixMilli(),
		DurationSeconds: p.DurationSeconds,
		Reversed:        p.Reversed,
		ReversalType:    string(p.ReversalType),
		ReversedBy:      p.ReversedBy,
		ReversalReason:  p.ReversalReason,
	}
	if !p.ReversedAt.IsZero() {
		row.ReversedAt = p.ReversedAt.UnixMilli()
	}
	return row
}

func (r punishmentRow) toModel() (model.Punishment, error) {
	typ, err := model.ParseType(r.PunishmentType)
	if err != nil {
		return model.Punishment{}, errors.Wrapf(err, "punishment %s", r.PunishmentID)
	}
	severity, err := model.ParseSeverity(r.Severity)
	if err != nil {
		return model.Punishment{}, errors.Wrapf(err, "punishment %s", r.PunishmentID)
	}
	p := model.Punishment{
		ID:              r.PunishmentID,
		TargetID:        r.TargetID,
		TargetName:      r.TargetName,
		Type:            typ,
		Severity:        severity,
		Reason:          r.Reason,
		AuthorID:        r.AuthorID,
		AuthorName:      r.AuthorName,
		AppliedAt:       time.UnixMilli(r.AppliedAt).UTC(),
		DurationSeconds: r.DurationSeconds,
		Reversed:        r.Reversed,
		ReversalType:    model.ReversalType(r.ReversalType),
		ReversedBy:      r.ReversedBy,
		ReversalReason:  r.ReversalReason,
	}
	if r.ReversedAt != 0 {
		p.ReversedAt = time.UnixMilli(r.ReversedAt).UTC()
	}
	return p, nil
}

// Load retrieves every punishment record of a target, oldest first.
func (s *Store) Load(ctx context.Context, targetID string) ([]model.Punishment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []punishmentRow
	query := "SELECT * FROM punishments WHERE target_id = ? ORDER BY applied_at ASC, punishment_id ASC"
	if err := s.db.SelectContext(ctx, &rows, query, targetID); err != nil {
		return nil, errors.Wrapf(err, "failed to get punishment records for target %s", targetID)
	}

	records := make([]model.Punishment, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, nil
}

// Save inserts a new punishment record.
func (s *Store) Save(ctx context.Context, p model.Punishment) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.NamedExecContext(ctx, insertQuery, toRow(p)); err != nil {
		return errors.Wrapf(err, "failed to insert punishment record %s", p.ID)
	}
	return nil
}

// Update persists the reversal fields of a record.
func (s *Store) Update(ctx context.Context, p model.Punishment) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return reverse(ctx, s.db, p)
}

// Supersede inserts next and persists the reversed records in one transaction.
func (s *Store) Supersede(ctx context.Context, reversed []model.Punishment, next model.Punishment) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin supersede transaction")
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertQuery, toRow(next)); err != nil {
		return errors.Wrapf(err, "failed to insert punishment record %s", next.ID)
	}
	for _, p := range reversed {
		if err := reverse(ctx, tx, p); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit supersede transaction")
	}
	return nil
}

func reverse(ctx context.Context, db sqlx.ExtContext, p model.Punishment) error {
	if !p.Reversed {
		return errors.Errorf("punishment %s is not reversed", p.ID)
	}
	result, err := sqlx.NamedExecContext(ctx, db, reverseQuery, toRow(p))
	if err != nil {
		return errors.Wrapf(err, "failed to update reversal of punishment %s", p.ID)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to check rows affected for punishment %s", p.ID)
	}
	if rowsAffected == 0 {
		return errors.Wrapf(model.ErrNotFound, "no unreversed punishment with id %s", p.ID)
	}
	return nil
}

// AuthorStats retrieves the punishment count of each author since the given time.
func (s *Store) AuthorStats(ctx context.Context, since time.Time) (map[string]int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `SELECT author_id, COUNT(*) as count FROM punishments WHERE applied_at >= ? GROUP BY author_id ORDER BY count DESC`
	rows, err := s.db.QueryContext(ctx, query, since.UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get author punishment stats")
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var authorID string
		var count int
		if err := rows.Scan(&authorID, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan author punishment stats row")
		}
		stats[authorID] = count
	}
	return stats, rows.Err()
}

// TypeStats retrieves the number of punishments of each type since the given time.
func (s *Store) TypeStats(ctx context.Context, since time.Time) (map[model.Type]int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []struct {
		PunishmentType string `db:"punishment_type"`
		Count          int    `db:"count"`
	}
	query := `SELECT punishment_type, COUNT(*) as count FROM punishments WHERE applied_at >= ? GROUP BY punishment_type`
	if err := s.db.SelectContext(ctx, &rows, query, since.UnixMilli()); err != nil {
		return nil, errors.Wrap(err, "failed to get punishment type stats")
	}

	stats := make(map[model.Type]int, len(rows))
	for _, row := range rows {
		stats[model.Type(row.PunishmentType)] = row.Count
	}
	return stats, nil
}

// CountSince retrieves the total number of punishments since the given time.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int
	query := `SELECT COUNT(*) FROM punishments WHERE applied_at >= ?`
	if err := s.db.GetContext(ctx, &count, query, since.UnixMilli()); err != nil {
		return 0, errors.Wrap(err, "failed to get total punishment count")
	}
	return count, nil
}

// ResolveIdentity maps a display name onto the target it was last recorded
// for. Names are matched case-insensitively.
func (s *Store) ResolveIdentity(ctx context.Context, name string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ids []string
	query := `SELECT target_id FROM punishments WHERE target_name = ? COLLATE NOCASE ORDER BY applied_at DESC LIMIT 1`
	if err := s.db.SelectContext(ctx, &ids, query, name); err != nil {
		return "", errors.Wrapf(err, "failed to resolve identity of %q", name)
	}
	if len(ids) == 0 {
		return "", errors.Wrapf(model.ErrUnknownIdentity, "%q", name)
	}
	return ids[0], nil
}
