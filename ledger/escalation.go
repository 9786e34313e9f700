package ledger

import (
	"context"

	"punish-engine/model"
)

var defaultLadder = []int{2, 3, 5}

// SuggestSeverity proposes a severity for a new punishment of the category
// from the target's prior offenses inside the escalation window. Pardoned
// records do not count.
func (l *Ledger) SuggestSeverity(ctx context.Context, targetID string, category model.Category) (model.Severity, error) {
	records, err := l.load(ctx, targetID)
	if err != nil {
		return model.SeverityLow, err
	}
	return severityFor(l.priorOffenses(records, category), l.ladder()), nil
}

func (l *Ledger) priorOffenses(records []model.Punishment, category model.Category) int {
	var since int64
	if l.escalation.Window > 0 {
		since = l.now().Add(-l.escalation.Window).Unix()
	}
	count := 0
	for _, p := range records {
		if p.Type.Category() != category {
			continue
		}
		if p.Reversed && p.ReversalType == model.ReversalPardon {
			continue
		}
		if since != 0 && p.AppliedAt.Unix() < since {
			continue
		}
		count++
	}
	return count
}

func (l *Ledger) ladder() []int {
	if len(l.escalation.Ladder) == 0 {
		return defaultLadder
	}
	return l.escalation.Ladder
}

// severityFor walks the ladder: reaching the i-th threshold promotes the
// suggestion by i+1 steps above LOW, capped at CRITICAL.
func severityFor(offenses int, ladder []int) model.Severity {
	severity := model.SeverityLow
	for i, threshold := range ladder {
		if offenses < threshold {
			break
		}
		severity = model.SeverityLow + model.Severity(i+1)
	}
	if severity > model.SeverityCritical {
		severity = model.SeverityCritical
	}
	return severity
}
