package utils

import (
	"strconv"
	"strings"
	"time"

	"punish-engine/model"

	"github.com/pkg/errors"
)

// ParseDuration extends time.ParseDuration to support days (d).
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		daysStr := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, errors.Errorf("invalid day value: %s", daysStr)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// FormatPunishmentDuration renders DurationSeconds for notifications.
func FormatPunishmentDuration(seconds int64) string {
	switch {
	case seconds == model.Permanent:
		return "permanent"
	case seconds == 0:
		return "immediate"
	case seconds%86400 == 0:
		return strconv.FormatInt(seconds/86400, 10) + "d"
	}
	return (time.Duration(seconds) * time.Second).String()
}
