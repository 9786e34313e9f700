package testutil

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// Log returns a logger that stays quiet unless tests run with -v.
func Log() *logrus.Logger {
	l := logrus.New()
	if !testing.Verbose() {
		l.Level = logrus.WarnLevel
	} else {
		l.Level = logrus.DebugLevel
	}
	return l
}
