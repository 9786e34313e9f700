package utils

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// log formats accepted by NewLogger
const (
	LogFormatText = "text"
	LogFormatJson = "json"
)

// NewLogger builds the process logger. An unknown level falls back to info.
func NewLogger(level, format string) *logrus.Logger {
	log := logrus.New()
	if strings.EqualFold(format, LogFormatJson) {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithError(err).Warnf("Invalid log level %q, using info", level)
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)
	return log
}
