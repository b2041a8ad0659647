// Package logging builds the shared application logger.
package logging

import (
	"github.com/sirupsen/logrus"
)

// New creates a logrus logger with the given level and format. Unknown
// levels fall back to info; any format other than "json" selects text.
func New(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
