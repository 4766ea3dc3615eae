package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Apply configures the standard logrus logger from l.
func (l *LoggingConfig) Apply() error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	logrus.SetLevel(level)

	switch l.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("logging format %q not supported", l.Format)
	}
	return nil
}
