package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			logg.SetLevel(parsed)
		}
	}
}

// GetLogger returns the shared process logger
func GetLogger() *logrus.Logger {
	return logg
}

// WithComponent returns an entry tagged with the emitting component name
func WithComponent(name string) *logrus.Entry {
	return logg.WithField("component", name)
}
