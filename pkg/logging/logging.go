// Package logging configures the shared logrus logger and hands out
// per-package zone loggers.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Zone returns a logger tagged with the given zone name.
func Zone(name string) *logrus.Entry {
	return logrus.StandardLogger().WithField("zone", name)
}

// Setup sets the level and output format of the standard logger.
// Format is "text" or "json".
func Setup(level, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	l := logrus.StandardLogger()
	l.SetLevel(lvl)
	if out != nil {
		l.SetOutput(out)
	}

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}
