// Package logging builds the structured loggers shared by every fastpanel
// process.
//
// Usage:
//
//	log := logging.New("processor", logging.Options{Level: "debug"})
//	log.WithField("client_id", id).Info("playlist generated")
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, format and an optional rotated log file.
type Options struct {
	Level  string // logrus level name, default info
	Format string // "json" (default) or "text"
	File   string // when set, lines are also written here with rotation
}

// New returns a logger whose every line carries the service field.
func New(service string, opts Options) *logrus.Entry {
	log := logrus.New()
	if opts.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	log.SetOutput(out)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log.WithField("service", service)
}
