package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger. Production and staging log JSON,
// everything else logs human-readable text. A non-empty file also receives
// every entry through a size-rotated writer.
func New(level, environment, file string) *logrus.Logger {
	var out io.Writer = os.Stdout
	if file != "" {
		out = io.MultiWriter(os.Stdout, rotating(file))
	}
	return build(out, level, environment)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func rotating(file string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

func build(out io.Writer, level, environment string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warnf("invalid log level %q, defaulting to info", level)
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	switch strings.ToLower(environment) {
	case "production", "staging":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.Debugf("logger ready: level=%s environment=%s", log.GetLevel(), environment)
	return log
}
