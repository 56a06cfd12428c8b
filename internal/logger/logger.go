package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vitalsense/mlserve/internal/env"
)

type options struct {
	logToFile bool
	logFile   string
	level     slog.Leveler
}

// Option configures the logger.
type Option func(*options)

// WithLogToFile mirrors log output to a rotating log file.
func WithLogToFile(enabled bool) Option {
	return func(o *options) { o.logToFile = enabled }
}

// WithLogFile sets the log file path used when file logging is enabled.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) { o.level = level }
}

// New builds a logger for the given environment. Production gets plain text
// output; development gets tinted, human-oriented output.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := options{
		logFile: filepath.Join("logs", "mlserve.log"),
		level:   slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var w io.Writer = os.Stderr
	if o.logToFile {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
	}

	var handler slog.Handler
	if environment == env.Production {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: o.level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      o.level,
			TimeFormat: time.TimeOnly,
		})
	}

	return slog.New(handler)
}
