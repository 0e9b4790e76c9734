// Package logging wraps zerolog with rotation and the fluent helpers used
// across the registry's components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel is one of zerolog's named levels.
type LogLevel string

const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

// Config controls where and how logs are written.
type Config struct {
	Level           LogLevel `json:"level"`
	OutputConsole   bool     `json:"outputConsole"`
	OutputFile      bool     `json:"outputFile"`
	LogDirectory    string   `json:"logDirectory"`
	MaxFileSize     int      `json:"maxFileSize"`
	MaxBackups      int      `json:"maxBackups"`
	MaxAge          int      `json:"maxAge"`
	CompressBackups bool     `json:"compressBackups"`
}

// DefaultConfig returns the registry's default logging posture: console +
// rotating file, 10MB x 5 backups.
func DefaultConfig() *Config {
	return &Config{
		Level:           LevelInfo,
		OutputConsole:   true,
		OutputFile:      true,
		LogDirectory:    "logs",
		MaxFileSize:     10,
		MaxBackups:      5,
		MaxAge:          30,
		CompressBackups: true,
	}
}

// Logger wraps a configured zerolog.Logger.
type Logger struct {
	logger zerolog.Logger
	config *Config
}

// NewLogger builds a Logger from config, defaulting when nil.
func NewLogger(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var writers []io.Writer

	if config.OutputConsole {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	if config.OutputFile {
		if err := os.MkdirAll(config.LogDirectory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(config.LogDirectory, "estuary.log"),
			MaxSize:    config.MaxFileSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.CompressBackups,
		})
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = os.Stderr
	case 1:
		output = writers[0]
	default:
		output = io.MultiWriter(writers...)
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	logger = applyLevel(logger, config.Level)

	return &Logger{logger: logger, config: config}, nil
}

func applyLevel(l zerolog.Logger, level LogLevel) zerolog.Logger {
	switch level {
	case LevelTrace:
		return l.Level(zerolog.TraceLevel)
	case LevelDebug:
		return l.Level(zerolog.DebugLevel)
	case LevelWarn:
		return l.Level(zerolog.WarnLevel)
	case LevelError:
		return l.Level(zerolog.ErrorLevel)
	case LevelFatal:
		return l.Level(zerolog.FatalLevel)
	default:
		return l.Level(zerolog.InfoLevel)
	}
}

// WithContext returns a derived logger carrying extra structured fields.
func (l *Logger) WithContext(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger(), config: l.config}
}

// WithRequestID returns a derived logger tagged with a correlation ID.
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{logger: l.logger.With().Str("request_id", id).Logger(), config: l.config}
}

// WithOperation returns a derived logger tagged with an operation name.
func (l *Logger) WithOperation(op string) *Logger {
	return &Logger{logger: l.logger.With().Str("operation", op).Logger(), config: l.config}
}

// WithError returns a derived logger carrying an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger(), config: l.config}
}

func (l *Logger) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.logger.Fatal() }

// GetConfig returns the configuration the logger was built with.
func (l *Logger) GetConfig() *Config { return l.config }

// UpdateLevel changes the minimum log level at runtime.
func (l *Logger) UpdateLevel(level LogLevel) {
	l.logger = applyLevel(l.logger, level)
	l.config.Level = level
}
