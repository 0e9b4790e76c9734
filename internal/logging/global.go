package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	globalLogger *Logger
	loggerMutex  sync.RWMutex
)

// Initialize sets up the global logger from config.
func Initialize(config *Config) error {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logger, err := NewLogger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	globalLogger = logger
	return nil
}

// GetLogger returns the global logger, lazily creating a fallback one.
func GetLogger() *Logger {
	loggerMutex.RLock()
	l := globalLogger
	loggerMutex.RUnlock()
	if l != nil {
		return l
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		logger, err := NewLogger(DefaultConfig())
		if err != nil {
			// last resort: an unconfigured console-only logger never errors
			logger, _ = NewLogger(&Config{Level: LevelInfo, OutputConsole: true})
		}
		globalLogger = logger
	}
	return globalLogger
}

// SetLevel updates the global logger's level.
func SetLevel(level LogLevel) { GetLogger().UpdateLevel(level) }

// Log returns the global logger for fluent calls, e.g. Log().Info().Msg("x").
func Log() *Logger { return GetLogger() }

// ConfigureForEnvironment applies an environment-appropriate preset.
func ConfigureForEnvironment(logDir, environment string) error {
	config := DefaultConfig()
	config.LogDirectory = logDir

	switch environment {
	case "development", "dev":
		config.Level = LevelDebug
	case "production", "prod":
		config.Level = LevelInfo
		config.OutputConsole = false
		config.MaxFileSize = 20
		config.MaxBackups = 10
	case "test":
		config.Level = LevelWarn
		config.OutputConsole = false
		config.OutputFile = false
	default:
		config.Level = LevelInfo
	}
	return Initialize(config)
}

// Health reports whether the log directory is writable, for diagnostics.
func Health() map[string]interface{} {
	logger := GetLogger()
	config := logger.GetConfig()

	health := map[string]interface{}{
		"level":          string(config.Level),
		"console_output": config.OutputConsole,
		"file_output":    config.OutputFile,
		"log_directory":  config.LogDirectory,
	}

	if config.OutputFile {
		if info, err := os.Stat(config.LogDirectory); err != nil {
			health["directory_status"] = "missing"
		} else if !info.IsDir() {
			health["directory_status"] = "not_directory"
		} else {
			testFile := filepath.Join(config.LogDirectory, ".write_test")
			if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
				health["write_status"] = "failed"
			} else {
				os.Remove(testFile)
				health["write_status"] = "ok"
			}
		}
	}
	return health
}
