package docfill

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger   *zap.Logger
	globalLoggerMu sync.RWMutex
)

// NewLogger builds a production JSON logger at the given level
// (debug, info, warn, error or off).
func NewLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "off") {
		return zap.NewNop(), nil
	}
	lvl, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.Sampling = nil
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func parseLogLevel(levelStr string) (zapcore.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", levelStr)
	}
}

// SetLogger replaces the package logger used by components that were not
// given one explicitly.
func SetLogger(logger *zap.Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = logger
}

// GetLogger returns the package logger. It is a no-op logger until
// SetLogger is called.
func GetLogger() *zap.Logger {
	globalLoggerMu.RLock()
	logger := globalLogger
	globalLoggerMu.RUnlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
