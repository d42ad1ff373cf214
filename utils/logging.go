package utils

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// The development logger is in place until InitLogger runs, so errors
// during configuration loading still reach stderr.
var (
	loggerMu sync.RWMutex
	logger   = defaultLogger()
)

func defaultLogger() *zap.SugaredLogger {
	l, err := buildLogger("dev")
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// buildLogger returns a JSON logger at info level for "prod" and a
// human-readable debug logger for anything else.
func buildLogger(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build(zap.AddCallerSkip(2))
}

// InitLogger replaces the process logger for the given mode.
func InitLogger(mode string) error {
	built, err := buildLogger(mode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	loggerMu.Lock()
	logger = built.Sugar()
	loggerMu.Unlock()
	return nil
}

func SyncLogger() {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	_ = logger.Sync()
}

func current() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func logf(level, component, msg string, args ...interface{}) {
	l := current().With("component", component)
	text := fmt.Sprintf(msg, args...)
	switch level {
	case "debug":
		l.Debug(text)
	case "error":
		l.Error(text)
	case "warn":
		l.Warn(text)
	default:
		l.Info(text)
	}
}

func LogInfo(msg string, args ...interface{}) {
	logf("info", "app", msg, args...)
}

func LogError(msg string, args ...interface{}) {
	logf("error", "app", msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	logf("warn", "app", msg, args...)
}

func LogDebug(msg string, args ...interface{}) {
	logf("debug", "app", msg, args...)
}

func LogDB(msg string, args ...interface{}) {
	logf("debug", "db", msg, args...)
}

func LogBot(msg string, args ...interface{}) {
	logf("info", "bot", msg, args...)
}

func LogJob(msg string, args ...interface{}) {
	logf("info", "jobs", msg, args...)
}

func LogHTTP(msg string, args ...interface{}) {
	logf("info", "http", msg, args...)
}

func LogImport(msg string, args ...interface{}) {
	logf("info", "import", msg, args...)
}

func LogStartup(msg string, args ...interface{}) {
	logf("info", "startup", msg, args...)
}

func LogShutdown(msg string, args ...interface{}) {
	logf("info", "shutdown", msg, args...)
}
