//nolint:gochecknoglobals
package logx

import (
	"context"
	"log"
	"sync"
)

type ServiceContext struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// Logger - logger interface.
type Logger interface {
	// LogInfo logs a message at Info level.
	LogInfo(ctx context.Context, msg string)
	// LogDebug logs a message at Debug level.
	LogDebug(ctx context.Context, msg string)
	// LogWarning logs a message at Warning level.
	LogWarning(ctx context.Context, msg string, errs ...error)
	// LogError logs a message at Error level.
	LogError(ctx context.Context, msg string, errs ...error)
	// LogPanic logs a message at Panic level then panics.
	LogPanic(ctx context.Context, msg string, errs ...error)
	// LogFatal logs a message at Fatal Level.
	// The logger then calls os.Exit(1), even if logging at FatalLevel is
	// disabled.
	LogFatal(ctx context.Context, msg string, errs ...error)

	GetLogger() interface{}
}

var (
	loggerMu sync.RWMutex
	logger   Logger
)

type executionIDKey struct{}

// WithExecutionID returns a context whose log lines carry the given execution id.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey{}, id)
}

// ExecutionID returns the execution id stored in ctx, if any.
func ExecutionID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	id, ok := ctx.Value(executionIDKey{}).(string)

	return id, ok && id != ""
}

// GetLogger - returns an instance of the Logger.
// If called before SetupLogger the DefaultLogger, backed by the standard log package, is returned.
func GetLogger() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()

	if logger == nil {
		return &DefaultLogger{}
	}

	return logger
}

// SetLogger replaces the package logger. Passing nil restores the DefaultLogger.
func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	logger = l
}

// DefaultLogger - Logger implementation used until a real logger is set up.
type DefaultLogger struct{}

func prefix(ctx context.Context, level string) string {
	if id, ok := ExecutionID(ctx); ok {
		return level + " [" + id + "] "
	}

	return level + " "
}

// LogInfo prints through the standard logger.
func (nl *DefaultLogger) LogInfo(ctx context.Context, msg string) {
	log.Println(prefix(ctx, "INFO") + msg)
}

// LogDebug prints through the standard logger.
func (nl *DefaultLogger) LogDebug(ctx context.Context, msg string) {
	log.Println(prefix(ctx, "DEBUG") + msg)
}

// LogWarning prints through the standard logger.
func (nl *DefaultLogger) LogWarning(ctx context.Context, msg string, errs ...error) {
	log.Println(prefix(ctx, "WARN")+msg, errs)
}

// LogError prints through the standard logger.
func (nl *DefaultLogger) LogError(ctx context.Context, msg string, errs ...error) {
	log.Println(prefix(ctx, "ERROR")+msg, errs)
}

// LogPanic prints through the standard logger, then panics.
func (nl *DefaultLogger) LogPanic(ctx context.Context, msg string, errs ...error) {
	log.Panicln(prefix(ctx, "PANIC")+msg, errs)
}

// LogFatal prints through the standard logger, then exits.
func (nl *DefaultLogger) LogFatal(ctx context.Context, msg string, errs ...error) {
	log.Fatalln(prefix(ctx, "FATAL")+msg, errs)
}

// GetLogger noop.
func (nl *DefaultLogger) GetLogger() interface{} { return nil }
