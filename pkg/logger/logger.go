// Package logger provides the process-wide structured logger used across
// the proxy. It wraps a zap.SugaredLogger behind package-level functions so
// call sites never need to thread a logger through every constructor.
package logger

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var singleton atomic.Pointer[zap.SugaredLogger]

// Log is the package-level logger. It is safe to use before Initialize is
// called: init() installs zap's default production logger (JSON, Info
// level), or a no-op logger if that cannot be built.
var Log *zap.SugaredLogger

func init() {
	Log = newFallback()
	singleton.Store(Log)
}

func newFallback() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

// Initialize builds the real logger from the LOG_LEVEL environment
// variable and installs it as the package singleton. Call once at process
// startup, before any component logs.
func Initialize() {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if isTerminal(os.Getenv("PROXY_LOG_FORMAT")) {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		// Fall back silently; a broken logger must never prevent startup.
		return
	}

	sugared := l.Sugar()
	Log = sugared
	singleton.Store(sugared)
}

func isTerminal(format string) bool {
	return strings.EqualFold(format, "console") || strings.EqualFold(format, "text")
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

func current() *zap.SugaredLogger {
	if l := singleton.Load(); l != nil {
		return l
	}
	return Log
}

// Debug logs at debug level.
func Debug(args ...any) { current().Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(template string, args ...any) { current().Debugf(template, args...) }

// Debugw logs a message with structured key/value pairs at debug level.
func Debugw(msg string, kv ...any) { current().Debugw(msg, kv...) }

// Info logs at info level.
func Info(args ...any) { current().Info(args...) }

// Infof logs a formatted message at info level.
func Infof(template string, args ...any) { current().Infof(template, args...) }

// Infow logs a message with structured key/value pairs at info level.
func Infow(msg string, kv ...any) { current().Infow(msg, kv...) }

// Warn logs at warn level.
func Warn(args ...any) { current().Warn(args...) }

// Warnf logs a formatted message at warn level.
func Warnf(template string, args ...any) { current().Warnf(template, args...) }

// Warnw logs a message with structured key/value pairs at warn level.
func Warnw(msg string, kv ...any) { current().Warnw(msg, kv...) }

// Error logs at error level.
func Error(args ...any) { current().Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(template string, args ...any) { current().Errorf(template, args...) }

// Errorw logs a message with structured key/value pairs at error level.
func Errorw(msg string, kv ...any) { current().Errorw(msg, kv...) }
