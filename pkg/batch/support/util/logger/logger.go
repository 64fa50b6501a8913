// Package logger provides a leveled logging facility for the batch framework.
// The level is set once at startup from configuration; messages below the
// configured level are discarded.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	currentLevel = LevelInfo
	mu           sync.RWMutex
	std          = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

// SetLogLevel sets the global log level from its string form
// ("DEBUG", "INFO", "WARN", "ERROR", "FATAL"). Unknown values fall back to INFO.
func SetLogLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN", "WARNING":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	case "FATAL":
		currentLevel = LevelFatal
	default:
		currentLevel = LevelInfo
	}
}

func enabled(level LogLevel) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= currentLevel
}

func logf(level LogLevel, tag, format string, args ...interface{}) {
	if !enabled(level) {
		return
	}
	std.Output(3, fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

// Debugf logs a message at DEBUG level.
func Debugf(format string, args ...interface{}) {
	logf(LevelDebug, "DEBUG", format, args...)
}

// Infof logs a message at INFO level.
func Infof(format string, args ...interface{}) {
	logf(LevelInfo, "INFO", format, args...)
}

// Warnf logs a message at WARN level.
func Warnf(format string, args ...interface{}) {
	logf(LevelWarn, "WARN", format, args...)
}

// Errorf logs a message at ERROR level.
func Errorf(format string, args ...interface{}) {
	logf(LevelError, "ERROR", format, args...)
}

// Fatalf logs a message at FATAL level and terminates the process.
func Fatalf(format string, args ...interface{}) {
	logf(LevelFatal, "FATAL", format, args...)
	os.Exit(1)
}
