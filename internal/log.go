package internal

import (
	"log"
	"os"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// Logger provides leveled logging with an optional component prefix.
type Logger struct {
	level  LogLevel
	prefix string
}

// NewLogger creates a new logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	level := LogLevelInfo // default
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		switch levelStr {
		case "ERROR":
			level = LogLevelError
		case "WARN":
			level = LogLevelWarn
		case "INFO":
			level = LogLevelInfo
		case "DEBUG":
			level = LogLevelDebug
		}
	}
	return &Logger{level: level}
}

// Named returns a logger that tags every line with the component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{level: l.level, prefix: component + ": "}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	if l.level >= LogLevelError {
		log.Printf("[ERROR] "+l.prefix+format, args...)
	}
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogLevelWarn {
		log.Printf("[WARN] "+l.prefix+format, args...)
	}
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogLevelInfo {
		log.Printf("[INFO] "+l.prefix+format, args...)
	}
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		log.Printf("[DEBUG] "+l.prefix+format, args...)
	}
}
