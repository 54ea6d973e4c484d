// Package logging provides structured debug logging for concierge components.
// All components of a single process append to one log file in
// ~/.concierge/logs/, named by a per-process run ID.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes leveled log entries for a single component.
//
// All log methods (Debugf, Infof, Warnf, Errorf) write unconditionally;
// there is no level filtering.
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	logPath   string
	mu        sync.Mutex
	closeOnce sync.Once
}

var (
	stateMu sync.Mutex

	// runID identifies the current process execution across all components.
	runID string

	logDir      string
	initialized bool
	initErr     error
)

func getRunID() string {
	stateMu.Lock()
	defer stateMu.Unlock()
	if runID == "" {
		runID = uuid.New().String()
	}
	return runID
}

func initLogDirectory() error {
	stateMu.Lock()
	defer stateMu.Unlock()
	if initialized {
		return initErr
	}
	initialized = true

	homeDir, err := os.UserHomeDir()
	if err != nil {
		initErr = fmt.Errorf("failed to get home directory: %w", err)
		return initErr
	}

	logDir = filepath.Join(homeDir, ".concierge", "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		initErr = fmt.Errorf("failed to create log directory: %w", err)
		return initErr
	}
	return nil
}

// NewLogger creates a logger for a specific component. The logger writes to
// ~/.concierge/logs/<run-id>-concierge.log.
//
// If the log directory or file cannot be created, it returns a fallback
// logger writing to stderr along with the error, so callers can detect
// fallback mode.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-concierge.log", id))

	// Append mode: multiple components share one file.
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(component, fmt.Errorf("failed to open log file: %w", err)), err
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		logger:    log.New(file, "", 0), // timestamps are formatted by formatEntry
		logPath:   logPath,
	}, nil
}

func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
	logger.Printf("WARNING: failed to initialize file logging: %v", err)

	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    logger,
	}
}

func (l *Logger) formatEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) write(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(l.formatEntry(level, fmt.Sprintf(format, v...)))
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) { l.write("DEBUG", format, v...) }

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...interface{}) { l.write("INFO", format, v...) }

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.write("WARN", format, v...) }

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) { l.write("ERROR", format, v...) }

// Writer returns an io.Writer backed by the log file, or stderr in
// fallback mode.
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// RunID returns the process run ID shared by all components.
func (l *Logger) RunID() string { return l.runID }

// LogPath returns the path to the log file, or empty in fallback mode.
func (l *Logger) LogPath() string { return l.logPath }

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
