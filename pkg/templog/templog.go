// Package templog writes the append-only temperature history file.
// One line per recorded reading:
//
//	2026-01-15 14:02:07 - Temperature: 52.3°C - Status: normal
package templog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Status of a recorded reading.
type Status string

const (
	StatusNormal Status = "normal"
	StatusAlert  Status = "ALERT"
)

// Timestamp layout used in log lines.
const timeLayout = "2006-01-02 15:04:05"

// Logger appends readings to a log file.
type Logger struct {
	path   string
	mu     sync.Mutex
	f      *os.File
	mirror func(line string)
}

// New opens (or creates) the log file at path for appending.
func New(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{path: path, f: f}, nil
}

// Append records one reading with the current time.
func (l *Logger) Append(value float64, status Status) error {
	return l.AppendAt(time.Now(), value, status)
}

// AppendAt records one reading with an explicit timestamp.
func (l *Logger) AppendAt(ts time.Time, value float64, status Status) error {
	line := FormatLine(ts, value, status)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return fmt.Errorf("log file is closed")
	}
	if _, err := l.f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append log line: %w", err)
	}
	if l.mirror != nil {
		l.mirror(line)
	}
	return nil
}

// SetMirror sets a callback receiving every appended line, for
// feeding the dashboard's recent-lines view. Keep it fast; it runs
// under the logger's lock.
func (l *Logger) SetMirror(fn func(line string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = fn
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the underlying file. Further appends fail.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// FormatLine renders a single log line without the trailing newline.
// The value keeps its minimal decimal form so 52.3 logs as "52.3"
// and 52 logs as "52".
func FormatLine(ts time.Time, value float64, status Status) string {
	v := strconv.FormatFloat(value, 'f', -1, 64)
	return fmt.Sprintf("%s - Temperature: %s°C - Status: %s", ts.Format(timeLayout), v, status)
}
