// Package runlog is the human-readable keep-alive log: one
// "[YYYY-MM-DD HH:MM:SS] message" line per event, mirrored to the console
// and appended to a flat text file.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/clock"
	"github.com/hamed0406/keepalive/internal/domain"
)

type Log struct {
	path    string
	console io.Writer
	clock   clock.Interface
	logger  *zap.Logger

	mu     sync.Mutex
	warned bool
}

// New returns a Log writing to path. A nil console discards console output,
// a nil clock uses the system clock and a nil logger is a no-op.
func New(path string, console io.Writer, clk clock.Interface, logger *zap.Logger) *Log {
	if console == nil {
		console = io.Discard
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{path: path, console: console, clock: clk, logger: logger}
}

func (l *Log) Path() string { return l.path }

// Write records one message. The console always gets the line; if the file
// cannot be written the error is reported once through the diagnostic logger
// and otherwise ignored.
func (l *Log) Write(msg string) {
	line := domain.LogEntry{Time: l.clock.Now(), Message: msg}.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.console, line)
	if err := l.appendLine(line); err != nil && !l.warned {
		l.warned = true
		l.logger.Warn("runlog_write_failed", zap.String("path", l.path), zap.Error(err))
	}
}

func (l *Log) Printf(format string, args ...any) {
	l.Write(fmt.Sprintf(format, args...))
}

func (l *Log) appendLine(line string) error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, line+"\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
