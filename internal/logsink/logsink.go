// Package logsink owns the CLI log output: JSON records to a timestamped file
// under <root>/logs plus human readable records to stderr.
package logsink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	logsDir        = "logs"
	fileNamePrefix = "packastack-"
	timestampFmt   = "20060102T150405"
)

// Sink is the single logging sink of a CLI run. The zero value is not usable; see New.
type Sink struct {
	mu      sync.Mutex
	stderr  io.Writer
	level   slog.Leveler
	now     func() time.Time
	root    string
	path    string
	file    *os.File
	handler slog.Handler
}

// New constructs a Sink writing text records at level or above to stderr.
// No file is written until EnsureConfigured is called.
func New(stderr io.Writer, level slog.Leveler) *Sink {
	if stderr == nil {
		stderr = io.Discard
	}
	if level == nil {
		level = slog.LevelInfo
	}
	s := &Sink{stderr: stderr, level: level, now: time.Now}
	s.handler = s.stderrHandler()
	return s
}

func (s *Sink) stderrHandler() slog.Handler {
	return slog.NewTextHandler(s.stderr, &slog.HandlerOptions{Level: s.level})
}

// EnsureConfigured attaches a log file under <root>/logs (the working directory when
// root is empty) and returns its path.
//
// Repeated calls with the same root keep the current file. A call with another root
// closes the previous file and replaces it, so at most one file is written at a time.
func (s *Sink) EnsureConfigured(root string) (string, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("unable to resolve the working directory: %w", err)
		}
		root = wd
	}
	root = filepath.Clean(root)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil && s.root == root {
		return s.path, nil
	}

	dir := filepath.Join(root, logsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("unable to create log directory: %w", err)
	}
	path := filepath.Join(dir, fileNamePrefix+s.now().Format(timestampFmt)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("unable to open log file: %w", err)
	}

	if s.file != nil {
		_ = s.file.Close()
	}
	s.root, s.path, s.file = root, path, f
	s.handler = fanout{
		slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}),
		s.stderrHandler(),
	}

	return path, nil
}

// Path returns the current log file path, empty when no file is attached.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Logger returns a logger writing to the sink as currently configured.
func (s *Sink) Logger() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slog.New(s.handler)
}

// Close closes the log file, if any. Logging continues to stderr only.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.root, s.path, s.file = "", "", nil
	s.handler = s.stderrHandler()
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// fanout dispatches every record to all of its handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
