package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogWriter carries a log level only; it writes nothing itself. Subsystem
// loggers are backed by a RotatingLogWriter, which SetupLoggers wires to
// the package-level logger variables.
type LogWriter struct {
	Level slog.Level
}

// RotatingLogWriter wraps a set of loggers fed by a rotating file plus
// stdout. It must be initialized with InitLogRotator before any subsystem
// logger obtained from it is used, otherwise log lines are silently
// dropped rather than panicking — callers that need guaranteed delivery of
// the very first log lines should call InitLogRotator during process
// bootstrap, before spawning the tor daemon or touching the wallet store.
type RotatingLogWriter struct {
	mu         sync.Mutex
	backend    *slog.Backend
	rotator    *rotator.Rotator
	subLoggers map[string]slog.Logger
}

// NewRotatingLogWriter returns a RotatingLogWriter with no rotator attached;
// log lines are discarded until InitLogRotator is called.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{
		subLoggers: make(map[string]slog.Logger),
	}
}

// InitLogRotator opens/creates the log file at logFile, rotating it once it
// exceeds maxLogFileSize megabytes, keeping at most maxLogFiles rotated
// copies.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxLogFileSize, maxLogFiles int) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("unable to create log directory %s: %w", logDir, err)
	}

	rot, err := rotator.New(logFile, int64(maxLogFileSize*1024), false, maxLogFiles)
	if err != nil {
		return fmt.Errorf("unable to create file rotator: %w", err)
	}

	r.mu.Lock()
	r.rotator = rot
	r.backend = slog.NewBackend(io.MultiWriter(os.Stdout, rotatorWriter{rot}))
	r.mu.Unlock()

	return nil
}

type rotatorWriter struct {
	rot *rotator.Rotator
}

func (w rotatorWriter) Write(b []byte) (int, error) {
	return w.rot.Write(b)
}

// GenSubLogger spawns a new logger for a given subsystem backed by this
// writer's rotating backend. It implements the func(string) slog.Logger
// signature build.NewSubLogger expects.
func (r *RotatingLogWriter) GenSubLogger(tag string) slog.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == nil {
		return slog.Disabled
	}
	return r.backend.Logger(tag)
}

// RegisterSubLogger saves the logger so its level can be adjusted later via
// SetLogLevel / SupportedSubsystems.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subLoggers[subsystem] = logger
}

// SupportedSubsystems returns a sorted list of the currently registered
// subsystem tags, mainly for `sifirctl debuglevel show`-style tooling.
func (r *RotatingLogWriter) SupportedSubsystems() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	systems := make([]string, 0, len(r.subLoggers))
	for tag := range r.subLoggers {
		systems = append(systems, tag)
	}
	sort.Strings(systems)
	return systems
}

// SetLogLevel sets the log level for the given subsystem tag. An unknown
// tag is a no-op.
func (r *RotatingLogWriter) SetLogLevel(subsystem string, level string) {
	r.mu.Lock()
	logger, ok := r.subLoggers[subsystem]
	r.mu.Unlock()
	if !ok {
		return
	}
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return
	}
	logger.SetLevel(lvl)
}

// Close flushes and closes the underlying rotator, if any.
func (r *RotatingLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rotator == nil {
		return nil
	}
	return r.rotator.Close()
}

// NewSubLogger creates a logger for subsystem. Before the root writer is
// wired up (genLogger is nil), it returns the disabled logger so package
// init-time logger vars are safe to call methods on.
func NewSubLogger(subsystem string, genLogger func(string) slog.Logger) slog.Logger {
	if genLogger == nil {
		return slog.Disabled
	}
	return genLogger(subsystem)
}
