// Package sifir is the SDK's root: process-wide bootstrap (logging,
// config) and thin convenience wiring between the tor and wallet
// subsystems. Most callers use tor.Daemon and wallet.Wallet directly; this
// package exists for the handful of mobile-embedding hosts that want a
// single entry point instead of wiring three packages together themselves.
package sifir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/sifir-io/sifir-sdk/build"
	"github.com/sifir-io/sifir-sdk/metrics"
	"github.com/sifir-io/sifir-sdk/tor"
)

// DefaultAppDataDir is the subdirectory of the user's home directory the
// SDK uses when no explicit DataDir is configured.
const DefaultAppDataDir = ".sifir"

// Config is the SDK-wide configuration, composed of each subsystem's own
// Config group the way the teacher codebase composes its per-subsystem
// config groups under a single top-level struct parsed by go-flags.
type Config struct {
	DataDir string `long:"datadir" description:"base directory for logs, tor state, and wallet stores"`
	LogDir  string `long:"logdir" description:"directory for rotated log files; defaults to DataDir/logs"`
	Debug   string `long:"debuglevel" description:"logging level: trace, debug, info, warn, error, critical" default:"info"`

	Tor     tor.Config     `group:"Tor" namespace:"tor"`
	Metrics metrics.Config `group:"Metrics" namespace:"metrics"`
}

// DefaultConfig returns a Config with the teacher-style defaults: a
// per-user data directory, info-level logging, and tor's own defaults.
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dataDir := filepath.Join(home, DefaultAppDataDir)

	cfg := &Config{
		DataDir: dataDir,
		LogDir:  filepath.Join(dataDir, "logs"),
		Debug:   "info",
		Tor:     tor.DefaultConfig(),
	}
	cfg.Tor.DataDir = filepath.Join(dataDir, "tor")
	return cfg, nil
}

// LoadConfig parses command-line args (or os.Args[1:] if nil) over
// DefaultConfig's values, the same flags.Default|flags.PassDoubleDash
// option set the teacher's lnd config loader uses.
func LoadConfig(args []string) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	defaultDataDir, defaultLogDir := cfg.DataDir, cfg.LogDir

	parser := flags.NewParser(cfg, flags.Default|flags.PassDoubleDash)
	if args == nil {
		args = os.Args[1:]
	}
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.LogDir == defaultLogDir && cfg.DataDir != defaultDataDir {
		cfg.LogDir = filepath.Join(cfg.DataDir, "logs")
	}
	return cfg, nil
}

// Bootstrap creates DataDir/LogDir, initializes the rotating log writer,
// and wires up every subsystem logger. Call once per process before
// constructing any tor.Daemon or wallet.Wallet.
func Bootstrap(cfg *Config) (*build.RotatingLogWriter, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}

	root := build.NewRotatingLogWriter()
	logFile := filepath.Join(cfg.LogDir, "sifir.log")
	if err := root.InitLogRotator(logFile, 10, 3); err != nil {
		return nil, fmt.Errorf("sifir: failed to init log rotator: %w", err)
	}

	SetupLoggers(root)
	for _, subsystem := range root.SupportedSubsystems() {
		root.SetLogLevel(subsystem, cfg.Debug)
	}

	return root, nil
}
