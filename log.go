package sifir

import (
	"github.com/decred/dcrd/connmgr"
	"github.com/decred/slog"
	"github.com/sifir-io/sifir-sdk/build"
	"github.com/sifir-io/sifir-sdk/metrics"
	"github.com/sifir-io/sifir-sdk/runtime"
	"github.com/sifir-io/sifir-sdk/tor"
	"github.com/sifir-io/sifir-sdk/wallet"
)

// replaceableLogger is a thin wrapper around a logger that is used so the
// logger can be replaced once the root rotating writer is ready, without
// black pointer magic.
type replaceableLogger struct {
	slog.Logger
	subsystem string
}

var (
	// sdkPkgLoggers tracks the loggers declared directly in this package so
	// SetupLoggers can replace their backing slog.Logger once the root
	// writer is initialized.
	sdkPkgLoggers []*replaceableLogger

	addSdkPkgLogger = func(subsystem string) *replaceableLogger {
		l := &replaceableLogger{
			Logger:    build.NewSubLogger(subsystem, nil),
			subsystem: subsystem,
		}
		sdkPkgLoggers = append(sdkPkgLoggers, l)
		return l
	}

	sdkLog = addSdkPkgLogger("SIFR")
)

// SetupLoggers initializes all package-global logger variables against the
// given root writer. Call once during process bootstrap, after
// root.InitLogRotator has succeeded.
func SetupLoggers(root *build.RotatingLogWriter) {
	for _, l := range sdkPkgLoggers {
		l.Logger = build.NewSubLogger(l.subsystem, root.GenSubLogger)
		SetSubLogger(root, l.subsystem, l.Logger)
	}

	AddSubLogger(root, "TORD", tor.UseLogger)
	AddSubLogger(root, "WLLT", wallet.UseLogger)
	AddSubLogger(root, "PROM", metrics.UseLogger)
	AddSubLogger(root, "RTIM", runtime.UseLogger)
	AddSubLogger(root, "CMGR", connmgr.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string,
	useLoggers ...func(slog.Logger)) {

	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// sub system.
func SetSubLogger(root *build.RotatingLogWriter, subsystem string,
	logger slog.Logger, useLoggers ...func(slog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure is used to provide a closure over expensive logging operations
// so they aren't performed when the logging level doesn't warrant it.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
