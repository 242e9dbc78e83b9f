package runtime

import (
	"github.com/decred/slog"
	"github.com/sifir-io/sifir-sdk/build"
)

var log slog.Logger

func init() {
	UseLogger(build.NewSubLogger("RTIM", nil))
}

// DisableLog disables all library log output.
func DisableLog() {
	UseLogger(slog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}
