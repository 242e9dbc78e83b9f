package tor

import (
	"github.com/decred/slog"
	"github.com/sifir-io/sifir-sdk/build"
)

// log is a logger that is initialized with no output filters. This means
// the package will not perform any logging by default until the caller
// requests it.
var log slog.Logger

func init() {
	UseLogger(build.NewSubLogger("TORD", nil))
}

// DisableLog disables all library log output.
func DisableLog() {
	UseLogger(slog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}
