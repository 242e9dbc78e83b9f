//go:build linux

package tor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setPdeathsig arranges for the tor subprocess to receive SIGTERM if this
// process dies without an orderly Stop(), so a crashed mobile host doesn't
// leave an orphaned tor running.
func setPdeathsig(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.Signal(unix.SIGTERM),
	}
}
