//go:build !linux

package tor

import "os/exec"

// setPdeathsig is a no-op on platforms without PR_SET_PDEATHSIG (darwin,
// including iOS hosts); process supervision there relies on Stop() being
// called from the host's lifecycle hooks instead.
func setPdeathsig(cmd *exec.Cmd) {}
