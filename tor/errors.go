package tor

import "github.com/go-errors/errors"

// Sentinel errors returned by the tor package. Callers should compare with
// errors.Is; wrapping is done with go-errors so the originating stack trace
// survives across goroutine boundaries (spawn, poll loop, control session).
var (
	// ErrDaemonAlreadyRunning is returned by Daemon.Start when called on a
	// daemon that is already supervising a live subprocess.
	ErrDaemonAlreadyRunning = errors.Errorf("tor: daemon already running")

	// ErrDaemonNotRunning is returned by operations that require a live
	// control session (Daemon.Status, Daemon.AddOnionService) when none is
	// open.
	ErrDaemonNotRunning = errors.Errorf("tor: daemon not running")

	// ErrBootstrapTimeout is returned when the daemon fails to reach
	// bootstrap phase 100 within the configured deadline.
	ErrBootstrapTimeout = errors.Errorf("tor: bootstrap did not complete before deadline")

	// ErrControlPortFileTimeout is returned when the control-port file never
	// appears on disk within the configured deadline.
	ErrControlPortFileTimeout = errors.Errorf("tor: control port file did not appear before deadline")

	// ErrAuthFailed is returned when cookie authentication against the
	// control port is rejected.
	ErrAuthFailed = errors.Errorf("tor: control port authentication failed")

	// ErrOnionAddFailed is returned when ADD_ONION is rejected by the
	// control port.
	ErrOnionAddFailed = errors.Errorf("tor: ADD_ONION request failed")

	// ErrNotOwner prefixes the error Daemon.Start returns when the control
	// port rejects TAKEOWNERSHIP.
	ErrNotOwner = errors.Errorf("tor: TAKEOWNERSHIP request failed")

	// ErrClosed is returned by Tunnel.Send when called after Close.
	ErrClosed = errors.Errorf("tor: use of closed resource")
)

// wrap annotates err with a stack trace if it doesn't already carry one.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, 1)
}
