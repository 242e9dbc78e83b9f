// Package tor supervises a tor daemon subprocess and exposes the pieces of
// its control protocol, SOCKS proxy, and hidden-service surface this SDK
// needs: bootstrap/ownership lifecycle (C3), the control session and onion
// key management (C4), SOCKS tunnels (C5), and hidden-service HTTP intake
// (C6). It is grounded on the original Rust SDK's tor::lib and
// tor::hidden_service modules, reshaped into the supervised-goroutine idiom
// the teacher codebase uses for long-lived backends (see spvsync.go).
package tor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/decred/dcrd/connmgr"
	"github.com/go-errors/errors"
	"github.com/juju/retry"
	"github.com/sifir-io/sifir-sdk/metrics"
	"github.com/sifir-io/sifir-sdk/observer"
	"github.com/sifir-io/sifir-sdk/runtime"
)

const (
	controlPortFileName = "control_port"
	cookieFileName      = "control_auth_cookie"
)

// Daemon supervises a single tor subprocess and the control connection used
// to manage it. A Daemon is not reusable after Stop; construct a new one to
// relaunch.
type Daemon struct {
	cfg  Config
	pool *runtime.Pool

	// StatusObserver, if set before Start, receives a stream of bootstrap
	// progress lines ("NOTICE BOOTSTRAP PROGRESS=10 TAG=...", ...), mirroring
	// the progress callback the mobile hosts of the original SDK polled for.
	StatusObserver observer.Slot

	mtx     sync.Mutex
	cmd     *exec.Cmd
	ctl     *controlSession
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	SocksAddr   string
	ControlAddr string
}

// NewDaemon constructs a Daemon from cfg, using pool to run its
// supervision and bootstrap-polling goroutines.
func NewDaemon(cfg Config, pool *runtime.Pool) *Daemon {
	return &Daemon{cfg: cfg, pool: pool}
}

// Start launches the tor subprocess, waits for it to write its control port
// file, authenticates via cookie, optionally takes ownership so the
// subprocess exits with this process, and then polls until bootstrap
// reaches 100%.
func (d *Daemon) Start(ctx context.Context) error {
	d.mtx.Lock()
	if d.running {
		d.mtx.Unlock()
		return ErrDaemonAlreadyRunning
	}
	d.mtx.Unlock()

	if err := os.MkdirAll(d.cfg.DataDir, 0o700); err != nil {
		return wrap(err)
	}

	controlPortFile := filepath.Join(d.cfg.DataDir, controlPortFileName)
	_ = os.Remove(controlPortFile)

	args := []string{
		"--SocksPort", fmt.Sprintf("%d", d.cfg.SocksPort),
		"--ControlPort", fmt.Sprintf("%d", d.cfg.ControlPort),
		"--DataDirectory", d.cfg.DataDir,
		"--ControlPortWriteToFile", controlPortFile,
		"--CookieAuthentication", "1",
		"--CookieAuthFile", filepath.Join(d.cfg.DataDir, cookieFileName),
	}

	cmd := exec.CommandContext(ctx, d.cfg.BinaryPath, args...)
	setPdeathsig(cmd)

	if err := cmd.Start(); err != nil {
		return errors.WrapPrefix(err, "tor: failed to spawn subprocess", 0)
	}
	log.Infof("spawned tor subprocess pid=%d datadir=%s", cmd.Process.Pid, d.cfg.DataDir)

	supervisorCtx, cancel := context.WithCancel(context.Background())

	d.mtx.Lock()
	d.cmd = cmd
	d.cancel = cancel
	d.running = true
	d.mtx.Unlock()

	d.wg.Add(1)
	go d.superviseProcess(supervisorCtx)

	controlAddr, err := d.waitForControlPortFile(ctx, controlPortFile)
	if err != nil {
		d.Stop()
		return err
	}
	d.ControlAddr = controlAddr

	ctl, err := d.dialControl(ctx, controlAddr)
	if err != nil {
		d.Stop()
		return err
	}

	cookie, err := os.ReadFile(filepath.Join(d.cfg.DataDir, cookieFileName))
	if err != nil {
		d.Stop()
		return wrap(err)
	}
	if err := ctl.authenticateCookie(cookie); err != nil {
		d.Stop()
		return err
	}

	d.mtx.Lock()
	d.ctl = ctl
	d.mtx.Unlock()

	// Ownership is taken before bootstrap waiting, not after: if the
	// bootstrap poll below times out and Stop sends SIGTERM, tor must
	// already consider this process its owning controller so it exits
	// cleanly instead of lingering as an orphaned, unowned daemon.
	if d.cfg.OwnController {
		if err := ctl.takeOwnership(); err != nil {
			d.Stop()
			return errors.WrapPrefix(err, ErrNotOwner.Error(), 0)
		}
		if err := ctl.resetOwningControllerPID(); err != nil {
			log.Warnf("failed to reset owning controller pid: %v", err)
		}
	}

	if err := d.waitForBootstrap(ctx, ctl); err != nil {
		d.Stop()
		return err
	}

	if socksAddr, err := ctl.getInfo("net/listeners/socks"); err == nil {
		d.SocksAddr = trimQuotes(socksAddr)
	}

	return nil
}

// waitForControlPortFile polls for the control port file tor writes once
// its listener is bound, matching the original SDK's 300ms initial / 1000ms
// steady-state poll cadence via juju/retry's exponential-free attempt
// strategy.
func (d *Daemon) waitForControlPortFile(ctx context.Context, path string) (string, error) {
	var addr string
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			contents, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			parsed, err := parseControlPortFile(string(contents))
			if err != nil {
				return err
			}
			addr = parsed
			return nil
		},
		Attempts:    -1,
		Delay:       300 * time.Millisecond,
		MaxDelay:    1000 * time.Millisecond,
		MaxDuration: d.cfg.ControlFileTimeout,
		BackoffFunc: fixedAfterFirst(1000 * time.Millisecond),
		NotifyFunc: func(lastError error, attempt int) {
			log.Debugf("waiting for tor control port file, attempt %d: %v", attempt, lastError)
		},
		Stop: ctx.Done(),
	})
	if err != nil {
		return "", ErrControlPortFileTimeout
	}
	return addr, nil
}

// fixedAfterFirst returns a BackoffFunc that holds delay constant after the
// first attempt, reproducing the original SDK's "300ms then steady 1000ms"
// poll cadence instead of juju/retry's default exponential backoff.
func fixedAfterFirst(delay time.Duration) func(time.Duration, int) time.Duration {
	return func(_ time.Duration, attempt int) time.Duration {
		return delay
	}
}

// waitForBootstrap polls GETINFO status/bootstrap-phase until it reports
// PROGRESS=100, forwarding every observed line to StatusObserver.
func (d *Daemon) waitForBootstrap(ctx context.Context, ctl *controlSession) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			phase, err := ctl.bootstrapPhase()
			if err != nil {
				return err
			}
			d.StatusObserver.Emit(phase)
			if pct := parseBootstrapPercent(phase); pct >= 0 {
				metrics.BootstrapProgress.Set(float64(pct))
			}
			if !bootstrapComplete(phase) {
				return errors.Errorf("bootstrap not yet complete: %s", phase)
			}
			return nil
		},
		Attempts:    -1,
		Delay:       300 * time.Millisecond,
		MaxDelay:    1000 * time.Millisecond,
		MaxDuration: d.cfg.BootstrapTimeout,
		BackoffFunc: fixedAfterFirst(1000 * time.Millisecond),
		Stop:        ctx.Done(),
	})
	if err != nil {
		return ErrBootstrapTimeout
	}
	return nil
}

// dialControl connects to the control port using connmgr's managed dialer,
// the same connection-management primitive the teacher codebase uses for
// all of its outbound P2P dialing.
func (d *Daemon) dialControl(ctx context.Context, addr string) (*controlSession, error) {
	dialer := connmgr.NewGenDialer(func(_ net.Addr) (net.Conn, error) {
		d2 := net.Dialer{}
		return d2.DialContext(ctx, "tcp", addr)
	})

	conn, err := dialer(&net.TCPAddr{})
	if err != nil {
		return nil, wrap(err)
	}
	return newControlSession(conn), nil
}

// superviseProcess waits on the subprocess and logs its exit; it does not
// restart tor automatically; Start must be called again by the caller, the
// same supervision contract watchtower clients use for their tower
// connections.
func (d *Daemon) superviseProcess(ctx context.Context) {
	defer d.wg.Done()

	err := d.cmd.Wait()
	select {
	case <-ctx.Done():
		return
	default:
	}
	if err != nil {
		log.Errorf("tor subprocess exited: %v", err)
	} else {
		log.Infof("tor subprocess exited cleanly")
	}

	d.mtx.Lock()
	d.running = false
	d.mtx.Unlock()
}

// Stop terminates the subprocess (if still running) and closes the control
// connection.
func (d *Daemon) Stop() {
	d.mtx.Lock()
	ctl := d.ctl
	cmd := d.cmd
	cancel := d.cancel
	d.ctl = nil
	d.running = false
	d.mtx.Unlock()

	if ctl != nil {
		_ = ctl.close()
	}
	if cancel != nil {
		cancel()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	d.wg.Wait()
}

// Status issues GETINFO status/bootstrap-phase against the live control
// session and classifies the reply into a BootstrapPhase: Done iff the
// report carries TAG=done, else Other(trimmed phase string).
func (d *Daemon) Status() (BootstrapPhase, error) {
	d.mtx.Lock()
	ctl := d.ctl
	d.mtx.Unlock()
	if ctl == nil {
		return BootstrapPhase{}, ErrDaemonNotRunning
	}

	phase, err := ctl.bootstrapPhase()
	if err != nil {
		return BootstrapPhase{}, err
	}
	return parseBootstrapStatus(phase), nil
}

// AddOnionService provisions a v3 hidden service mapping virtualPort on the
// onion address to targetPort on loopback, using key. It returns the full
// ".onion" address.
func (d *Daemon) AddOnionService(key *OnionKey, virtualPort, targetPort int) (string, error) {
	d.mtx.Lock()
	ctl := d.ctl
	d.mtx.Unlock()
	if ctl == nil {
		return "", ErrDaemonNotRunning
	}

	serviceID, err := ctl.addOnionV3(key.PrivateKey, virtualPort, targetPort)
	if err != nil {
		return "", err
	}
	return serviceID + ".onion", nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
