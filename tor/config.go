package tor

import "time"

// Config describes how to launch and supervise a tor daemon subprocess. It
// mirrors the fields of the original Rust SDK's TorServiceParam, shaped as
// a go-flags group so it can be embedded directly into the SDK-wide config
// struct and populated from a config file or flags.
type Config struct {
	BinaryPath string `long:"binarypath" description:"path to the tor executable"`
	DataDir    string `long:"datadir" description:"directory tor will use for its own state (keys, cached consensus, cookie file)"`

	SocksPort   int `long:"socksport" description:"port tor should bind for SOCKS5 connections; 0 lets tor choose"`
	ControlPort int `long:"controlport" description:"port tor should bind for the control protocol; 0 lets tor choose"`

	// BootstrapTimeout bounds how long Daemon.Start waits for bootstrap
	// phase 100 before returning ErrBootstrapTimeout.
	BootstrapTimeout time.Duration `long:"bootstraptimeout" description:"maximum time to wait for tor to finish bootstrapping"`

	// ControlFileTimeout bounds how long Daemon.Start waits for tor to
	// write out its control-port file after the subprocess starts.
	ControlFileTimeout time.Duration `long:"controlfiletimeout" description:"maximum time to wait for tor's control port file to appear"`

	// OwnController, when true, causes Daemon.Start to send TAKEOWNERSHIP
	// once authenticated, so the spawned tor process exits when this
	// process's control connection closes rather than lingering.
	OwnController bool `long:"owncontroller" description:"take ownership of the spawned tor process so it exits with us"`
}

// DefaultConfig returns a Config with a 90s bootstrap timeout and a 10s
// control-port-file timeout. The poll cadence inside those timeouts (300ms
// initial, 1000ms steady-state) is fixed in daemon.go, not configured here.
func DefaultConfig() Config {
	return Config{
		BinaryPath:         "tor",
		SocksPort:          0,
		ControlPort:        0,
		BootstrapTimeout:   90 * time.Second,
		ControlFileTimeout: 10 * time.Second,
		OwnController:      true,
	}
}
