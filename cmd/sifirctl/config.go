package main

import (
	"github.com/urfave/cli"

	sifir "github.com/sifir-io/sifir-sdk"
)

// loadConfig builds an SDK Config from defaults, overridden by the
// top-level --datadir flag if given.
func loadConfig(c *cli.Context) (*sifir.Config, error) {
	cfg, err := sifir.DefaultConfig()
	if err != nil {
		return nil, err
	}
	if dir := c.GlobalString("datadir"); dir != "" {
		cfg.DataDir = dir
		cfg.Tor.DataDir = dir + "/tor"
		cfg.LogDir = dir + "/logs"
	}
	return cfg, nil
}
