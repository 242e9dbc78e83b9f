// Command sifirctl is a small demonstration CLI driving the SDK directly
// (no RPC layer, matching spec.md's Non-goal of a general RPC framework):
// it boots a tor daemon, opens a wallet, and exposes the handful of
// operations a developer needs while integrating the SDK into a mobile
// host. Styled after the teacher codebase's cmd/dcrlncli.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "sifirctl"
	app.Usage = "drive the sifir SDK's tor and wallet subsystems from the command line"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Usage: "base directory for logs, tor state, and wallet stores",
		},
	}

	app.Commands = []cli.Command{
		torStartCommand,
		torStatusCommand,
		walletAddressCommand,
		walletBalanceCommand,
		walletSendCommand,
		walletSyncCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sifirctl: %v\n", err)
		os.Exit(1)
	}
}

// actionDecorator wraps a command action so cli.Context errors are
// reported uniformly, the same thin wrapper the teacher's dcrlncli uses
// around every command action.
func actionDecorator(f func(*cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if err := f(c); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	}
}
