package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jedib0t/go-pretty/table"
	"github.com/urfave/cli"

	"github.com/sifir-io/sifir-sdk/wallet"
)

var walletFlags = []cli.Flag{
	cli.StringFlag{Name: "mnemonic", Usage: "BIP39 mnemonic (required)"},
	cli.StringFlag{Name: "esplora", Usage: "Esplora-style indexer base URL", Value: "https://blockstream.info/api"},
	cli.UintFlag{Name: "account", Usage: "BIP44 account index", Value: 0},
}

func openWallet(c *cli.Context) (*wallet.Wallet, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	mnemonic := c.String("mnemonic")
	if mnemonic == "" {
		return nil, fmt.Errorf("--mnemonic is required")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}

	return wallet.Open(wallet.Config{
		Name:      "default",
		Net:       &chaincfg.MainNetParams,
		Mnemonic:  mnemonic,
		Account:   uint32(c.Uint("account")),
		StorePath: filepath.Join(cfg.DataDir, "wallet.db"),
		Indexer:   wallet.NewEsploraClient(c.String("esplora")),
	})
}

var walletAddressCommand = cli.Command{
	Name:   "wallet-address",
	Usage:  "derive and print the next receive address",
	Flags:  walletFlags,
	Action: actionDecorator(walletAddress),
}

func walletAddress(c *cli.Context) error {
	w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()

	addr, err := w.NewAddress()
	if err != nil {
		return err
	}
	fmt.Println(addr.Address.String())
	return nil
}

var walletSyncCommand = cli.Command{
	Name:   "wallet-sync",
	Usage:  "scan the indexer for activity on this wallet's addresses",
	Flags:  walletFlags,
	Action: actionDecorator(walletSync),
}

func walletSync(c *cli.Context) error {
	w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Sync(context.Background()); err != nil {
		return err
	}

	balance, err := w.Balance()
	if err != nil {
		return err
	}
	fmt.Printf("synced, balance=%d sats\n", balance)
	return nil
}

var walletBalanceCommand = cli.Command{
	Name:   "wallet-balance",
	Usage:  "print the wallet's currently tracked balance",
	Flags:  walletFlags,
	Action: actionDecorator(walletBalance),
}

func walletBalance(c *cli.Context) error {
	w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()

	balance, err := w.Balance()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Balance (sats)"})
	t.AppendRow(table.Row{balance})
	t.Render()
	return nil
}

var walletSendCommand = cli.Command{
	Name:      "wallet-send",
	Usage:     "build, sign, and broadcast a payment",
	ArgsUsage: "<pkscript-hex> <amount-sats>",
	Flags:     walletFlags,
	Action:    actionDecorator(walletSend),
}

func walletSend(c *cli.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return cli.ShowCommandHelp(c, "wallet-send")
	}

	pkScript, err := hex.DecodeString(args.Get(0))
	if err != nil {
		return fmt.Errorf("invalid pkscript hex: %w", err)
	}

	var amount int64
	if _, err := fmt.Sscanf(args.Get(1), "%d", &amount); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()

	txid, err := w.SendToAddress(context.Background(), pkScript, amount)
	if err != nil {
		return err
	}
	fmt.Println("broadcast txid:", txid)
	return nil
}
