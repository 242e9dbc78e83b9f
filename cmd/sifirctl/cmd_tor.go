package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	sifir "github.com/sifir-io/sifir-sdk"
	"github.com/sifir-io/sifir-sdk/observer"
	"github.com/sifir-io/sifir-sdk/runtime"
	"github.com/sifir-io/sifir-sdk/tor"
)

var torStartCommand = cli.Command{
	Name:   "tor-start",
	Usage:  "launch a tor daemon and block until bootstrap completes",
	Action: actionDecorator(torStart),
}

func torStart(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if _, err := sifir.Bootstrap(cfg); err != nil {
		return err
	}

	pool := runtime.New()
	daemon := tor.NewDaemon(cfg.Tor, pool)
	daemon.StatusObserver.Set(observer.FuncObserver{
		Data: func(line string) { fmt.Println(line) },
	})

	if err := daemon.Start(context.Background()); err != nil {
		return err
	}

	fmt.Printf("tor bootstrapped, socks=%s control=%s\n", daemon.SocksAddr, daemon.ControlAddr)
	return nil
}

var torStatusCommand = cli.Command{
	Name:   "tor-status",
	Usage:  "launch a tor daemon and print its bootstrap status query result",
	Action: actionDecorator(torStatus),
}

func torStatus(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if _, err := sifir.Bootstrap(cfg); err != nil {
		return err
	}

	pool := runtime.New()
	daemon := tor.NewDaemon(cfg.Tor, pool)
	if err := daemon.Start(context.Background()); err != nil {
		return err
	}
	defer daemon.Stop()

	status, err := daemon.Status()
	if err != nil {
		return err
	}
	if status.Done {
		fmt.Println("status: Done")
	} else {
		fmt.Printf("status: Other(%s)\n", status.Other)
	}
	return nil
}
