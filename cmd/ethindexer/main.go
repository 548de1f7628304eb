// Copyright 2024 The eth-indexer Authors
// This file is part of the eth-indexer library.
//
// The eth-indexer library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The eth-indexer library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the eth-indexer library. If not, see <http://www.gnu.org/licenses/>.

// ethindexer walks an Ethereum chain over JSON-RPC and persists blocks,
// transactions, receipts, addresses, contracts, tokens, logs and ERC-20
// transfers into Postgres.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/jeongkyun-oh/eth-indexer/config"
	"github.com/jeongkyun-oh/eth-indexer/indexer"
	"github.com/jeongkyun-oh/eth-indexer/logutil"
)

const pidFile = "app.pid"

func main() {
	app := cli.NewApp()
	app.Name = "ethindexer"
	app.Usage = "index an Ethereum chain into Postgres"
	app.Version = config.ClientVersion
	app.Commands = []cli.Command{
		{
			Name:      "index_all",
			Usage:     "index blocks from START_BLOCK to END_BLOCK (or the chain tip)",
			ArgsUsage: " ",
			Action:    runIndexAll,
		},
		{
			Name:      "index_live",
			Usage:     "subscribe to new blocks and index each as it arrives",
			ArgsUsage: " ",
			Action:    runIndexLive,
		},
		{
			Name:      "index_last",
			Usage:     "index the trailing N blocks",
			ArgsUsage: "<blocks>",
			Action:    runIndexLast,
		},
		{
			Name:      "index_last_hours",
			Usage:     "index roughly the trailing H hours of blocks",
			ArgsUsage: "<hours>",
			Action:    runIndexLastHours,
		},
		{
			Name:      "index_last_days",
			Usage:     "index roughly the trailing D days of blocks",
			ArgsUsage: "<days>",
			Action:    runIndexLastDays,
		},
	}
	// No command prints usage instead of guessing an indexing mode.
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	app.CommandNotFound = func(c *cli.Context, command string) {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		cli.ShowAppHelp(c)
		os.Exit(1)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, initializes logging and writes the pid
// file. The returned context is cancelled on SIGINT or SIGTERM.
func setup() (context.Context, context.CancelFunc, *indexer.Indexer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logutil.Init(cfg.LogLevel)
	cfg.Print()

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	idx, err := indexer.New(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, idx, nil
}

func runIndexAll(c *cli.Context) error {
	ctx, cancel, idx, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer idx.Close()
	return idx.Run(ctx)
}

func runIndexLive(c *cli.Context) error {
	ctx, cancel, idx, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer idx.Close()
	return idx.RunLive(ctx)
}

func runIndexLast(c *cli.Context) error {
	n, err := positiveArg(c, "blocks")
	if err != nil {
		return err
	}
	ctx, cancel, idx, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer idx.Close()
	return idx.RunLastBlocks(ctx, n)
}

func runIndexLastHours(c *cli.Context) error {
	h, err := positiveArg(c, "hours")
	if err != nil {
		return err
	}
	ctx, cancel, idx, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer idx.Close()
	return idx.RunLastBlocks(ctx, h*config.BlocksPerHour)
}

func runIndexLastDays(c *cli.Context) error {
	d, err := positiveArg(c, "days")
	if err != nil {
		return err
	}
	ctx, cancel, idx, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer idx.Close()
	return idx.RunLastBlocks(ctx, d*24*config.BlocksPerHour)
}

func positiveArg(c *cli.Context, name string) (uint64, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one argument: <%s>", name)
	}
	v, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("<%s> must be a positive integer, got %q", name, c.Args().First())
	}
	return v, nil
}
