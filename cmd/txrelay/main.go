// Copyright 2018 The klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Command txrelay is the scheduled-transaction relay's process
// entrypoint: flag parsing and the TOML decode, both handed off
// immediately to the component constructors. The app itself is
// built with gopkg.in/urfave/cli.v1, following the teacher's own
// cmd/utils.NewApp shape.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/klaytn/tx-relay/blockwatcher"
	"github.com/klaytn/tx-relay/chainclient"
	"github.com/klaytn/tx-relay/chaincache"
	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/config"
	"github.com/klaytn/tx-relay/dispatcher"
	"github.com/klaytn/tx-relay/log"
	"github.com/klaytn/tx-relay/rpcserver"
	"github.com/klaytn/tx-relay/store"
	"github.com/klaytn/tx-relay/verifier"
)

const gitCommit = ""

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
	Value: "txrelay.toml",
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Usage = "scheduled-transaction relay"
	app.Version = "0.1.0"
	if len(gitCommit) >= 8 {
		app.Version += "-" + gitCommit[:8]
	}
	app.Flags = []cli.Flag{configFileFlag}
	app.Action = run
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Error("fatal startup error", "err", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chainAddr, err := chainclient.Dial(runCtx, chainclient.HTTP, cfg.Nodes.Blockchain)
	if err != nil {
		return fmt.Errorf("txrelay: dial blockchain node: %w", err)
	}
	defer chainAddr.Close()

	var certifier *common.Address
	if cfg.Verification.Certifier != "" {
		var a common.Address
		if err := a.UnmarshalText([]byte(cfg.Verification.Certifier)); err != nil {
			return fmt.Errorf("txrelay: invalid verification.certifier: %w", err)
		}
		certifier = &a
	}

	cache := chaincache.New(chainAddr, certifier, 0)
	watcher := blockwatcher.New(chainAddr, cache)
	go watcher.Run(runCtx)

	blockDir := filepath.Join(cfg.RPC.DBPath, "block")
	timeDir := filepath.Join(cfg.RPC.DBPath, "time")
	blockStore, err := store.Open(blockDir, cfg.Verification.MaxTxsPerSender)
	if err != nil {
		return fmt.Errorf("txrelay: open block store: %w", err)
	}
	timeStore, err := store.Open(timeDir, cfg.Verification.MaxTxsPerSender)
	if err != nil {
		return fmt.Errorf("txrelay: open time store: %w", err)
	}

	opts := verifier.Options{
		ChainID:            cfg.Verification.ChainID,
		MaxGas:             cfg.Verification.MaxGas,
		MinGasPrice:        new(big.Int).SetUint64(cfg.Verification.MinGasPrice),
		MinScheduleBlock:   cfg.Verification.MinScheduleBlock,
		MaxScheduleBlock:   cfg.Verification.MaxScheduleBlock,
		MinScheduleSeconds: cfg.Verification.MinScheduleSeconds,
		MaxScheduleSeconds: cfg.Verification.MaxScheduleSeconds,
		StrictNonce:        cfg.Verification.StrictNonce,
		MaxTxsPerSender:    cfg.Verification.MaxTxsPerSender,
	}

	blockRoute := rpcserver.Route{Verifier: verifier.New(verifier.Block, cache, blockStore, opts), Store: blockStore}
	timeRoute := rpcserver.Route{Verifier: verifier.New(verifier.Timestamp, cache, timeStore, opts), Store: timeStore}
	handler := rpcserver.New(blockRoute, timeRoute, cfg.RPC.ProcessingThreads)

	var sinks []chainclient.ChainClient
	for _, addr := range cfg.Nodes.Transactions {
		sink, err := chainclient.Dial(runCtx, chainclient.HTTP, addr)
		if err != nil {
			return fmt.Errorf("txrelay: dial upstream sink %s: %w", addr, err)
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}

	disp := dispatcher.New(blockStore, timeStore, cfg.RPC.SubmitEarlier, sinks)
	go disp.Run(runCtx, watcher.Blocks())

	listenAddr := fmt.Sprintf("%s:%d", cfg.RPC.Interface, cfg.RPC.Port)
	server := &http.Server{Addr: listenAddr, Handler: handler.Router()}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("rpc server listening", "addr", listenAddr)
		serverErr <- server.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("txrelay: rpc server: %w", err)
		}
	case s := <-sig:
		log.Info("shutting down", "signal", s)
		server.Close()
	}

	return blockStore.Close()
}
