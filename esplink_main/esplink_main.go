// Copyright (c) 2024-2025, The esplink Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package esplink_main runs the interactive esplink console against a
// simulated radio link. A second, hidden radio answers echo requests so
// scan and ping have something to find.
package esplink_main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/espnow-go/esplink/cli"
	"github.com/espnow-go/esplink/echo"
	"github.com/espnow-go/esplink/logger"
	"github.com/espnow-go/esplink/messenger"
	"github.com/espnow-go/esplink/prng"
	"github.com/espnow-go/esplink/progctx"
	"github.com/espnow-go/esplink/simradio"
	"github.com/espnow-go/esplink/types"
	"github.com/espnow-go/esplink/wifi"
)

type MainArgs struct {
	LogLevel    string
	Seed        int64
	PeerAddr    string
	PeerChannel int
	LossRate    float64
	ConfigFile  string
}

var (
	args MainArgs
)

func parseArgs() {
	flag.StringVar(&args.LogLevel, "log", "warn", "set logging level: trace, debug, info, warn, error.")
	flag.Int64Var(&args.Seed, "seed", 0, "random seed for reproducible runs (0 = default seed)")
	flag.StringVar(&args.PeerAddr, "peer", "66:77:88:99:aa:bb", "MAC address of the simulated echo peer")
	flag.IntVar(&args.PeerChannel, "peer-channel", 0, "channel the echo peer hides on (0 = random)")
	flag.Float64Var(&args.LossRate, "loss", 0, "frame loss probability [0,1) of the simulated link")
	flag.StringVar(&args.ConfigFile, "config", "", "YAML config file for the local radio")

	flag.Parse()
}

func Main(ctx *progctx.ProgCtx, cliOptions *cli.CliOptions) {
	parseArgs()
	logger.SetLevel(logger.ParseLevel(args.LogLevel))
	prng.Init(args.Seed)

	ctx.Defer(func() {
		_ = os.Stdin.Close()
	})

	handleSignals(ctx)

	peerAddr, err := types.ParsePeerAddress(args.PeerAddr)
	logger.FatalIfError(err, "invalid -peer address")

	peerChannel := args.PeerChannel
	if peerChannel == 0 {
		span := types.MaxChannelNumber - types.MinChannelNumber + 1
		peerChannel = types.MinChannelNumber + int(prng.UnitRandom()*float64(span))%span
	}
	if !types.IsValidChannel(peerChannel) {
		logger.Fatalf("invalid -peer-channel: %d", args.PeerChannel)
	}

	localChannel := types.MinChannelNumber
	if args.ConfigFile != "" {
		cfg, err := wifi.LoadConfig(args.ConfigFile)
		logger.FatalIfError(err, "could not load config")
		localChannel = cfg.Channel
	}

	air := simradio.NewAir()
	air.LossRate = args.LossRate

	local := air.NewRadio(types.PeerAddress{0x02, 0x11, 0x22, 0x33, 0x44, 0x55})
	local.SetActive(true)
	logger.FatalIfError(local.SetChannel(localChannel), "could not set local channel")

	peer := air.NewRadio(peerAddr)
	peer.SetActive(true)
	logger.FatalIfError(peer.SetChannel(peerChannel), "could not set peer channel")
	logger.Debugf("echo peer %s listening on channel %d", peerAddr, peerChannel)

	ctx.WaitAdd("echopeer", 1)
	go func() {
		defer ctx.WaitDone("echopeer")
		err := echo.Serve(ctx, messenger.New(peer))
		if err != nil && ctx.Err() == nil {
			logger.Errorf("echo peer stopped unexpectedly: %+v", err)
		}
	}()

	rt := cli.NewCmdRunner(ctx, messenger.New(local))
	logger.SetStdoutCallback(cli.Cli)

	err = cli.Cli.Run(rt, cliOptions)
	ctx.Cancel(errors.Wrapf(err, "console exit"))

	logger.Debugf("waiting for esplink to stop gracefully ...")
	ctx.Wait()
}

func handleSignals(ctx *progctx.ProgCtx) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	signal.Ignore(syscall.SIGALRM)

	ctx.WaitAdd("handleSignals", 1)
	go func() {
		defer logger.Debugf("handleSignals exit.")
		defer ctx.WaitDone("handleSignals")

		for {
			select {
			case sig := <-c:
				logger.Infof("signal received: %v", sig)
				ctx.Cancel(nil)
			case <-ctx.Done():
				return
			}
		}
	}()
}
