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

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/espnow-go/esplink/echo"
	"github.com/espnow-go/esplink/logger"
	"github.com/espnow-go/esplink/messenger"
	"github.com/espnow-go/esplink/progctx"
	"github.com/espnow-go/esplink/scanner"
	. "github.com/espnow-go/esplink/types"
)

const (
	Prompt = "> "
)

// PeerLister is implemented by radio subsystems that can enumerate their
// registered peers. The 'peers' command needs it; radios that cannot list
// peers simply make the command report nothing.
type PeerLister interface {
	Peers() []PeerAddress
}

type CommandContext struct {
	context.Context
	*Command
	rt     *CmdRunner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil { // if previous error, print it now and keep the last.
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var itemsYaml yaml.Node

	err := itemsYaml.Encode(items)
	logger.PanicIfError(err)

	for _, content := range itemsYaml.Content {
		content.Style = yaml.FlowStyle
	}

	data, err := yaml.Marshal(&itemsYaml)
	logger.PanicIfError(err)

	_, err = cc.output.Write(data)
	logger.PanicIfError(err)
}

type CmdRunner struct {
	msgr   *messenger.Messenger
	ctx    *progctx.ProgCtx
	target PeerAddress
	help   Help
}

func NewCmdRunner(ctx *progctx.ProgCtx, msgr *messenger.Messenger) *CmdRunner {
	cr := &CmdRunner{
		ctx:    ctx,
		msgr:   msgr,
		target: InvalidPeerAddress,
		help:   newHelp(),
	}
	return cr
}

// RunCommand parses and executes a single command line, writing any command
// output to the given writer.
func (rt *CmdRunner) RunCommand(cmdline string, output io.Writer) error {
	if rt.ctx.Err() == nil {
		cmd := Command{}

		if err := ParseBytes([]byte(cmdline), &cmd); err != nil {
			if _, err := fmt.Fprintf(output, "Error: %v\n", err); err != nil {
				return err
			}
		} else {
			rt.execute(&cmd, output)
		}
	}
	return rt.ctx.Err()
}

// HandleCommand implements CliHandler.
func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	return rt.RunCommand(cmdline, output)
}

func (rt *CmdRunner) GetPrompt() string {
	return Prompt
}

func (rt *CmdRunner) execute(cmd *Command, output io.Writer) {
	cc := &CommandContext{
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else {
			cc.outputf("Done\n")
		}
	}()

	defer func() {
		rerr := recover()

		if rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic: %v", err)
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	if cmd.Active != nil {
		rt.executeActive(cc, cmd.Active)
	} else if cmd.Channel != nil {
		rt.executeChannel(cc, cmd.Channel)
	} else if cmd.Exit != nil {
		rt.executeExit(cc, cmd.Exit)
	} else if cmd.Help != nil {
		rt.executeHelp(cc, cmd.Help)
	} else if cmd.LogLevel != nil {
		rt.executeLogLevel(cc, cmd.LogLevel)
	} else if cmd.Peer != nil {
		rt.executePeer(cc, cmd.Peer)
	} else if cmd.Peers != nil {
		rt.executePeers(cc)
	} else if cmd.Ping != nil {
		rt.executePing(cc, cmd.Ping)
	} else if cmd.Recv != nil {
		rt.executeRecv(cc, cmd.Recv)
	} else if cmd.Scan != nil {
		rt.executeScan(cc, cmd.Scan)
	} else if cmd.Send != nil {
		rt.executeSend(cc, cmd.Send)
	} else if cmd.Status != nil {
		rt.executeStatus(cc)
	} else {
		logger.Panicf("unimplemented command: %#v", cmd)
	}
}

func (rt *CmdRunner) executeActive(cc *CommandContext, cmd *ActiveCmd) {
	sub := rt.msgr.Subsystem()
	switch cmd.Mode {
	case "":
		if sub.IsActive() {
			cc.outputStr("on\n")
		} else {
			cc.outputStr("off\n")
		}
	case "on":
		sub.SetActive(true)
	case "off":
		sub.SetActive(false)
	}
}

func (rt *CmdRunner) executeChannel(cc *CommandContext, cmd *ChannelCmd) {
	sub := rt.msgr.Subsystem()
	if cmd.Num == nil {
		cc.outputf("%d\n", sub.Channel())
		return
	}
	if err := sub.SetChannel(*cmd.Num); err != nil {
		cc.error(err)
	}
}

func (rt *CmdRunner) executeExit(cc *CommandContext, cmd *ExitCmd) {
	rt.ctx.Cancel("exit")
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.HelpTopic) == 0 {
		cc.outputStr(rt.help.outputGeneralHelp())
	} else {
		cc.outputStr(rt.help.outputCommandHelp(cmd.HelpTopic))
	}
}

func (rt *CmdRunner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if len(cmd.Level) == 0 {
		cc.outputf("%s\n", logger.LevelString(logger.GetLevel()))
		return
	}
	logger.SetLevel(logger.ParseLevel(cmd.Level))
}

func (rt *CmdRunner) executePeer(cc *CommandContext, cmd *PeerCmd) {
	if cmd.Addr == nil {
		if rt.target.IsValid() {
			cc.outputf("%s\n", rt.target)
		} else {
			cc.outputStr("no peer set\n")
		}
		return
	}
	addr, err := ParsePeerAddress(*cmd.Addr)
	if err != nil {
		cc.error(err)
		return
	}
	rt.target = addr
}

func (rt *CmdRunner) executePeers(cc *CommandContext) {
	lister, ok := rt.msgr.Subsystem().(PeerLister)
	if !ok {
		return
	}
	peers := lister.Peers()
	addrs := make([]string, 0, len(peers))
	for _, p := range peers {
		addrs = append(addrs, p.String())
	}
	cc.outputItemsAsYaml(addrs)
}

// resolveTarget picks the peer a command addresses: the explicit address if
// one was given, otherwise the current default set by the 'peer' command.
func (rt *CmdRunner) resolveTarget(cc *CommandContext, addr *string) (PeerAddress, bool) {
	if addr != nil {
		a, err := ParsePeerAddress(*addr)
		if err != nil {
			cc.error(err)
			return InvalidPeerAddress, false
		}
		return a, true
	}
	if !rt.target.IsValid() {
		cc.errorf("no peer set, use 'peer \"<addr>\"' first")
		return InvalidPeerAddress, false
	}
	return rt.target, true
}

func (rt *CmdRunner) executePing(cc *CommandContext, cmd *PingCmd) {
	var addrArg, payloadArg *string
	if cmd.First != nil && cmd.Second != nil {
		addrArg, payloadArg = cmd.First, cmd.Second
	} else if cmd.First != nil {
		// single argument is an address if it parses as one, a payload otherwise
		if _, err := ParsePeerAddress(*cmd.First); err == nil {
			addrArg = cmd.First
		} else {
			payloadArg = cmd.First
		}
	}

	peer, ok := rt.resolveTarget(cc, addrArg)
	if !ok {
		return
	}

	payload := []byte("ping")
	if payloadArg != nil {
		payload = []byte(*payloadArg)
	}

	count := 1
	if cmd.Count != nil {
		count = *cmd.Count
	}

	for i := 0; i < count; i++ {
		start := time.Now()
		acked, err := echo.Ping(rt.msgr, peer, payload, time.Second)
		if err != nil {
			cc.error(err)
			return
		}
		if acked {
			cc.outputf("%s: %d bytes, time=%s\n", peer, len(payload), time.Since(start).Round(time.Millisecond))
		} else {
			cc.outputf("%s: timeout\n", peer)
		}
	}
}

func (rt *CmdRunner) executeRecv(cc *CommandContext, cmd *RecvCmd) {
	timeout := time.Second
	if cmd.TimeoutMs != nil {
		timeout = time.Duration(*cmd.TimeoutMs) * time.Millisecond
	}

	dgram, err := rt.msgr.Receive(timeout)
	if err != nil {
		cc.error(err)
		return
	}
	if dgram == nil {
		cc.outputStr("no message\n")
		return
	}
	cc.outputf("%s: %q\n", dgram.Sender, dgram.Payload)
}

func (rt *CmdRunner) executeScan(cc *CommandContext, cmd *ScanCmd) {
	peer, ok := rt.resolveTarget(cc, cmd.Addr)
	if !ok {
		return
	}

	opts := scanner.Options{}
	if len(cmd.Channels) > 0 {
		opts.Channels = append([]ChannelId(nil), cmd.Channels...)
	}
	if cmd.TimeoutMs != nil {
		opts.ProbeTimeout = time.Duration(*cmd.TimeoutMs) * time.Millisecond
	}

	sc := scanner.New(rt.msgr.Subsystem())

	if cmd.All != nil {
		outcome, err := sc.Locate(peer, opts)
		if err != nil {
			cc.error(err)
			return
		}
		if outcome.Found {
			cc.outputf("found %s, now on channel %d\n", peer, outcome.Channel)
		} else {
			cc.outputf("%s not found\n", peer)
		}
		return
	}

	outcome, err := sc.Scan(peer, opts)
	if err != nil {
		cc.error(err)
		return
	}
	if outcome.Found {
		cc.outputf("found %s on channel %d\n", peer, outcome.Channel)
	} else {
		cc.outputf("%s not found\n", peer)
	}
}

func (rt *CmdRunner) executeSend(cc *CommandContext, cmd *SendCmd) {
	var addrArg, payloadArg *string
	if cmd.Second != nil {
		addrArg, payloadArg = &cmd.First, cmd.Second
	} else {
		payloadArg = &cmd.First
	}

	peer, ok := rt.resolveTarget(cc, addrArg)
	if !ok {
		return
	}

	if err := rt.msgr.Send(peer, []byte(*payloadArg)); err != nil {
		cc.error(err)
	}
}

func (rt *CmdRunner) executeStatus(cc *CommandContext) {
	sub := rt.msgr.Subsystem()
	active := "off"
	if sub.IsActive() {
		active = "on"
	}
	cc.outputf("active=%s channel=%d", active, sub.Channel())
	if rt.target.IsValid() {
		cc.outputf(" peer=%s", rt.target)
	}
	if lister, ok := sub.(PeerLister); ok {
		cc.outputf(" peers=%d", len(lister.Peers()))
	}
	cc.outputStr("\n")
}
