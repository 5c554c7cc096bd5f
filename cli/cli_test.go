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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espnow-go/esplink/messenger"
	"github.com/espnow-go/esplink/progctx"
	"github.com/espnow-go/esplink/simradio"
	. "github.com/espnow-go/esplink/types"
)

var (
	cliLocalAddr = PeerAddress{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}
	cliPeerAddr  = PeerAddress{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
)

func TestParseBytes(t *testing.T) {
	var cmd Command
	err := ParseBytes([]byte("wrongcmd"), &cmd)
	assert.NotNil(t, err)

	assert.Nil(t, ParseBytes([]byte("active"), &cmd))
	assert.True(t, cmd.Active != nil && cmd.Active.Mode == "")
	assert.Nil(t, ParseBytes([]byte("active on"), &cmd))
	assert.True(t, cmd.Active != nil && cmd.Active.Mode == "on")
	assert.Nil(t, ParseBytes([]byte("active off"), &cmd))
	assert.True(t, cmd.Active != nil && cmd.Active.Mode == "off")

	assert.Nil(t, ParseBytes([]byte("channel"), &cmd))
	assert.True(t, cmd.Channel != nil && cmd.Channel.Num == nil)
	assert.Nil(t, ParseBytes([]byte("channel 6"), &cmd))
	assert.True(t, cmd.Channel != nil && *cmd.Channel.Num == 6)

	assert.True(t, ParseBytes([]byte("exit"), &cmd) == nil && cmd.Exit != nil)

	assert.True(t, ParseBytes([]byte("help"), &cmd) == nil && cmd.Help != nil)
	assert.Nil(t, ParseBytes([]byte("help scan"), &cmd))
	assert.True(t, cmd.Help != nil && cmd.Help.HelpTopic == "scan")

	assert.Nil(t, ParseBytes([]byte("loglevel"), &cmd))
	assert.True(t, cmd.LogLevel != nil && cmd.LogLevel.Level == "")
	assert.Nil(t, ParseBytes([]byte("loglevel debug"), &cmd))
	assert.True(t, cmd.LogLevel != nil && cmd.LogLevel.Level == "debug")

	assert.Nil(t, ParseBytes([]byte("peer \"66:77:88:99:aa:bb\""), &cmd))
	assert.True(t, cmd.Peer != nil && *cmd.Peer.Addr == "66:77:88:99:aa:bb")
	assert.Nil(t, ParseBytes([]byte("peer"), &cmd))
	assert.True(t, cmd.Peer != nil && cmd.Peer.Addr == nil)

	assert.True(t, ParseBytes([]byte("peers"), &cmd) == nil && cmd.Peers != nil)

	assert.Nil(t, ParseBytes([]byte("ping"), &cmd))
	assert.True(t, cmd.Ping != nil && cmd.Ping.First == nil)
	assert.Nil(t, ParseBytes([]byte("ping \"66:77:88:99:aa:bb\" \"hello\" count 3"), &cmd))
	assert.True(t, cmd.Ping != nil && *cmd.Ping.Count == 3)
	assert.Equal(t, "66:77:88:99:aa:bb", *cmd.Ping.First)
	assert.Equal(t, "hello", *cmd.Ping.Second)

	assert.Nil(t, ParseBytes([]byte("recv"), &cmd))
	assert.True(t, cmd.Recv != nil && cmd.Recv.TimeoutMs == nil)
	assert.Nil(t, ParseBytes([]byte("recv 500"), &cmd))
	assert.True(t, cmd.Recv != nil && *cmd.Recv.TimeoutMs == 500)

	assert.Nil(t, ParseBytes([]byte("scan \"66:77:88:99:aa:bb\""), &cmd))
	assert.True(t, cmd.Scan != nil && *cmd.Scan.Addr == "66:77:88:99:aa:bb")
	assert.Nil(t, ParseBytes([]byte("scan \"66:77:88:99:aa:bb\" channels 1 6 11"), &cmd))
	assert.Equal(t, []int{1, 6, 11}, cmd.Scan.Channels)
	assert.Nil(t, ParseBytes([]byte("scan \"66:77:88:99:aa:bb\" timeout 50"), &cmd))
	assert.True(t, cmd.Scan != nil && *cmd.Scan.TimeoutMs == 50)
	assert.Nil(t, ParseBytes([]byte("scan \"66:77:88:99:aa:bb\" all"), &cmd))
	assert.True(t, cmd.Scan != nil && cmd.Scan.All != nil)
	assert.Nil(t, ParseBytes([]byte("scan"), &cmd))
	assert.True(t, cmd.Scan != nil && cmd.Scan.Addr == nil)

	assert.Nil(t, ParseBytes([]byte("send \"hello\""), &cmd))
	assert.True(t, cmd.Send != nil && cmd.Send.First == "hello" && cmd.Send.Second == nil)
	assert.Nil(t, ParseBytes([]byte("send \"66:77:88:99:aa:bb\" \"hello\""), &cmd))
	assert.True(t, cmd.Send != nil && *cmd.Send.Second == "hello")
	assert.NotNil(t, ParseBytes([]byte("send"), &cmd))

	assert.True(t, ParseBytes([]byte("status"), &cmd) == nil && cmd.Status != nil)
}

// startEchoPeer runs a goroutine that echoes every datagram back to its sender,
// until the stop channel is closed.
func startEchoPeer(r *simradio.Radio, stop chan struct{}) {
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			d, err := r.Receive(20 * time.Millisecond)
			if err != nil || d == nil {
				continue
			}
			_ = r.AddPeer(d.Sender, InvalidChannel)
			_ = r.Send(d.Sender, d.Payload)
		}
	}()
}

func setupRunner(t *testing.T) (*CmdRunner, *simradio.Radio, *simradio.Radio, chan struct{}) {
	air := simradio.NewAir()
	local := air.NewRadio(cliLocalAddr)
	peer := air.NewRadio(cliPeerAddr)

	peer.SetActive(true)
	require.NoError(t, peer.SetChannel(6))

	local.SetActive(true)
	require.NoError(t, local.SetChannel(6))

	stop := make(chan struct{})
	ctx := progctx.New(context.Background())
	cr := NewCmdRunner(ctx, messenger.New(local))
	return cr, local, peer, stop
}

func runLine(t *testing.T, cr *CmdRunner, line string) string {
	var buf bytes.Buffer
	err := cr.RunCommand(line, &buf)
	require.NoError(t, err)
	return buf.String()
}

func TestRunCommandActiveChannel(t *testing.T) {
	cr, local, _, stop := setupRunner(t)
	defer close(stop)

	assert.Equal(t, "on\nDone\n", runLine(t, cr, "active"))
	assert.Equal(t, "Done\n", runLine(t, cr, "active off"))
	assert.False(t, local.IsActive())
	assert.Equal(t, "off\nDone\n", runLine(t, cr, "active"))
	assert.Equal(t, "Done\n", runLine(t, cr, "active on"))

	assert.Equal(t, "6\nDone\n", runLine(t, cr, "channel"))
	assert.Equal(t, "Done\n", runLine(t, cr, "channel 11"))
	assert.Equal(t, 11, local.Channel())
	out := runLine(t, cr, "channel 15")
	assert.True(t, strings.HasPrefix(out, "Error:"))
}

func TestRunCommandSendRecv(t *testing.T) {
	cr, local, peer, stop := setupRunner(t)
	defer close(stop)
	startEchoPeer(peer, stop)

	assert.Equal(t, "Done\n", runLine(t, cr, "send \"66:77:88:99:aa:bb\" \"hello\""))
	out := runLine(t, cr, "recv 500")
	assert.Contains(t, out, "66:77:88:99:aa:bb")
	assert.Contains(t, out, "hello")

	// without a default peer, a payload-only send must fail
	out = runLine(t, cr, "send \"hi\"")
	assert.True(t, strings.HasPrefix(out, "Error:"))

	// set a default peer, then payload-only send works
	assert.Equal(t, "Done\n", runLine(t, cr, "peer \"66:77:88:99:aa:bb\""))
	assert.Equal(t, "66:77:88:99:aa:bb\nDone\n", runLine(t, cr, "peer"))
	assert.Equal(t, "Done\n", runLine(t, cr, "send \"hi\""))

	assert.True(t, local.HasPeer(cliPeerAddr))
}

func TestRunCommandPing(t *testing.T) {
	cr, _, peer, stop := setupRunner(t)
	defer close(stop)
	startEchoPeer(peer, stop)

	out := runLine(t, cr, "ping \"66:77:88:99:aa:bb\"")
	assert.Contains(t, out, "time=")
	assert.Contains(t, out, "Done\n")

	out = runLine(t, cr, "ping \"66:77:88:99:aa:bb\" \"payload\" count 2")
	assert.Equal(t, 2, strings.Count(out, "time="))
}

func TestRunCommandScan(t *testing.T) {
	cr, local, peer, stop := setupRunner(t)
	defer close(stop)
	startEchoPeer(peer, stop)

	require.NoError(t, local.SetChannel(1))

	out := runLine(t, cr, "scan \"66:77:88:99:aa:bb\" channels 1 6 11 timeout 100")
	assert.Contains(t, out, "found 66:77:88:99:aa:bb on channel 6")
	assert.Equal(t, 6, local.Channel())
}

func TestRunCommandPeersStatus(t *testing.T) {
	cr, _, peer, stop := setupRunner(t)
	defer close(stop)
	startEchoPeer(peer, stop)

	assert.Equal(t, "Done\n", runLine(t, cr, "send \"66:77:88:99:aa:bb\" \"x\""))

	out := runLine(t, cr, "peers")
	assert.Contains(t, out, "66:77:88:99:aa:bb")

	out = runLine(t, cr, "status")
	assert.Contains(t, out, "active=on")
	assert.Contains(t, out, "channel=6")
	assert.Contains(t, out, "peers=1")
}

func TestRunCommandParseError(t *testing.T) {
	cr, _, _, stop := setupRunner(t)
	defer close(stop)

	out := runLine(t, cr, "bogus")
	assert.True(t, strings.HasPrefix(out, "Error:"))
}

func TestRunCommandHelp(t *testing.T) {
	cr, _, _, stop := setupRunner(t)
	defer close(stop)

	out := runLine(t, cr, "help")
	assert.Contains(t, out, "scan")
	assert.Contains(t, out, "send")

	out = runLine(t, cr, "help scan")
	assert.Contains(t, out, "scan")
	assert.Contains(t, out, "ascending")
}

func TestRunCommandExit(t *testing.T) {
	cr, _, _, stop := setupRunner(t)
	defer close(stop)

	var buf bytes.Buffer
	err := cr.RunCommand("exit", &buf)
	assert.NotNil(t, err)
	assert.NotNil(t, cr.ctx.Err())
}
