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

package messenger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espnow-go/esplink/radio"
	"github.com/espnow-go/esplink/simradio"
	. "github.com/espnow-go/esplink/types"
)

var (
	localAddr = PeerAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	peerAddr  = PeerAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func setup(t *testing.T) (*Messenger, *simradio.Radio, *simradio.Radio) {
	air := simradio.NewAir()
	local := air.NewRadio(localAddr)
	peer := air.NewRadio(peerAddr)
	peer.SetActive(true)
	return New(local), local, peer
}

func TestSendFreshMessenger(t *testing.T) {
	m, local, peer := setup(t)

	// inactive radio and unknown peer, both repaired automatically
	require.Nil(t, m.Send(peerAddr, []byte("ping")))

	assert.True(t, local.IsActive())
	assert.True(t, local.HasPeer(peerAddr))

	d, err := peer.Receive(time.Second)
	require.Nil(t, err)
	require.NotNil(t, d)
	assert.Equal(t, []byte("ping"), d.Payload)
	assert.Equal(t, localAddr, d.Sender)
}

func TestSendActivatesRadioExactlyOnce(t *testing.T) {
	m, local, _ := setup(t)

	require.Nil(t, m.Send(peerAddr, []byte("a")))
	require.Nil(t, m.Send(peerAddr, []byte("b")))

	assert.Equal(t, 1, local.SetActiveCalls())
}

func TestSendRegistersPeerExactlyOnce(t *testing.T) {
	m, local, _ := setup(t)

	require.Nil(t, m.Send(peerAddr, []byte("a")))
	require.Nil(t, m.Send(peerAddr, []byte("b")))
	require.Nil(t, m.Send(peerAddr, []byte("c")))

	assert.Equal(t, 1, local.AddPeerCalls(peerAddr))
}

func TestSendRegistersPeerOnCurrentChannel(t *testing.T) {
	m, local, _ := setup(t)
	local.SetActive(true)
	require.Nil(t, local.SetChannel(11))

	require.Nil(t, m.Send(peerAddr, []byte("x")))
	assert.True(t, local.HasPeer(peerAddr))
}

func TestSendRepeatedUnknownPeerIsFatal(t *testing.T) {
	m, local, _ := setup(t)
	// simulate a race where the peer table loses the entry twice
	local.InjectSendError(radio.ErrUnknownPeer(peerAddr))
	local.InjectSendError(radio.ErrUnknownPeer(peerAddr))

	err := m.Send(peerAddr, []byte("x"))
	require.NotNil(t, err)
	assert.True(t, radio.IsFatal(err))
}

func TestSendSingleUnknownPeerIsRepaired(t *testing.T) {
	m, local, peer := setup(t)
	local.InjectSendError(radio.ErrUnknownPeer(peerAddr))

	require.Nil(t, m.Send(peerAddr, []byte("x")))

	d, err := peer.Receive(time.Second)
	require.Nil(t, err)
	require.NotNil(t, d)
}

func TestSendRepeatedInactiveIsFatal(t *testing.T) {
	m, local, _ := setup(t)
	local.InjectSendError(radio.ErrInactive())
	local.InjectSendError(radio.ErrInactive())

	err := m.Send(peerAddr, []byte("x"))
	require.NotNil(t, err)
	assert.True(t, radio.IsFatal(err))
}

func TestSendTransientRetriesThenSucceeds(t *testing.T) {
	m, local, peer := setup(t)
	local.InjectSendError(radio.ErrTransient("tx queue full"))
	local.InjectSendError(radio.ErrTransient("tx queue full"))

	require.Nil(t, m.Send(peerAddr, []byte("x")))

	d, err := peer.Receive(time.Second)
	require.Nil(t, err)
	require.NotNil(t, d)
}

func TestSendTransientExhaustionIsFatal(t *testing.T) {
	air := simradio.NewAir()
	local := air.NewRadio(localAddr)
	m := New(local, WithTransientRetries(2), WithBackoff(10*time.Millisecond))

	for i := 0; i < 5; i++ {
		local.InjectSendError(radio.ErrTransient("tx queue full"))
	}

	err := m.Send(peerAddr, []byte("x"))
	require.NotNil(t, err)
	assert.True(t, radio.IsFatal(err))
}

func TestSendOversizedPayloadNeverRetried(t *testing.T) {
	m, local, _ := setup(t)

	err := m.Send(peerAddr, make([]byte, MaxPayloadSize+1))
	require.NotNil(t, err)
	assert.True(t, radio.IsFatal(err))

	// rejected before touching the radio
	assert.False(t, local.IsActive())
	assert.Equal(t, 0, local.AddPeerCalls(peerAddr))
}

func TestSendInvalidAddress(t *testing.T) {
	m, _, _ := setup(t)

	err := m.Send(InvalidPeerAddress, []byte("x"))
	require.NotNil(t, err)
	assert.True(t, radio.IsFatal(err))
}

func TestSendFatalSurfacesUnchangedKind(t *testing.T) {
	m, local, _ := setup(t)
	local.InjectSendError(radio.ErrFatal("hardware fault"))

	err := m.Send(peerAddr, []byte("x"))
	require.NotNil(t, err)
	assert.Equal(t, radio.KindFatal, radio.KindOf(err))
}

func TestReceiveTimeout(t *testing.T) {
	m, local, _ := setup(t)
	local.SetActive(true)

	start := time.Now()
	d, err := m.Receive(80 * time.Millisecond)
	assert.Nil(t, err)
	assert.Nil(t, d)

	elapsed := time.Since(start)
	assert.True(t, elapsed >= 80*time.Millisecond)
	assert.True(t, elapsed < time.Second)
}

func TestReceiveInactiveActivatesAndReturnsEmpty(t *testing.T) {
	m, local, _ := setup(t)
	assert.False(t, local.IsActive())

	d, err := m.Receive(time.Second)
	assert.Nil(t, err)
	assert.Nil(t, d)
	assert.True(t, local.IsActive())
}

func TestReceiveDeliversDatagram(t *testing.T) {
	m, local, peer := setup(t)
	local.SetActive(true)
	require.Nil(t, peer.AddPeer(localAddr, peer.Channel()))
	require.Nil(t, peer.Send(localAddr, []byte("hello")))

	d, err := m.Receive(time.Second)
	require.Nil(t, err)
	require.NotNil(t, d)
	assert.Equal(t, peerAddr, d.Sender)
	assert.Equal(t, []byte("hello"), d.Payload)

	// asymmetric from send: the sender is not auto-registered
	assert.False(t, local.HasPeer(peerAddr))
}
