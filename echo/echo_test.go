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

package echo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espnow-go/esplink/messenger"
	"github.com/espnow-go/esplink/simradio"
	. "github.com/espnow-go/esplink/types"
)

var (
	clientAddr = PeerAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverAddr = PeerAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func setup(t *testing.T) (client *messenger.Messenger, server *messenger.Messenger, done chan error) {
	air := simradio.NewAir()
	clientRadio := air.NewRadio(clientAddr)
	serverRadio := air.NewRadio(serverAddr)
	serverRadio.SetActive(true)

	client = messenger.New(clientRadio)
	server = messenger.New(serverRadio)
	return client, server, make(chan error, 1)
}

func TestPingRoundTrip(t *testing.T) {
	client, server, done := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { done <- Serve(ctx, server) }()

	match, err := Ping(client, serverAddr, []byte("_hello"), time.Second)
	require.Nil(t, err)
	assert.True(t, match)

	cancel()
	assert.Nil(t, <-done)
}

func TestServerStopsOnDoneMessage(t *testing.T) {
	client, server, done := setup(t)

	go func() { done <- Serve(context.Background(), server) }()

	match, err := Ping(client, serverAddr, []byte(DoneMessage), time.Second)
	require.Nil(t, err)
	assert.True(t, match)

	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop on done message")
	}
}

func TestServerRegistersSender(t *testing.T) {
	client, server, done := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { done <- Serve(ctx, server) }()

	_, err := Ping(client, serverAddr, []byte("_x"), time.Second)
	require.Nil(t, err)
	assert.True(t, server.Subsystem().HasPeer(clientAddr))
}

func TestRunClient(t *testing.T) {
	client, server, done := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { done <- Serve(ctx, server) }()

	ok, err := RunClient(client, serverAddr, []int{0, 1, 16, MaxPayloadSize}, time.Second)
	require.Nil(t, err)
	assert.Equal(t, 4, ok)
}
