// Copyright (c) 2023-2025, The esplink Authors.
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

// Package radio defines the boundary with the radio/wifi subsystem: channel
// selection, peer registration and datagram send/receive primitives.
package radio

import (
	"time"

	. "github.com/espnow-go/esplink/types"
)

// Datagram is a single received radio frame with its sender address.
type Datagram struct {
	Sender  PeerAddress
	Payload []byte
}

// Subsystem is the capability set required from the underlying radio
// hardware/firmware layer. The active channel and the peer table are
// process-wide state owned by the implementation; callers that interleave
// channel changes and sends must serialize them.
//
// AddPeer is idempotent: registering an address that is already in the peer
// table succeeds without change.
//
// Receive blocks up to timeout and returns (nil, nil) when no datagram
// arrived in time; that is the expected-absence outcome, not an error.
type Subsystem interface {
	IsActive() bool
	SetActive(active bool)

	Channel() ChannelId
	SetChannel(ch ChannelId) error

	AddPeer(peer PeerAddress, ch ChannelId) error
	HasPeer(peer PeerAddress) bool

	Send(peer PeerAddress, payload []byte) error
	Receive(timeout time.Duration) (*Datagram, error)
}
