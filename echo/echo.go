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

// Package echo implements the request/response demo loop built atop the
// messenger contract: a server that echoes every datagram back to its
// sender, and a client that checks the echoes round-trip intact.
package echo

import (
	"bytes"
	"context"
	"time"

	"github.com/espnow-go/esplink/logger"
	"github.com/espnow-go/esplink/messenger"
	"github.com/espnow-go/esplink/prng"
	. "github.com/espnow-go/esplink/types"
)

// DoneMessage stops a running server when received.
const DoneMessage = "!done"

const pollInterval = 200 * time.Millisecond

// Serve echoes every received datagram back to its sender until ctx is
// cancelled or a DoneMessage arrives. First-seen senders are registered as
// peers so the reply can be transmitted.
func Serve(ctx context.Context, m *messenger.Messenger) error {
	sub := m.Subsystem()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		d, err := m.Receive(pollInterval)
		if err != nil {
			return err
		}
		if d == nil {
			continue
		}

		if !sub.HasPeer(d.Sender) {
			if err := sub.AddPeer(d.Sender, sub.Channel()); err != nil {
				logger.Warnf("echo: cannot register sender %s: %v", d.Sender, err)
				continue
			}
		}

		if err := m.Send(d.Sender, d.Payload); err != nil {
			logger.Errorf("echo: send to %s failed: %v", d.Sender, err)
			return err
		}

		if bytes.Equal(d.Payload, []byte(DoneMessage)) {
			logger.Infof("echo: done message received, stopping")
			return nil
		}
	}
}

// Ping sends payload to peer and waits up to timeout for the echo. It
// reports whether the echoed payload matched what was sent.
func Ping(m *messenger.Messenger, peer PeerAddress, payload []byte, timeout time.Duration) (bool, error) {
	if err := m.Send(peer, payload); err != nil {
		return false, err
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			logger.Infof("echo: no reply from %s within %v", peer, timeout)
			return false, nil
		}

		d, err := m.Receive(remaining)
		if err != nil {
			return false, err
		}
		if d == nil {
			logger.Infof("echo: no reply from %s within %v", peer, timeout)
			return false, nil
		}
		if d.Sender != peer {
			continue
		}
		return bytes.Equal(d.Payload, payload), nil
	}
}

// RunClient echo-tests peer with a random payload per requested size.
// Payloads never start with '!' so they cannot be mistaken for control
// messages. It returns the number of sizes that round-tripped intact.
func RunClient(m *messenger.Messenger, peer PeerAddress, sizes []int, timeout time.Duration) (int, error) {
	ok := 0
	for _, size := range sizes {
		payload := prng.RandomBytes(size)
		if size > 0 {
			payload[0] = '_'
		}

		match, err := Ping(m, peer, payload, timeout)
		if err != nil {
			return ok, err
		}
		if match {
			ok++
		} else {
			logger.Warnf("echo: payload of size %d did not round-trip", size)
		}
	}
	return ok, nil
}
