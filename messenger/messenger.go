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

// Package messenger wraps the raw radio send/receive capability and
// transparently repairs the two recoverable operator errors: radio not
// activated, and peer not registered. Genuine faults stay visible.
package messenger

import (
	"time"

	"github.com/pkg/errors"

	"github.com/espnow-go/esplink/logger"
	"github.com/espnow-go/esplink/prng"
	"github.com/espnow-go/esplink/radio"
	"github.com/espnow-go/esplink/retry"
	. "github.com/espnow-go/esplink/types"
)

const (
	// defaultTransientRetries bounds how often a transient transmit
	// condition (tx queue full and the like) is retried before it is
	// promoted to a fatal error.
	defaultTransientRetries = 3

	// defaultBackoff is the pause between transient retries; a random
	// jitter of up to the same amount is added on top.
	defaultBackoff = 20 * time.Millisecond
)

// Option customizes a Messenger.
type Option func(*Messenger)

// WithTransientRetries sets the transient retry budget for Send.
func WithTransientRetries(n int) Option {
	return func(m *Messenger) { m.transientRetries = n }
}

// WithBackoff sets the base pause between transient retries.
func WithBackoff(d time.Duration) Option {
	return func(m *Messenger) { m.backoff = d }
}

// Messenger is the send/receive entry point used by application code. It
// re-checks and repairs precondition state (radio active, peer registered)
// before every operation; each repair is applied at most once per
// operation, a recurrence is promoted to a fatal error.
type Messenger struct {
	sub              radio.Subsystem
	transientRetries int
	backoff          time.Duration
}

func New(sub radio.Subsystem, options ...Option) *Messenger {
	m := &Messenger{
		sub:              sub,
		transientRetries: defaultTransientRetries,
		backoff:          defaultBackoff,
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Send transmits payload to peer. On success the payload has been accepted
// by the radio hardware for transmission; no delivery guarantee is made.
// On failure nothing was transmitted.
//
// An inactive radio is activated and an unregistered peer is registered on
// the channel currently active; the caller is responsible for having
// reached the correct channel first (e.g. via scanner). Malformed input is
// fatal immediately and never retried.
func (m *Messenger) Send(peer PeerAddress, payload []byte) error {
	if !peer.IsValid() {
		return radio.ErrFatal("invalid peer address")
	}
	if len(payload) > MaxPayloadSize {
		return radio.ErrFatalf("payload size %d exceeds limit %d", len(payload), MaxPayloadSize)
	}

	m.ensureActive()
	if err := m.ensurePeer(peer); err != nil {
		return err
	}

	repairedInactive := false
	repairedPeer := false
	t := retry.NewTimer(time.Duration(m.transientRetries)*m.backoff, m.backoff, true)

	for attempt := 1; ; attempt++ {
		err := m.sub.Send(peer, payload)
		if err == nil {
			return nil
		}

		switch radio.KindOf(err) {
		case radio.KindInactive:
			// race with concurrent state mutation: repair exactly once
			if repairedInactive {
				return radio.ErrFatalf("radio deactivated again after repair: %v", err)
			}
			repairedInactive = true
			logger.Warnf("messenger: radio inactive on send attempt %d, re-activating", attempt)
			m.ensureActive()

		case radio.KindUnknownPeer:
			if repairedPeer {
				return radio.ErrFatalf("peer %s lost again after repair: %v", peer, err)
			}
			repairedPeer = true
			logger.Warnf("messenger: peer %s unregistered on send attempt %d, re-adding", peer, attempt)
			if err := m.ensurePeer(peer); err != nil {
				return err
			}

		case radio.KindTransient:
			if !t.HasNext() {
				return radio.ErrFatalf("transient send failures exhausted %d retries: %v", m.transientRetries, err)
			}
			logger.Debugf("messenger: transient send failure on attempt %d: %v", attempt, err)
			if _, terr := t.Next(); terr != nil {
				return radio.ErrFatalf("transient send failures exhausted %d retries: %v", m.transientRetries, err)
			}
			time.Sleep(prng.BackoffJitter(m.backoff / 2))

		default:
			return errors.Wrap(err, "send failed")
		}
	}
}

// Receive blocks until a datagram arrives or timeout elapses, returning
// (nil, nil) on timeout. When called with the radio inactive it activates
// the radio and reports "no message", since nothing can be queued yet. The
// sender is not auto-registered as a peer.
func (m *Messenger) Receive(timeout time.Duration) (*radio.Datagram, error) {
	if !m.sub.IsActive() {
		m.sub.SetActive(true)
		return nil, nil
	}

	d, err := m.sub.Receive(timeout)
	if err != nil {
		return nil, errors.Wrap(err, "receive failed")
	}
	return d, nil
}

// Subsystem exposes the wrapped radio for layers that need direct channel
// or peer-table access.
func (m *Messenger) Subsystem() radio.Subsystem {
	return m.sub
}

func (m *Messenger) ensureActive() {
	if !m.sub.IsActive() {
		logger.Debugf("messenger: activating radio")
		m.sub.SetActive(true)
	}
}

func (m *Messenger) ensurePeer(peer PeerAddress) error {
	if m.sub.HasPeer(peer) {
		return nil
	}
	logger.Debugf("messenger: registering peer %s on channel %d", peer, m.sub.Channel())
	return m.sub.AddPeer(peer, m.sub.Channel())
}
