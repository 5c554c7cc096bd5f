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

// Package simradio implements an in-memory radio subsystem: multiple
// simulated radios share an Air and exchange datagrams subject to channel
// match, peer registration and inbox capacity. It backs the demo CLI and
// the link-layer tests.
package simradio

import (
	"sync"
	"time"

	"github.com/espnow-go/esplink/logger"
	"github.com/espnow-go/esplink/prng"
	"github.com/espnow-go/esplink/radio"
	. "github.com/espnow-go/esplink/types"
)

const inboxCapacity = 16

// Air connects simulated radios. Delivery requires the receiving radio to
// be active and tuned to the sender's channel.
type Air struct {
	mu     sync.Mutex
	radios map[PeerAddress]*Radio

	// LossRate is the probability [0,1) that a delivered frame is dropped
	// in the air, drawn from the prng package.
	LossRate float64
}

func NewAir() *Air {
	return &Air{
		radios: make(map[PeerAddress]*Radio),
	}
}

// NewRadio creates a radio with the given hardware address and attaches it
// to the air. The radio starts inactive on the default channel.
func (a *Air) NewRadio(addr PeerAddress) *Radio {
	r := &Radio{
		air:          a,
		addr:         addr,
		channel:      MinChannelNumber,
		peers:        make(map[PeerAddress]ChannelId),
		addPeerCalls: make(map[PeerAddress]int),
		inbox:        make(chan radio.Datagram, inboxCapacity),
	}

	a.mu.Lock()
	a.radios[addr] = r
	a.mu.Unlock()
	return r
}

// deliver carries a frame across the air. It reports false only when the
// receiver was listening but had no queue space left; frames that vanish
// (unknown address, loss draw, receiver not tuned in) are not an error.
func (a *Air) deliver(from *Radio, to PeerAddress, payload []byte) bool {
	a.mu.Lock()
	target, ok := a.radios[to]
	lossRate := a.LossRate
	a.mu.Unlock()

	if !ok {
		return true // nobody with that address in the air
	}
	if lossRate > 0 && prng.UnitRandom() < lossRate {
		logger.Debugf("air: dropped frame %s -> %s", from.addr, to)
		return true
	}
	return target.receiveFrame(from.addr, from.Channel(), payload)
}

// Radio is a single simulated radio subsystem. It implements
// radio.Subsystem.
type Radio struct {
	air *Air
	mu  sync.Mutex

	addr    PeerAddress
	active  bool
	channel ChannelId
	peers   map[PeerAddress]ChannelId
	inbox   chan radio.Datagram

	injectedSendErrs []error
	addPeerCalls     map[PeerAddress]int
	setActiveCalls   int
	channelHistory   []ChannelId
}

var _ radio.Subsystem = (*Radio)(nil)

func (r *Radio) Address() PeerAddress {
	return r.addr
}

func (r *Radio) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Radio) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
	r.setActiveCalls++
}

// SetActiveCalls returns how often SetActive was called.
func (r *Radio) SetActiveCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setActiveCalls
}

func (r *Radio) Channel() ChannelId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

func (r *Radio) SetChannel(ch ChannelId) error {
	if !IsValidChannel(ch) {
		return radio.ErrFatalf("invalid channel %d", ch)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel = ch
	r.channelHistory = append(r.channelHistory, ch)
	return nil
}

func (r *Radio) AddPeer(peer PeerAddress, ch ChannelId) error {
	if !peer.IsValid() {
		return radio.ErrFatal("invalid peer address")
	}
	if ch != InvalidChannel && !IsValidChannel(ch) {
		return radio.ErrFatalf("invalid channel %d", ch)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.addPeerCalls[peer]++
	if _, ok := r.peers[peer]; !ok {
		r.peers[peer] = ch
	}
	return nil
}

func (r *Radio) HasPeer(peer PeerAddress) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[peer]
	return ok
}

func (r *Radio) Peers() []PeerAddress {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]PeerAddress, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// InjectSendError queues an error to be returned by the next Send call.
// Queued errors are consumed in FIFO order before any delivery is
// attempted.
func (r *Radio) InjectSendError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injectedSendErrs = append(r.injectedSendErrs, err)
}

// AddPeerCalls returns how often AddPeer was called for peer, including
// idempotent repeats.
func (r *Radio) AddPeerCalls(peer PeerAddress) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addPeerCalls[peer]
}

// ChannelHistory returns the sequence of channels set via SetChannel.
func (r *Radio) ChannelHistory() []ChannelId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChannelId(nil), r.channelHistory...)
}

func (r *Radio) Send(peer PeerAddress, payload []byte) error {
	r.mu.Lock()
	if len(r.injectedSendErrs) > 0 {
		err := r.injectedSendErrs[0]
		r.injectedSendErrs = r.injectedSendErrs[1:]
		r.mu.Unlock()
		return err
	}
	if !r.active {
		r.mu.Unlock()
		return radio.ErrInactive()
	}
	if !peer.IsValid() {
		r.mu.Unlock()
		return radio.ErrFatal("invalid peer address")
	}
	if len(payload) > MaxPayloadSize {
		r.mu.Unlock()
		return radio.ErrFatalf("payload size %d exceeds limit %d", len(payload), MaxPayloadSize)
	}
	if _, registered := r.peers[peer]; !registered && !peer.IsBroadcast() {
		r.mu.Unlock()
		return radio.ErrUnknownPeer(peer)
	}
	r.mu.Unlock()

	// payload is copied so later caller mutation cannot alter delivery.
	frame := append([]byte(nil), payload...)
	if !r.air.deliver(r, peer, frame) {
		return radio.ErrTransient("tx queue full")
	}
	return nil
}

// receiveFrame queues an inbound frame. It reports false when the radio was
// listening but its queue is full, which the sender sees as a transient
// condition.
func (r *Radio) receiveFrame(sender PeerAddress, senderChannel ChannelId, payload []byte) bool {
	r.mu.Lock()
	active, channel := r.active, r.channel
	r.mu.Unlock()

	if !active || channel != senderChannel {
		return true
	}

	select {
	case r.inbox <- radio.Datagram{Sender: sender, Payload: payload}:
		return true
	default:
		logger.Debugf("simradio %s: inbox full, frame from %s dropped", r.addr, sender)
		return false
	}
}

func (r *Radio) Receive(timeout time.Duration) (*radio.Datagram, error) {
	if !r.IsActive() {
		return nil, radio.ErrInactive()
	}

	if timeout <= 0 { // non-blocking poll
		select {
		case d := <-r.inbox:
			return &d, nil
		default:
			return nil, nil
		}
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case d := <-r.inbox:
		return &d, nil
	case <-deadline.C:
		return nil, nil
	}
}
