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

package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type ChannelId = int

// 2.4 GHz Wi-Fi channel range used by ESP-NOW capable devices. The upper
// bound is region/device dependent; 14 is the hardware maximum.
const (
	InvalidChannel   ChannelId = 0
	MinChannelNumber ChannelId = 1
	MaxChannelNumber ChannelId = 14
)

// MaxPayloadSize is the largest datagram payload the radio hardware accepts
// in a single frame (ESP-NOW v1 limit).
const MaxPayloadSize = 250

// AllChannels returns the full ascending list of channels supported by the
// local hardware.
func AllChannels() []ChannelId {
	channels := make([]ChannelId, 0, MaxChannelNumber)
	for ch := MinChannelNumber; ch <= MaxChannelNumber; ch++ {
		channels = append(channels, ch)
	}
	return channels
}

// IsValidChannel checks that ch lies within the supported channel range.
func IsValidChannel(ch ChannelId) bool {
	return ch >= MinChannelNumber && ch <= MaxChannelNumber
}

// PeerAddress is the fixed 6-byte hardware (MAC) address of a remote radio
// endpoint. Equality is byte-wise; the zero value is not a valid peer.
type PeerAddress [6]byte

var (
	// BroadcastAddress is the all-ones address accepted by the radio for
	// unregistered broadcast sends.
	BroadcastAddress = PeerAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	// InvalidPeerAddress is the all-zero address.
	InvalidPeerAddress = PeerAddress{}
)

func (a PeerAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a PeerAddress) IsValid() bool {
	return a != InvalidPeerAddress
}

func (a PeerAddress) IsBroadcast() bool {
	return a == BroadcastAddress
}

// ParsePeerAddress parses a peer address in aa:bb:cc:dd:ee:ff,
// aa-bb-cc-dd-ee-ff or bare aabbccddeeff form.
func ParsePeerAddress(s string) (PeerAddress, error) {
	var addr PeerAddress
	cleaned := strings.NewReplacer(":", "", "-", "").Replace(s)
	raw, err := hex.DecodeString(cleaned)
	if err != nil || len(raw) != len(addr) {
		return InvalidPeerAddress, errors.Errorf("invalid peer address: %q", s)
	}
	copy(addr[:], raw)
	return addr, nil
}
