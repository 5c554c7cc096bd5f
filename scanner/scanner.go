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

// Package scanner discovers which wifi channel a known peer address is
// reachable on, by probing candidate channels in ascending order.
package scanner

import (
	"sort"
	"time"

	"github.com/espnow-go/esplink/logger"
	"github.com/espnow-go/esplink/radio"
	"github.com/espnow-go/esplink/retry"
	. "github.com/espnow-go/esplink/types"
)

// ProbePayload is the minimal datagram sent to elicit a response from the
// target during discovery.
var ProbePayload = []byte("ping")

// Options control a scan. The zero value is usable; defaults are filled in
// by Scan.
type Options struct {
	// Channels is the candidate set, probed in ascending order. Empty
	// means every channel supported by the local hardware.
	Channels []ChannelId

	// ProbeTimeout bounds the wait per channel.
	ProbeTimeout time.Duration

	// Probes is how many probe datagrams are sent per channel, paced over
	// ProbeTimeout.
	Probes int
}

const (
	defaultProbeTimeout = 200 * time.Millisecond
	defaultProbes       = 3
)

func (o *Options) applyDefaults() {
	if len(o.Channels) == 0 {
		o.Channels = AllChannels()
	} else {
		o.Channels = append([]ChannelId(nil), o.Channels...)
		sort.Ints(o.Channels)
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = defaultProbeTimeout
	}
	if o.Probes <= 0 {
		o.Probes = defaultProbes
	}
}

// Outcome is the result of a scan: the channel the target answered on, or
// not-found after the candidate set was exhausted.
type Outcome struct {
	Found   bool
	Channel ChannelId
}

// Scanner probes candidate channels for a specific peer. It mutates the
// radio's process-wide active channel as its primary side effect: after a
// successful scan the radio is left tuned to the discovered channel.
type Scanner struct {
	sub radio.Subsystem
}

func New(sub radio.Subsystem) *Scanner {
	return &Scanner{sub: sub}
}

// Scan probes every candidate channel in ascending order until target
// answers, and returns the discovered channel. On NotFound the active
// channel is left at whatever value was tried last; callers must not
// assume restoration. A fatal radio error aborts the scan immediately.
func (s *Scanner) Scan(target PeerAddress, opts Options) (Outcome, error) {
	if !target.IsValid() {
		return Outcome{}, radio.ErrFatal("invalid scan target address")
	}
	opts.applyDefaults()

	if !s.sub.IsActive() {
		s.sub.SetActive(true)
	}

	for _, ch := range opts.Channels {
		if !IsValidChannel(ch) {
			return Outcome{}, radio.ErrFatalf("invalid channel %d in scan set", ch)
		}
		if err := s.sub.SetChannel(ch); err != nil {
			return Outcome{}, err
		}

		answered, err := s.probeChannel(target, &opts)
		if err != nil {
			return Outcome{}, err
		}
		if answered {
			logger.Infof("scanner: found peer %s on channel %d", target, ch)
			return Outcome{Found: true, Channel: ch}, nil
		}
	}
	logger.Infof("scanner: peer %s not found on channels %v", target, opts.Channels)
	return Outcome{}, nil
}

// ScanAll probes every candidate channel and collects all channels the
// target answered on. Adjacent-channel cross-talk makes a strong peer
// audible on more than one channel, so the caller gets the full list.
func (s *Scanner) ScanAll(target PeerAddress, opts Options) ([]ChannelId, error) {
	if !target.IsValid() {
		return nil, radio.ErrFatal("invalid scan target address")
	}
	opts.applyDefaults()

	if !s.sub.IsActive() {
		s.sub.SetActive(true)
	}

	var found []ChannelId
	for _, ch := range opts.Channels {
		if !IsValidChannel(ch) {
			return nil, radio.ErrFatalf("invalid channel %d in scan set", ch)
		}
		if err := s.sub.SetChannel(ch); err != nil {
			return nil, err
		}

		answered, err := s.probeChannel(target, &opts)
		if err != nil {
			return nil, err
		}
		if answered {
			logger.Infof("scanner: found peer %s on channel %d", target, ch)
			found = append(found, ch)
		}
	}
	return found, nil
}

// Locate runs ScanAll and tunes the radio to the channel selected from the
// answering set. It reports not-found when no channel answered.
func (s *Scanner) Locate(target PeerAddress, opts Options) (Outcome, error) {
	found, err := s.ScanAll(target, opts)
	if err != nil {
		return Outcome{}, err
	}
	if len(found) == 0 {
		return Outcome{}, nil
	}

	ch := SelectChannel(found)
	if err := s.sub.SetChannel(ch); err != nil {
		return Outcome{}, err
	}
	logger.Infof("scanner: selected channel %d from %v", ch, found)
	return Outcome{Found: true, Channel: ch}, nil
}

// SelectChannel picks the channel to use from the set a peer answered on.
// With 3 or more answering channels the middle one is the true channel; of
// 2 the first is picked only when it is channel 1; a single answer is
// taken as-is.
func SelectChannel(found []ChannelId) ChannelId {
	switch {
	case len(found) == 0:
		return InvalidChannel
	case len(found) == 1, len(found) == 2 && found[0] == MinChannelNumber:
		return found[0]
	default:
		return found[1]
	}
}

// probeChannel sends probes to target on the current channel, paced by a
// retry timer, and watches for any inbound datagram from target within the
// per-channel budget.
func (s *Scanner) probeChannel(target PeerAddress, opts *Options) (bool, error) {
	if !s.sub.HasPeer(target) {
		// provisional registration; the entry is left behind on failure
		// (accepted leak, bounded by the number of channels scanned).
		if err := s.sub.AddPeer(target, InvalidChannel); err != nil {
			return false, err
		}
	}

	t := retry.NewTimer(opts.ProbeTimeout, opts.ProbeTimeout/time.Duration(opts.Probes), false)

	// each recoverable condition is repaired at most once per channel; a
	// recurrence means the repair did not take and scanning on would loop
	// on a broken radio forever.
	repairedInactive := false
	repairedPeer := false

	for t.HasNext() {
		if err := s.sub.Send(target, ProbePayload); err != nil {
			switch radio.KindOf(err) {
			case radio.KindFatal:
				return false, err
			case radio.KindUnknownPeer:
				if repairedPeer {
					return false, radio.ErrFatalf("peer %s lost again after re-registration: %v", target, err)
				}
				repairedPeer = true
				// lost the table entry underneath us, re-register
				if err := s.sub.AddPeer(target, InvalidChannel); err != nil {
					return false, err
				}
				continue
			case radio.KindInactive:
				if repairedInactive {
					return false, radio.ErrFatalf("radio inactive again after re-activation: %v", err)
				}
				repairedInactive = true
				s.sub.SetActive(true)
				continue
			default:
				// transient tx condition, wait for the next tick
			}
		}

		if _, err := t.Next(); err != nil {
			return false, err
		}

		answered, err := s.drainInbound(target)
		if err != nil || answered {
			return answered, err
		}
	}
	return false, nil
}

// drainInbound polls any datagrams queued during the last tick and reports
// whether one of them came from target.
func (s *Scanner) drainInbound(target PeerAddress) (bool, error) {
	for {
		d, err := s.sub.Receive(0)
		if err != nil {
			if radio.IsFatal(err) {
				return false, err
			}
			return false, nil
		}
		if d == nil {
			return false, nil
		}
		if d.Sender == target {
			return true, nil
		}
		logger.Debugf("scanner: ignoring datagram from %s while probing %s", d.Sender, target)
	}
}
