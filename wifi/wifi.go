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

// Package wifi brings the station and access-point interfaces into a fully
// known state before link-layer messaging starts: reset, channel
// selection and network association with bounded waits.
package wifi

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/espnow-go/esplink/logger"
	"github.com/espnow-go/esplink/retry"
	. "github.com/espnow-go/esplink/types"
)

// Interface is one wlan interface (station or access point) of the local
// device.
type Interface interface {
	IsActive() bool
	SetActive(active bool)
	IsConnected() bool
	Connect(ssid, password string) error
	Disconnect() error
	Channel() ChannelId
	SetChannel(ch ChannelId) error
}

const waitPollInterval = 100 * time.Millisecond

// Manager owns the station/AP pair and sequences bring-up operations.
type Manager struct {
	sta Interface
	ap  Interface
	cfg Config
}

func NewManager(sta, ap Interface, cfg Config) *Manager {
	return &Manager{sta: sta, ap: ap, cfg: cfg}
}

// Reset forces the wifi into a fully known state: both interfaces off,
// then the requested ones on, tuned to channel. Survives being called in
// any prior state.
func (m *Manager) Reset(staOn, apOn bool, ch ChannelId) error {
	if m.sta.IsConnected() {
		if err := m.Disconnect(); err != nil {
			return err
		}
	}
	m.sta.SetActive(false)
	m.ap.SetActive(false)

	m.sta.SetActive(staOn)
	m.ap.SetActive(apOn)

	if ch == InvalidChannel {
		ch = m.cfg.Channel
	}
	if err := m.SetChannel(ch); err != nil {
		return err
	}
	logger.Infof("wifi: reset done, sta=%v ap=%v channel=%d", staOn, apOn, ch)
	return nil
}

// SetChannel tunes the station interface. Refused while associated with a
// network or while AP clients are connected, since the channel is then
// owned by the association.
func (m *Manager) SetChannel(ch ChannelId) error {
	if !IsValidChannel(ch) {
		return errors.Errorf("invalid channel %d", ch)
	}
	if m.sta.IsConnected() {
		return errors.New("can not set channel when connected to wifi network")
	}
	if m.ap.IsConnected() {
		return errors.New("can not set channel when clients are connected to AP")
	}
	return m.sta.SetChannel(ch)
}

// Channel returns the station interface's current channel.
func (m *Manager) Channel() ChannelId {
	return m.sta.Channel()
}

// Connect associates the station with the configured network and waits,
// bounded by the configured timeout, until the association completes.
func (m *Manager) Connect(ssid, password string) error {
	if ssid == "" {
		ssid, password = m.cfg.SSID, m.cfg.Password
	}
	if ssid == "" {
		return errors.New("no ssid configured")
	}

	if !m.sta.IsActive() {
		m.sta.SetActive(true)
	}
	if m.sta.IsConnected() {
		return nil
	}

	logger.Infof("wifi: connecting to %q", ssid)
	if err := m.sta.Connect(ssid, password); err != nil {
		return errors.Wrapf(err, "connect to %q", ssid)
	}
	if err := waitFor(m.sta.IsConnected, m.cfg.ConnectTimeout()); err != nil {
		return errors.Wrapf(err, "connect to %q", ssid)
	}
	return nil
}

// Disconnect drops the station's association and waits for it to take
// effect.
func (m *Manager) Disconnect() error {
	if err := m.sta.Disconnect(); err != nil {
		return errors.Wrap(err, "disconnect")
	}
	return waitFor(func() bool { return !m.sta.IsConnected() }, 5*time.Second)
}

// Status writes a verbose dump of the wifi state.
func (m *Manager) Status(w io.Writer) {
	_, _ = fmt.Fprintf(w, "sta: active=%v connected=%v channel=%d\n",
		m.sta.IsActive(), m.sta.IsConnected(), m.sta.Channel())
	_, _ = fmt.Fprintf(w, "ap:  active=%v connected=%v channel=%d\n",
		m.ap.IsActive(), m.ap.IsConnected(), m.ap.Channel())
}

// waitFor polls cond until it holds or the timeout budget runs out.
func waitFor(cond func() bool, timeout time.Duration) error {
	t := retry.NewTimer(timeout, waitPollInterval, true)
	for {
		if cond() {
			return nil
		}
		if _, err := t.Next(); err != nil {
			return err
		}
	}
}
