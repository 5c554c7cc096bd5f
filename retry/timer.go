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

// Package retry provides a restartable countdown/interval timer that drives
// retry and timeout loops throughout the link layer.
package retry

import (
	"fmt"
	"time"
)

// TimeoutError is returned by Timer.Next on the final tick when the timer
// was created with raise-on-exhaust enabled.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v", e.Budget)
}

// IsTimeout reports whether err is a Timer exhaustion.
func IsTimeout(err error) bool {
	_, ok := err.(*TimeoutError)
	return ok
}

// Timer yields a lazy, finite sequence of elapsed-time ticks. Each call to
// Next suspends for one interval (or until the ready channel fires early)
// and then yields the elapsed time since the timer was started. The
// sequence ends once the total budget is spent; at most ceil(budget /
// interval) ticks are produced.
//
// A Timer is single-use until Reset, which re-arms the deadline from "now"
// without reallocating. It is not safe for concurrent use.
type Timer struct {
	budget   time.Duration
	interval time.Duration
	raise    bool

	start     time.Time
	deadline  time.Time
	exhausted bool
	ready     <-chan struct{}
}

// NewTimer creates a timer with a total duration budget and a tick
// interval. With raise enabled, the tick that exhausts the budget reports a
// *TimeoutError; otherwise the sequence simply ends and callers treat that
// as "give up, no error".
func NewTimer(budget, interval time.Duration, raise bool) *Timer {
	if interval <= 0 || interval > budget {
		interval = budget
	}
	t := &Timer{
		budget:   budget,
		interval: interval,
		raise:    raise,
	}
	t.Reset()
	return t
}

// SetReadyChan installs an external readiness signal. A waiting Next call
// returns as soon as the channel fires, without spending the full interval.
func (t *Timer) SetReadyChan(ch <-chan struct{}) {
	t.ready = ch
}

// Reset re-arms the deadline from now.
func (t *Timer) Reset() {
	t.start = time.Now()
	t.deadline = t.start.Add(t.budget)
	t.exhausted = false
}

// HasNext reports whether the tick sequence can produce another element.
func (t *Timer) HasNext() bool {
	return !t.exhausted
}

// Elapsed returns the time spent since the timer was started or last Reset.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Next suspends until the next tick and returns the elapsed time since
// start. On the tick that exhausts the budget it returns a *TimeoutError if
// raise-on-exhaust was requested, or a nil error with the sequence ended.
// Calling Next on an exhausted timer returns immediately.
func (t *Timer) Next() (time.Duration, error) {
	if t.exhausted {
		if t.raise {
			return t.Elapsed(), &TimeoutError{Budget: t.budget}
		}
		return t.Elapsed(), nil
	}

	wait := t.interval
	if remaining := time.Until(t.deadline); remaining < wait {
		wait = remaining
	}

	if wait > 0 {
		tick := time.NewTimer(wait)
		select {
		case <-tick.C:
		case <-t.ready:
			tick.Stop()
		}
	}

	elapsed := t.Elapsed()
	if !time.Now().Before(t.deadline) {
		t.exhausted = true
		if t.raise {
			return elapsed, &TimeoutError{Budget: t.budget}
		}
	}
	return elapsed, nil
}
