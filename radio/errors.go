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

package radio

import (
	"errors"
	"fmt"

	. "github.com/espnow-go/esplink/types"
)

// ErrorKind is the closed set of radio failure classes. Repair and retry
// logic switches exhaustively on these kinds, never on error strings.
type ErrorKind int

const (
	// KindInactive reports an operation attempted while the radio is not
	// active. Recoverable by activating the radio.
	KindInactive ErrorKind = iota

	// KindUnknownPeer reports a send to an address missing from the peer
	// table. Recoverable by registering the peer.
	KindUnknownPeer

	// KindTransient reports a capacity or timing condition (e.g. tx queue
	// full) that may clear on retry.
	KindTransient

	// KindFatal reports a non-recoverable condition: hardware fault,
	// malformed input, or an exhausted retry/repair budget.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInactive:
		return "inactive"
	case KindUnknownPeer:
		return "unknown-peer"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "invalid"
	}
}

// Error is a radio subsystem failure tagged with its kind.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("radio: %s", e.Kind)
	}
	return fmt.Sprintf("radio: %s: %s", e.Kind, e.Reason)
}

func ErrInactive() error {
	return &Error{Kind: KindInactive, Reason: "radio not active"}
}

func ErrUnknownPeer(peer PeerAddress) error {
	return &Error{Kind: KindUnknownPeer, Reason: fmt.Sprintf("peer %s not registered", peer)}
}

func ErrTransient(reason string) error {
	return &Error{Kind: KindTransient, Reason: reason}
}

func ErrFatal(reason string) error {
	return &Error{Kind: KindFatal, Reason: reason}
}

func ErrFatalf(format string, args ...interface{}) error {
	return &Error{Kind: KindFatal, Reason: fmt.Sprintf(format, args...)}
}

// KindOf classifies any error for repair/retry decisions. Errors that did
// not originate in the radio subsystem classify as fatal.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindFatal
}

// IsFatal reports whether err is non-recoverable.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}
