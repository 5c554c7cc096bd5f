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

// Package prng holds the seeded random generators used by the link layer,
// one per concern, so that simulations and tests are reproducible from a
// single root seed.
package prng

import (
	"math/rand"
	"time"
)

var backoffJitterGenerator *rand.Rand
var lossRandGenerator *rand.Rand
var payloadRandGenerator *rand.Rand

func init() {
	Init(0)
}

// Init initializes the prng package, either with a fixed PRNG seed (rootSeed != 0) or a 'random' time-based PRNG
// seed (if rootSeed == 0).
func Init(rootSeed int64) {
	if rootSeed == 0 {
		rootSeed = time.Now().UnixNano()
	}

	backoffJitterGenerator = rand.New(rand.NewSource(rootSeed + 1))
	lossRandGenerator = rand.New(rand.NewSource(rootSeed + 2))
	payloadRandGenerator = rand.New(rand.NewSource(rootSeed + 3))
}

// BackoffJitter generates a random additional delay in [0, max) used to
// de-synchronize transmit retries.
func BackoffJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(backoffJitterGenerator.Int63n(int64(max)))
}

// UnitRandom generates a new random unit [0, 1) float, which can be used as a random probability.
func UnitRandom() float64 {
	return lossRandGenerator.Float64()
}

// RandomBytes generates n random payload bytes.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = payloadRandGenerator.Read(b)
	return b
}
