//
// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package rand provides the cryptographically-secure random primitives the
// noise mechanisms and test scaffolding in this module build on: a uniform
// float64 in [0,1) and a uniform random sign.
package rand

import (
	"crypto/rand"
	"encoding/binary"
)

// Uniform returns a uniform random float64 in [0, 1), drawn from a
// cryptographically secure source. It panics if the source cannot be read,
// which only happens if the OS entropy source is broken.
func Uniform() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("rand: failed to read entropy: " + err.Error())
	}
	// 53 bits of entropy match float64's mantissa precision.
	const mantissaBits = 53
	u := binary.BigEndian.Uint64(buf[:]) >> (64 - mantissaBits)
	return float64(u) / float64(uint64(1)<<mantissaBits)
}

// Sign returns +1.0 or -1.0 with equal probability.
func Sign() float64 {
	if Uniform() < 0.5 {
		return -1.0
	}
	return 1.0
}
