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

package dpagg

import (
	"encoding/gob"
	"math"

	"github.com/edric-shen/differential-privacy/noise"
)

// Shared constants and helpers used across count_test.go, boundedsum_test.go
// and mean_test.go.
const (
	ln3     = 1.0986122886681098 // math.Log(3)
	tenten  = 1e-10
	tenfive = 1e-5
)

// ApproxEqual reports whether got and want are within a small tolerance of
// each other, to absorb floating point rounding in noiseless test scenarios.
func ApproxEqual(got, want float64) bool {
	const tolerance = 1e-9
	return math.Abs(got-want) <= tolerance
}

// noNoise is a Noise implementation that returns its input untouched, used
// to test the arithmetic of the aggregators independently of any actual
// noise mechanism.
type noNoise struct{}

func (noNoise) MechanismType() noise.Kind {
	return noise.Unrecognised
}

func (noNoise) AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error) {
	return x, nil
}

func (noNoise) AddNoiseInt64(x, l0Sensitivity, lInfSensitivity int64, epsilon, delta float64) (int64, error) {
	return x, nil
}

func (noNoise) ConfidenceIntervalFloat64(noisedX float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta, alpha float64) (noise.ConfidenceInterval, error) {
	return noise.ConfidenceInterval{LowerBound: noisedX, UpperBound: noisedX}, nil
}

func (noNoise) ConfidenceIntervalInt64(noisedX int64, l0Sensitivity, lInfSensitivity int64, epsilon, delta, alpha float64) (noise.ConfidenceInterval, error) {
	return noise.ConfidenceInterval{LowerBound: float64(noisedX), UpperBound: float64(noisedX)}, nil
}

// fixedCINoise is a Noise implementation that passes AddNoise* through
// unchanged and returns preset confidence intervals, used to test confidence
// interval composition independently of any real noise mechanism.
type fixedCINoise struct {
	sumCI, countCI noise.ConfidenceInterval
}

func (fixedCINoise) MechanismType() noise.Kind {
	return noise.Unrecognised
}

func (fixedCINoise) AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error) {
	return x, nil
}

func (fixedCINoise) AddNoiseInt64(x, l0Sensitivity, lInfSensitivity int64, epsilon, delta float64) (int64, error) {
	return x, nil
}

func (n fixedCINoise) ConfidenceIntervalFloat64(noisedX float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta, alpha float64) (noise.ConfidenceInterval, error) {
	return n.sumCI, nil
}

func (n fixedCINoise) ConfidenceIntervalInt64(noisedX int64, l0Sensitivity, lInfSensitivity int64, epsilon, delta, alpha float64) (noise.ConfidenceInterval, error) {
	return n.countCI, nil
}

// encode returns the gob encoding of v via its own GobEncode method.
func encode(v gob.GobEncoder) ([]byte, error) {
	return v.GobEncode()
}

// decode populates v from bytes produced by encode, via its own GobDecode
// method.
func decode(v gob.GobDecoder, bytes []byte) error {
	return v.GobDecode(bytes)
}

func compareCount(c1, c2 *Count) bool {
	return c1.epsilon == c2.epsilon &&
		c1.delta == c2.delta &&
		c1.l0Sensitivity == c2.l0Sensitivity &&
		c1.lInfSensitivity == c2.lInfSensitivity &&
		c1.noiseKind == c2.noiseKind &&
		c1.count == c2.count &&
		c1.state == c2.state
}

func compareBoundedSumFloat64(bs1, bs2 *BoundedSumFloat64) bool {
	return bs1.epsilon == bs2.epsilon &&
		bs1.delta == bs2.delta &&
		bs1.l0Sensitivity == bs2.l0Sensitivity &&
		bs1.lInfSensitivity == bs2.lInfSensitivity &&
		bs1.lower == bs2.lower &&
		bs1.upper == bs2.upper &&
		bs1.noiseKind == bs2.noiseKind &&
		bs1.sum == bs2.sum &&
		bs1.state == bs2.state
}
