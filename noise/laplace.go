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

package noise

import (
	"math"

	crand "github.com/edric-shen/differential-privacy/rand"
)

type laplace struct{}

// Laplace returns a Noise implementing the Laplace mechanism, a pure-epsilon
// (delta-free) mechanism appropriate when the caller cannot tolerate any
// failure probability.
func Laplace() Noise {
	return laplace{}
}

func (laplace) MechanismType() Kind {
	return LaplaceNoise
}

func laplaceScale(l0Sensitivity int64, lInfSensitivity, epsilon float64) float64 {
	l1Sensitivity := float64(l0Sensitivity) * lInfSensitivity
	return l1Sensitivity / epsilon
}

// sampleLaplace draws from Laplace(0, b) via inverse-CDF sampling.
func sampleLaplace(b float64) float64 {
	u := crand.Uniform() - 0.5
	sign := 1.0
	if u < 0 {
		sign = -1.0
	}
	return -b * sign * math.Log(1-2*math.Abs(u))
}

func (laplace) AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error) {
	if err := validateAddNoiseParams(l0Sensitivity, lInfSensitivity, epsilon, delta, false); err != nil {
		return 0, err
	}
	b := laplaceScale(l0Sensitivity, lInfSensitivity, epsilon)
	return x + sampleLaplace(b), nil
}

func (laplace) AddNoiseInt64(x, l0Sensitivity, lInfSensitivity int64, epsilon, delta float64) (int64, error) {
	if err := validateAddNoiseParams(l0Sensitivity, float64(lInfSensitivity), epsilon, delta, false); err != nil {
		return 0, err
	}
	b := laplaceScale(l0Sensitivity, float64(lInfSensitivity), epsilon)
	return x + int64(math.Round(sampleLaplace(b))), nil
}

func (laplace) ConfidenceIntervalFloat64(noisedX float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta, alpha float64) (ConfidenceInterval, error) {
	if err := validateAddNoiseParams(l0Sensitivity, lInfSensitivity, epsilon, delta, false); err != nil {
		return ConfidenceInterval{}, err
	}
	b := laplaceScale(l0Sensitivity, lInfSensitivity, epsilon)
	halfWidth := b * math.Log(1/alpha)
	return ConfidenceInterval{LowerBound: noisedX - halfWidth, UpperBound: noisedX + halfWidth}, nil
}

func (l laplace) ConfidenceIntervalInt64(noisedX int64, l0Sensitivity, lInfSensitivity int64, epsilon, delta, alpha float64) (ConfidenceInterval, error) {
	return l.ConfidenceIntervalFloat64(float64(noisedX), l0Sensitivity, float64(lInfSensitivity), epsilon, delta, alpha)
}
