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

type gaussian struct{}

// Gaussian returns a Noise implementing the Gaussian mechanism, an
// (epsilon, delta)-mechanism that requires a strictly positive delta.
func Gaussian() Noise {
	return gaussian{}
}

func (gaussian) MechanismType() Kind {
	return GaussianNoise
}

func gaussianSigma(l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) float64 {
	l2Sensitivity := math.Sqrt(float64(l0Sensitivity)) * lInfSensitivity
	return l2Sensitivity * math.Sqrt(2*math.Log(1.25/delta)) / epsilon
}

// sampleGaussian draws from N(0, sigma^2) via the Box-Muller transform.
func sampleGaussian(sigma float64) float64 {
	u1, u2 := crand.Uniform(), crand.Uniform()
	for u1 == 0 {
		u1 = crand.Uniform()
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return z * sigma
}

func (gaussian) AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error) {
	if err := validateAddNoiseParams(l0Sensitivity, lInfSensitivity, epsilon, delta, true); err != nil {
		return 0, err
	}
	sigma := gaussianSigma(l0Sensitivity, lInfSensitivity, epsilon, delta)
	return x + sampleGaussian(sigma), nil
}

func (gaussian) AddNoiseInt64(x, l0Sensitivity, lInfSensitivity int64, epsilon, delta float64) (int64, error) {
	if err := validateAddNoiseParams(l0Sensitivity, float64(lInfSensitivity), epsilon, delta, true); err != nil {
		return 0, err
	}
	sigma := gaussianSigma(l0Sensitivity, float64(lInfSensitivity), epsilon, delta)
	return x + int64(math.Round(sampleGaussian(sigma))), nil
}

// normalQuantile returns the value z such that Phi(z) = p, the inverse CDF
// of the standard normal distribution, via the stdlib error-function
// inverse.
func normalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

func (gaussian) ConfidenceIntervalFloat64(noisedX float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta, alpha float64) (ConfidenceInterval, error) {
	if err := validateAddNoiseParams(l0Sensitivity, lInfSensitivity, epsilon, delta, true); err != nil {
		return ConfidenceInterval{}, err
	}
	sigma := gaussianSigma(l0Sensitivity, lInfSensitivity, epsilon, delta)
	z := normalQuantile(1 - alpha/2)
	halfWidth := z * sigma
	return ConfidenceInterval{LowerBound: noisedX - halfWidth, UpperBound: noisedX + halfWidth}, nil
}

func (g gaussian) ConfidenceIntervalInt64(noisedX int64, l0Sensitivity, lInfSensitivity int64, epsilon, delta, alpha float64) (ConfidenceInterval, error) {
	return g.ConfidenceIntervalFloat64(float64(noisedX), l0Sensitivity, float64(lInfSensitivity), epsilon, delta, alpha)
}
