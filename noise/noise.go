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

// Package noise defines the capability aggregators in dpagg depend on to
// turn a raw value into a differentially private one: adding noise scaled
// to a query's sensitivity, and deriving a confidence interval around a
// noised result. This package provides the concrete Laplace and Gaussian
// mechanisms; dpagg never depends on them directly, only on this
// interface, so other implementations (such as test doubles) can be used.
package noise

import "fmt"

// Kind identifies a noise mechanism, used to check that a merge combines
// aggregators built with the same mechanism.
type Kind int

const (
	// Unrecognised is the zero value, used for mechanisms that don't map to
	// one of the named kinds below (e.g. test doubles).
	Unrecognised Kind = iota
	// LaplaceNoise identifies the Laplace mechanism.
	LaplaceNoise
	// GaussianNoise identifies the Gaussian mechanism.
	GaussianNoise
)

func (k Kind) String() string {
	switch k {
	case LaplaceNoise:
		return "Laplace"
	case GaussianNoise:
		return "Gaussian"
	default:
		return "Unrecognised"
	}
}

// ConfidenceInterval is an interval expected to contain the true
// (non-noised) value with the confidence level the caller requested.
type ConfidenceInterval struct {
	LowerBound, UpperBound float64
}

// Noise is the capability a bounded aggregator consumes to privatize its
// raw partial aggregate and to report a confidence interval around it. Both
// the real-valued and integer-valued query paths are first-class: a
// BoundedMean uses the float64 path for its normalized sum and the int64
// path for its count.
type Noise interface {
	// AddNoiseFloat64 returns x perturbed by noise calibrated to the given
	// sensitivity and privacy parameters.
	AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error)
	// AddNoiseInt64 is the integer-valued counterpart of AddNoiseFloat64.
	AddNoiseInt64(x, l0Sensitivity, lInfSensitivity int64, epsilon, delta float64) (int64, error)
	// ConfidenceIntervalFloat64 returns an interval around noisedX expected
	// to contain the true value with probability at least 1-alpha.
	ConfidenceIntervalFloat64(noisedX float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta, alpha float64) (ConfidenceInterval, error)
	// ConfidenceIntervalInt64 is the integer-valued counterpart of
	// ConfidenceIntervalFloat64.
	ConfidenceIntervalInt64(noisedX int64, l0Sensitivity, lInfSensitivity int64, epsilon, delta, alpha float64) (ConfidenceInterval, error)
	// MechanismType reports which concrete mechanism this Noise is, so that
	// aggregators merging two partial states can check they used the same
	// one.
	MechanismType() Kind
}

func validateAddNoiseParams(l0Sensitivity int64, lInfSensitivity, epsilon, delta float64, requiresDelta bool) error {
	if l0Sensitivity <= 0 {
		return fmt.Errorf("noise: l0Sensitivity must be strictly positive, got %d", l0Sensitivity)
	}
	if lInfSensitivity <= 0 {
		return fmt.Errorf("noise: lInfSensitivity must be strictly positive, got %f", lInfSensitivity)
	}
	if epsilon <= 0 {
		return fmt.Errorf("noise: epsilon must be strictly positive, got %f", epsilon)
	}
	if requiresDelta && (delta <= 0 || delta >= 1) {
		return fmt.Errorf("noise: delta must be strictly between 0 and 1 for this mechanism, got %f", delta)
	}
	if !requiresDelta && delta != 0 {
		return fmt.Errorf("noise: delta must not be set for this mechanism, got %f", delta)
	}
	return nil
}
