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

package pbeam

import "github.com/edric-shen/differential-privacy/noise"

// NoiseKind is specified by callers on a *Params struct to select the noise
// mechanism an aggregation should use, without pulling the noise package's
// mechanism constructors into every call site.
type NoiseKind interface {
	toNoiseKind() noise.Kind
}

// LaplaceNoise selects the Laplace (pure-epsilon) mechanism.
type LaplaceNoise struct{}

func (LaplaceNoise) toNoiseKind() noise.Kind { return noise.LaplaceNoise }

// GaussianNoise selects the Gaussian (epsilon, delta) mechanism.
type GaussianNoise struct{}

func (GaussianNoise) toNoiseKind() noise.Kind { return noise.GaussianNoise }

func noiseFromKind(k noise.Kind) noise.Noise {
	if k == noise.GaussianNoise {
		return noise.Gaussian()
	}
	return noise.Laplace()
}
