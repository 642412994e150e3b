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
	"bytes"
	"encoding/gob"
	"math"

	"github.com/edric-shen/differential-privacy/checks"
	"github.com/edric-shen/differential-privacy/noise"
)

// BoundedSumFloat64Options configures a BoundedSumFloat64 aggregator. Lower
// and Upper bound every contribution before it is added to the running sum;
// BoundedMeanFloat64 uses this to accumulate a midpoint-normalized sum whose
// bounds are symmetric around zero.
type BoundedSumFloat64Options struct {
	Epsilon                      float64
	Delta                        float64
	Lower, Upper                 float64
	MaxPartitionsContributed     int64
	MaxContributionsPerPartition int64
	Noise                        noise.Noise
}

// BoundedSumFloat64 is a single-owner, single-shot differentially private
// running sum over clamped contributions.
type BoundedSumFloat64 struct {
	epsilon         float64
	delta           float64
	l0Sensitivity   int64
	lInfSensitivity float64
	lower, upper    float64
	Noise           noise.Noise
	noiseKind       noise.Kind

	sum   float64
	state aggregationState

	noisedSum float64
}

// NewBoundedSumFloat64 validates opt and returns a fresh, OPEN
// BoundedSumFloat64 aggregator.
func NewBoundedSumFloat64(opt *BoundedSumFloat64Options) (*BoundedSumFloat64, error) {
	if opt == nil {
		return nil, invalidParameterf("dpagg.NewBoundedSumFloat64", "options must not be nil")
	}
	if err := checks.CheckEpsilon("dpagg.NewBoundedSumFloat64", opt.Epsilon); err != nil {
		return nil, invalidParameterf("dpagg.NewBoundedSumFloat64", "%v", err)
	}
	if err := checks.CheckBoundsFloat64("dpagg.NewBoundedSumFloat64", opt.Lower, opt.Upper); err != nil {
		return nil, invalidParameterf("dpagg.NewBoundedSumFloat64", "%v", err)
	}
	n := opt.Noise
	if n == nil {
		n = noise.Laplace()
	}
	switch n.MechanismType() {
	case noise.GaussianNoise:
		if err := checks.CheckDeltaStrict("dpagg.NewBoundedSumFloat64", opt.Delta); err != nil {
			return nil, invalidParameterf("dpagg.NewBoundedSumFloat64", "%v", err)
		}
	case noise.LaplaceNoise:
		if err := checks.CheckNoDelta("dpagg.NewBoundedSumFloat64", opt.Delta); err != nil {
			return nil, invalidParameterf("dpagg.NewBoundedSumFloat64", "%v", err)
		}
	default:
		// An unrecognised (e.g. test-double) mechanism decides its own
		// delta requirements; dpagg does not second-guess it.
	}
	maxPartitionsContributed := opt.MaxPartitionsContributed
	if maxPartitionsContributed == 0 {
		maxPartitionsContributed = 1
	}
	if err := checks.CheckMaxPartitionsContributed("dpagg.NewBoundedSumFloat64", maxPartitionsContributed); err != nil {
		return nil, invalidParameterf("dpagg.NewBoundedSumFloat64", "%v", err)
	}
	if err := checks.CheckMaxContributionsPerPartition("dpagg.NewBoundedSumFloat64", opt.MaxContributionsPerPartition); err != nil {
		return nil, invalidParameterf("dpagg.NewBoundedSumFloat64", "%v", err)
	}

	noiseKind := n.MechanismType()

	lInfSensitivity := float64(opt.MaxContributionsPerPartition) * math.Max(math.Abs(opt.Lower), math.Abs(opt.Upper))

	return &BoundedSumFloat64{
		epsilon:         opt.Epsilon,
		delta:           opt.Delta,
		l0Sensitivity:   maxPartitionsContributed,
		lInfSensitivity: lInfSensitivity,
		lower:           opt.Lower,
		upper:           opt.Upper,
		Noise:           n,
		noiseKind:       noiseKind,
		sum:             0,
		state:           defaultState,
	}, nil
}

// Add clamps x into [lower, upper] and adds it to the running sum.
// Precondition: the aggregator is OPEN. NaN values are silently dropped.
func (bs *BoundedSumFloat64) Add(x float64) error {
	if err := checkState("dpagg.BoundedSumFloat64.Add", bs.state); err != nil {
		return err
	}
	if math.IsNaN(x) {
		return nil
	}
	bs.sum += clamp(x, bs.lower, bs.upper)
	return nil
}

// Result is a single-shot OPEN -> RESULT_RETURNED transition that returns
// the noised sum.
func (bs *BoundedSumFloat64) Result() (float64, error) {
	if err := checkState("dpagg.BoundedSumFloat64.Result", bs.state); err != nil {
		return 0, err
	}
	noised, err := bs.Noise.AddNoiseFloat64(bs.sum, bs.l0Sensitivity, bs.lInfSensitivity, bs.epsilon, bs.delta)
	if err != nil {
		return 0, err
	}
	bs.noisedSum = noised
	bs.state = resultReturned
	return noised, nil
}

// ComputeConfidenceInterval returns a confidence interval around the noised
// sum at the given alpha. Precondition: Result has been called.
func (bs *BoundedSumFloat64) ComputeConfidenceInterval(alpha float64) (noise.ConfidenceInterval, error) {
	if err := checks.CheckAlpha("dpagg.BoundedSumFloat64.ComputeConfidenceInterval", alpha); err != nil {
		return noise.ConfidenceInterval{}, invalidParameterf("dpagg.BoundedSumFloat64.ComputeConfidenceInterval", "%v", err)
	}
	if bs.state != resultReturned {
		return noise.ConfidenceInterval{}, resultNotComputedErrorf("dpagg.BoundedSumFloat64.ComputeConfidenceInterval")
	}
	return bs.Noise.ConfidenceIntervalFloat64(bs.noisedSum, bs.l0Sensitivity, bs.lInfSensitivity, bs.epsilon, bs.delta, alpha)
}

func checkMergeCompatibleBoundedSumFloat64(bs, other *BoundedSumFloat64) error {
	if err := checkState("dpagg.BoundedSumFloat64.Merge", bs.state); err != nil {
		return err
	}
	if other.state != defaultState {
		return finalizedErrorf("dpagg.BoundedSumFloat64.Merge", other.state)
	}
	if bs.epsilon != other.epsilon {
		return incompatibleMergeErrorf("dpagg.BoundedSumFloat64.Merge", "epsilon", other.epsilon, bs.epsilon)
	}
	if bs.delta != other.delta {
		return incompatibleMergeErrorf("dpagg.BoundedSumFloat64.Merge", "delta", other.delta, bs.delta)
	}
	if bs.lower != other.lower {
		return incompatibleMergeErrorf("dpagg.BoundedSumFloat64.Merge", "Lower", other.lower, bs.lower)
	}
	if bs.upper != other.upper {
		return incompatibleMergeErrorf("dpagg.BoundedSumFloat64.Merge", "Upper", other.upper, bs.upper)
	}
	if bs.l0Sensitivity != other.l0Sensitivity {
		return incompatibleMergeErrorf("dpagg.BoundedSumFloat64.Merge", "MaxPartitionsContributed", other.l0Sensitivity, bs.l0Sensitivity)
	}
	if bs.lInfSensitivity != other.lInfSensitivity {
		return incompatibleMergeErrorf("dpagg.BoundedSumFloat64.Merge", "MaxContributionsPerPartition", other.lInfSensitivity, bs.lInfSensitivity)
	}
	if bs.noiseKind != other.noiseKind {
		return incompatibleMergeErrorf("dpagg.BoundedSumFloat64.Merge", "noise mechanism", other.noiseKind, bs.noiseKind)
	}
	return nil
}

// Merge adds other's running sum into bs and marks other as consumed.
func (bs *BoundedSumFloat64) Merge(other *BoundedSumFloat64) error {
	if err := checkMergeCompatibleBoundedSumFloat64(bs, other); err != nil {
		return err
	}
	bs.sum += other.sum
	other.state = merged
	return nil
}

type boundedSumFloat64Summary struct {
	Sum                          float64
	Epsilon                      float64
	Delta                        float64
	Lower, Upper                 float64
	MaxPartitionsContributed     int64
	MaxContributionsPerPartition float64
	NoiseKind                    noise.Kind
}

// GobEncode serializes bs and transitions it OPEN -> SERIALIZED.
func (bs *BoundedSumFloat64) GobEncode() ([]byte, error) {
	if err := checkSerializable("dpagg.BoundedSumFloat64.GobEncode", bs.state); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(boundedSumFloat64Summary{
		Sum:                          bs.sum,
		Epsilon:                      bs.epsilon,
		Delta:                        bs.delta,
		Lower:                        bs.lower,
		Upper:                        bs.upper,
		MaxPartitionsContributed:     bs.l0Sensitivity,
		MaxContributionsPerPartition: bs.lInfSensitivity,
		NoiseKind:                    bs.noiseKind,
	}); err != nil {
		return nil, err
	}
	bs.state = serialized
	return buf.Bytes(), nil
}

// GobDecode restores bs from bytes produced by GobEncode.
func (bs *BoundedSumFloat64) GobDecode(data []byte) error {
	var s boundedSumFloat64Summary
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	bs.sum = s.Sum
	bs.epsilon = s.Epsilon
	bs.delta = s.Delta
	bs.lower = s.Lower
	bs.upper = s.Upper
	bs.l0Sensitivity = s.MaxPartitionsContributed
	bs.lInfSensitivity = s.MaxContributionsPerPartition
	bs.noiseKind = s.NoiseKind
	bs.state = defaultState
	return nil
}
