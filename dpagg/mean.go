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

// BoundedMeanFloat64Options configures a BoundedMeanFloat64 aggregator.
type BoundedMeanFloat64Options struct {
	Epsilon                      float64
	Delta                        float64
	Lower, Upper                 float64
	MaxPartitionsContributed     int64
	MaxContributionsPerPartition int64
	// Noise defaults to noise.Laplace() if left unset.
	Noise noise.Noise
}

// BoundedMeanFloat64 is a single-owner, single-shot differentially private
// estimator of the arithmetic mean of a stream of clamped contributions. It
// reduces the mean query to two independently noised releases — a
// midpoint-normalized sum and a count — each spending half the privacy
// budget, and composes them (with post-hoc clamping) into a single noised,
// bounded mean.
type BoundedMeanFloat64 struct {
	lower, upper float64
	midPoint     float64
	state        aggregationState

	Count         Count
	NormalizedSum BoundedSumFloat64

	noisedNormalizedSum float64
	noisedCount         int64
	meanResult          float64
}

// NewBoundedMeanFloat64 validates opt and returns a fresh, OPEN
// BoundedMeanFloat64 aggregator.
func NewBoundedMeanFloat64(opt *BoundedMeanFloat64Options) (*BoundedMeanFloat64, error) {
	const label = "dpagg.NewBoundedMeanFloat64"
	if opt == nil {
		return nil, invalidParameterf(label, "options must not be nil")
	}
	if err := checks.CheckEpsilon(label, opt.Epsilon); err != nil {
		return nil, invalidParameterf(label, "%v", err)
	}
	if err := checks.CheckDelta(label, opt.Delta); err != nil {
		return nil, invalidParameterf(label, "%v", err)
	}
	if err := checks.CheckBoundsFloat64(label, opt.Lower, opt.Upper); err != nil {
		return nil, invalidParameterf(label, "%v", err)
	}
	maxPartitionsContributed := opt.MaxPartitionsContributed
	if maxPartitionsContributed == 0 {
		maxPartitionsContributed = 1
	}
	if err := checks.CheckMaxPartitionsContributed(label, maxPartitionsContributed); err != nil {
		return nil, invalidParameterf(label, "%v", err)
	}
	if err := checks.CheckMaxContributionsPerPartition(label, opt.MaxContributionsPerPartition); err != nil {
		return nil, invalidParameterf(label, "%v", err)
	}

	midPoint := (opt.Lower + opt.Upper) / 2

	count, err := NewCount(&CountOptions{
		Epsilon:                      opt.Epsilon * 0.5,
		Delta:                        opt.Delta * 0.5,
		MaxPartitionsContributed:     maxPartitionsContributed,
		MaxContributionsPerPartition: opt.MaxContributionsPerPartition,
		Noise:                        opt.Noise,
	})
	if err != nil {
		return nil, err
	}
	normalizedSum, err := NewBoundedSumFloat64(&BoundedSumFloat64Options{
		Epsilon:                      opt.Epsilon * 0.5,
		Delta:                        opt.Delta * 0.5,
		Lower:                        opt.Lower - midPoint,
		Upper:                        opt.Upper - midPoint,
		MaxPartitionsContributed:     maxPartitionsContributed,
		MaxContributionsPerPartition: opt.MaxContributionsPerPartition,
		Noise:                        opt.Noise,
	})
	if err != nil {
		return nil, err
	}

	return &BoundedMeanFloat64{
		lower:         opt.Lower,
		upper:         opt.Upper,
		midPoint:      midPoint,
		state:         defaultState,
		Count:         *count,
		NormalizedSum: *normalizedSum,
	}, nil
}

// Add clamps x into [lower, upper], folds it into the running
// midpoint-normalized sum, and increments the running count. NaN values are
// silently dropped. Precondition: the aggregator is OPEN.
func (bm *BoundedMeanFloat64) Add(x float64) error {
	if err := checkState("dpagg.BoundedMeanFloat64.Add", bm.state); err != nil {
		return err
	}
	if math.IsNaN(x) {
		return nil
	}
	if err := bm.NormalizedSum.Add(x - bm.midPoint); err != nil {
		return err
	}
	return bm.Count.IncrementBy(1)
}

// AddBatch calls Add for every entry in xs, stopping at the first error.
func (bm *BoundedMeanFloat64) AddBatch(xs []float64) error {
	for _, x := range xs {
		if err := bm.Add(x); err != nil {
			return err
		}
	}
	return nil
}

// Result is a single-shot OPEN -> RESULT_RETURNED transition. It noises the
// normalized sum and the count (each spending epsilon/2, delta/2), and
// returns their ratio plus the midpoint, clamped into [lower, upper]. A
// non-positive noised count (including the zero-contribution case) is
// treated as an undefined mean and returns the midpoint directly.
func (bm *BoundedMeanFloat64) Result() (float64, error) {
	if err := checkState("dpagg.BoundedMeanFloat64.Result", bm.state); err != nil {
		return 0, err
	}
	noisedSum, err := bm.NormalizedSum.Result()
	if err != nil {
		return 0, err
	}
	noisedCount, err := bm.Count.Result()
	if err != nil {
		return 0, err
	}
	bm.noisedNormalizedSum = noisedSum
	bm.noisedCount = noisedCount

	var mean float64
	if noisedCount <= 0 {
		mean = bm.midPoint
	} else {
		mean = noisedSum/float64(maxInt64(noisedCount, 1)) + bm.midPoint
	}
	mean = clamp(mean, bm.lower, bm.upper)

	bm.meanResult = mean
	bm.state = resultReturned
	return mean, nil
}

// ComputeConfidenceInterval returns a confidence interval around the noised
// mean at level 1-alpha. alphaSum optionally steers how much of alpha is
// allocated to the sum component; the count component receives the rest via
// a conservative union-bound split. If alphaSum is omitted, alpha/2 is used.
// Precondition: Result has been called.
func (bm *BoundedMeanFloat64) ComputeConfidenceInterval(alpha float64, alphaSum ...float64) (noise.ConfidenceInterval, error) {
	const label = "dpagg.BoundedMeanFloat64.ComputeConfidenceInterval"
	if err := checks.CheckAlpha(label, alpha); err != nil {
		return noise.ConfidenceInterval{}, invalidParameterf(label, "%v", err)
	}
	if bm.state != resultReturned {
		return noise.ConfidenceInterval{}, resultNotComputedErrorf(label)
	}

	as := alpha / 2
	if len(alphaSum) > 0 {
		as = alphaSum[0]
	}
	if err := checks.CheckAlpha(label, as); err != nil {
		return noise.ConfidenceInterval{}, invalidParameterf(label, "AlphaSum: %v", err)
	}
	if as >= alpha {
		return noise.ConfidenceInterval{}, invalidParameterf(label, "AlphaSum must be strictly less than Alpha, got AlphaSum=%f, Alpha=%f", as, alpha)
	}
	ac := (alpha - as) / (1 - as)

	sumCI, err := bm.NormalizedSum.ComputeConfidenceInterval(as)
	if err != nil {
		return noise.ConfidenceInterval{}, err
	}
	countCI, err := bm.Count.ComputeConfidenceInterval(ac)
	if err != nil {
		return noise.ConfidenceInterval{}, err
	}

	sL, sU := sumCI.LowerBound, sumCI.UpperBound
	// The count's true value is always at least 1 once a mean is being
	// reported, so the count-interval bounds used to divide by are clamped
	// away from zero (and below).
	cL := math.Max(countCI.LowerBound, 1)
	cU := math.Max(countCI.UpperBound, 1)

	var upper float64
	if sU >= 0 {
		upper = sU / cL
	} else {
		upper = sU / cU
	}
	upper += bm.midPoint

	var lower float64
	if sL >= 0 {
		lower = sL / cU
	} else {
		lower = sL / cL
	}
	lower += bm.midPoint

	lower = clamp(lower, bm.lower, bm.upper)
	upper = clamp(upper, bm.lower, bm.upper)
	if lower > upper {
		lower, upper = upper, lower
	}
	return noise.ConfidenceInterval{LowerBound: lower, UpperBound: upper}, nil
}

// checkMergeBoundedMeanFloat64 returns an error unless bm2's summary can be
// merged into bm1: both must be OPEN and their configuration fingerprints
// (epsilon, delta, bounds, contribution limits, noise mechanism) must
// match exactly.
func checkMergeBoundedMeanFloat64(bm1, bm2 *BoundedMeanFloat64) error {
	const label = "dpagg.BoundedMeanFloat64.Merge"
	if err := checkState(label, bm1.state); err != nil {
		return err
	}
	if bm2.state != defaultState {
		return finalizedErrorf(label, bm2.state)
	}
	if bm1.lower != bm2.lower {
		return incompatibleMergeErrorf(label, "Lower", bm2.lower, bm1.lower)
	}
	if bm1.upper != bm2.upper {
		return incompatibleMergeErrorf(label, "Upper", bm2.upper, bm1.upper)
	}
	if bm1.Count.epsilon != bm2.Count.epsilon {
		return incompatibleMergeErrorf(label, "Epsilon", bm2.Count.epsilon*2, bm1.Count.epsilon*2)
	}
	if bm1.Count.delta != bm2.Count.delta {
		return incompatibleMergeErrorf(label, "Delta", bm2.Count.delta*2, bm1.Count.delta*2)
	}
	if bm1.Count.l0Sensitivity != bm2.Count.l0Sensitivity {
		return incompatibleMergeErrorf(label, "MaxPartitionsContributed", bm2.Count.l0Sensitivity, bm1.Count.l0Sensitivity)
	}
	if bm1.Count.lInfSensitivity != bm2.Count.lInfSensitivity {
		return incompatibleMergeErrorf(label, "MaxContributionsPerPartition", bm2.Count.lInfSensitivity, bm1.Count.lInfSensitivity)
	}
	if bm1.Count.noiseKind != bm2.Count.noiseKind {
		return incompatibleMergeErrorf(label, "noise mechanism", bm2.Count.noiseKind, bm1.Count.noiseKind)
	}
	return nil
}

// bmEquallyInitializedFloat64 reports whether bm1 and bm2 share bounds,
// midpoint, state, and the epsilon of both sub-aggregators. Delta,
// sensitivities, noise mechanism and the running aggregates are not compared.
// Used by tests; exported-free (lowercase) like the upstream helper it is
// grounded on.
func bmEquallyInitializedFloat64(bm1, bm2 *BoundedMeanFloat64) bool {
	return bm1.lower == bm2.lower &&
		bm1.upper == bm2.upper &&
		bm1.midPoint == bm2.midPoint &&
		bm1.state == bm2.state &&
		bm1.Count.epsilon == bm2.Count.epsilon &&
		bm1.NormalizedSum.epsilon == bm2.NormalizedSum.epsilon
}

// Merge adds other's running normalized sum and count into bm and marks
// other as consumed. bm must be OPEN; other's configuration fingerprint
// must match bm's exactly.
func (bm *BoundedMeanFloat64) Merge(other *BoundedMeanFloat64) error {
	if err := checkMergeBoundedMeanFloat64(bm, other); err != nil {
		return err
	}
	bm.NormalizedSum.sum += other.NormalizedSum.sum
	bm.Count.count += other.Count.count
	other.state = merged
	return nil
}

// boundedMeanFloat64Summary is the gob wire form of a BoundedMeanFloat64: the
// two partial aggregates plus enough configuration to check merge
// compatibility field-by-field.
type boundedMeanFloat64Summary struct {
	NormalizedSum                float64
	Count                        int64
	Lower, Upper                 float64
	Epsilon                      float64
	Delta                        float64
	MaxPartitionsContributed     int64
	MaxContributionsPerPartition int64
	NoiseKind                    noise.Kind
}

// GobEncode serializes bm and transitions it OPEN -> SERIALIZED.
func (bm *BoundedMeanFloat64) GobEncode() ([]byte, error) {
	if err := checkSerializable("dpagg.BoundedMeanFloat64.GobEncode", bm.state); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(boundedMeanFloat64Summary{
		NormalizedSum:                bm.NormalizedSum.sum,
		Count:                        bm.Count.count,
		Lower:                        bm.lower,
		Upper:                        bm.upper,
		Epsilon:                      bm.Count.epsilon * 2,
		Delta:                        bm.Count.delta * 2,
		MaxPartitionsContributed:     bm.Count.l0Sensitivity,
		MaxContributionsPerPartition: bm.Count.lInfSensitivity,
		NoiseKind:                    bm.Count.noiseKind,
	}); err != nil {
		return nil, err
	}
	bm.state = serialized
	return buf.Bytes(), nil
}

// GobDecode restores bm from bytes produced by GobEncode. The restored
// aggregator is OPEN, ready to be merged or to have more entries ingested
// before its own Result/GobEncode.
func (bm *BoundedMeanFloat64) GobDecode(data []byte) error {
	var s boundedMeanFloat64Summary
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	bm.lower = s.Lower
	bm.upper = s.Upper
	bm.midPoint = (s.Lower + s.Upper) / 2
	bm.state = defaultState

	var n noise.Noise
	switch s.NoiseKind {
	case noise.LaplaceNoise:
		n = noise.Laplace()
	case noise.GaussianNoise:
		n = noise.Gaussian()
	}

	bm.Count = Count{
		epsilon:         s.Epsilon * 0.5,
		delta:           s.Delta * 0.5,
		l0Sensitivity:   s.MaxPartitionsContributed,
		lInfSensitivity: s.MaxContributionsPerPartition,
		Noise:           n,
		noiseKind:       s.NoiseKind,
		count:           s.Count,
		state:           defaultState,
	}
	bm.NormalizedSum = BoundedSumFloat64{
		epsilon:         s.Epsilon * 0.5,
		delta:           s.Delta * 0.5,
		l0Sensitivity:   s.MaxPartitionsContributed,
		lInfSensitivity: float64(s.MaxContributionsPerPartition) * math.Max(math.Abs(s.Lower-bm.midPoint), math.Abs(s.Upper-bm.midPoint)),
		lower:           s.Lower - bm.midPoint,
		upper:           s.Upper - bm.midPoint,
		Noise:           n,
		noiseKind:       s.NoiseKind,
		sum:             s.NormalizedSum,
		state:           defaultState,
	}
	return nil
}
