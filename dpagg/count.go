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

	"github.com/edric-shen/differential-privacy/checks"
	"github.com/edric-shen/differential-privacy/noise"
)

// CountOptions configures a Count aggregator.
type CountOptions struct {
	Epsilon                      float64
	Delta                        float64
	MaxPartitionsContributed     int64
	MaxContributionsPerPartition int64
	// Noise defaults to noise.Laplace() if left unset.
	Noise noise.Noise
}

// Count is a single-owner, single-shot differentially private counter: it
// tallies ingested contributions and, on Result, releases a noised count
// scaled to the configured sensitivity. It also serves as one half of
// BoundedMeanFloat64's partial aggregate (the other half is a
// BoundedSumFloat64 over the midpoint-normalized values).
type Count struct {
	epsilon         float64
	delta           float64
	l0Sensitivity   int64
	lInfSensitivity int64
	Noise           noise.Noise
	noiseKind       noise.Kind

	count int64
	state aggregationState

	noisedCount int64
}

// NewCount validates opt and returns a fresh, OPEN Count aggregator.
func NewCount(opt *CountOptions) (*Count, error) {
	if opt == nil {
		return nil, invalidParameterf("dpagg.NewCount", "options must not be nil")
	}
	if err := checks.CheckEpsilon("dpagg.NewCount", opt.Epsilon); err != nil {
		return nil, invalidParameterf("dpagg.NewCount", "%v", err)
	}
	n := opt.Noise
	if n == nil {
		n = noise.Laplace()
	}
	switch n.MechanismType() {
	case noise.GaussianNoise:
		if err := checks.CheckDeltaStrict("dpagg.NewCount", opt.Delta); err != nil {
			return nil, invalidParameterf("dpagg.NewCount", "%v", err)
		}
	case noise.LaplaceNoise:
		if err := checks.CheckNoDelta("dpagg.NewCount", opt.Delta); err != nil {
			return nil, invalidParameterf("dpagg.NewCount", "%v", err)
		}
	default:
		// An unrecognised (e.g. test-double) mechanism decides its own
		// delta requirements; dpagg does not second-guess it.
	}
	maxPartitionsContributed := opt.MaxPartitionsContributed
	if maxPartitionsContributed == 0 {
		maxPartitionsContributed = 1
	}
	if err := checks.CheckMaxPartitionsContributed("dpagg.NewCount", maxPartitionsContributed); err != nil {
		return nil, invalidParameterf("dpagg.NewCount", "%v", err)
	}
	if err := checks.CheckMaxContributionsPerPartition("dpagg.NewCount", opt.MaxContributionsPerPartition); err != nil {
		return nil, invalidParameterf("dpagg.NewCount", "%v", err)
	}

	noiseKind := n.MechanismType()

	return &Count{
		epsilon:         opt.Epsilon,
		delta:           opt.Delta,
		l0Sensitivity:   maxPartitionsContributed,
		lInfSensitivity: opt.MaxContributionsPerPartition,
		Noise:           n,
		noiseKind:       noiseKind,
		count:           0,
		state:           defaultState,
	}, nil
}

// Increment adds one to the running count.
func (c *Count) Increment() error {
	return c.IncrementBy(1)
}

// IncrementBy adds n to the running count. Precondition: the aggregator is
// OPEN (not yet finalized).
func (c *Count) IncrementBy(n int64) error {
	if err := checkState("dpagg.Count.IncrementBy", c.state); err != nil {
		return err
	}
	c.count += n
	return nil
}

// Result is a single-shot OPEN -> RESULT_RETURNED transition that returns a
// noised count.
func (c *Count) Result() (int64, error) {
	if err := checkState("dpagg.Count.Result", c.state); err != nil {
		return 0, err
	}
	noised, err := c.Noise.AddNoiseInt64(c.count, c.l0Sensitivity, c.lInfSensitivity, c.epsilon, c.delta)
	if err != nil {
		return 0, err
	}
	c.noisedCount = noised
	c.state = resultReturned
	return noised, nil
}

// ComputeConfidenceInterval returns a confidence interval around the
// noised count at the given alpha. Precondition: Result has been called.
func (c *Count) ComputeConfidenceInterval(alpha float64) (noise.ConfidenceInterval, error) {
	if err := checks.CheckAlpha("dpagg.Count.ComputeConfidenceInterval", alpha); err != nil {
		return noise.ConfidenceInterval{}, invalidParameterf("dpagg.Count.ComputeConfidenceInterval", "%v", err)
	}
	if c.state != resultReturned {
		return noise.ConfidenceInterval{}, resultNotComputedErrorf("dpagg.Count.ComputeConfidenceInterval")
	}
	return c.Noise.ConfidenceIntervalInt64(c.noisedCount, c.l0Sensitivity, c.lInfSensitivity, c.epsilon, c.delta, alpha)
}

// checkMergeCompatibleCount returns an error unless other can be merged into c:
// both must be OPEN and must share the same privacy and sensitivity
// configuration.
func checkMergeCompatibleCount(c, other *Count) error {
	if err := checkState("dpagg.Count.Merge", c.state); err != nil {
		return err
	}
	if other.state != defaultState {
		return finalizedErrorf("dpagg.Count.Merge", other.state)
	}
	if c.epsilon != other.epsilon {
		return incompatibleMergeErrorf("dpagg.Count.Merge", "epsilon", other.epsilon, c.epsilon)
	}
	if c.delta != other.delta {
		return incompatibleMergeErrorf("dpagg.Count.Merge", "delta", other.delta, c.delta)
	}
	if c.l0Sensitivity != other.l0Sensitivity {
		return incompatibleMergeErrorf("dpagg.Count.Merge", "MaxPartitionsContributed", other.l0Sensitivity, c.l0Sensitivity)
	}
	if c.lInfSensitivity != other.lInfSensitivity {
		return incompatibleMergeErrorf("dpagg.Count.Merge", "MaxContributionsPerPartition", other.lInfSensitivity, c.lInfSensitivity)
	}
	if c.noiseKind != other.noiseKind {
		return incompatibleMergeErrorf("dpagg.Count.Merge", "noise mechanism", other.noiseKind, c.noiseKind)
	}
	return nil
}

// Merge adds other's running count into c and marks other as consumed. c
// must be OPEN; other must be OPEN (a fresh, unfinalized summary-derived
// aggregator) and share c's configuration.
func (c *Count) Merge(other *Count) error {
	if err := checkMergeCompatibleCount(c, other); err != nil {
		return err
	}
	c.count += other.count
	other.state = merged
	return nil
}

// countSummary is the gob wire form of a Count.
type countSummary struct {
	Count                        int64
	Epsilon                      float64
	Delta                        float64
	MaxPartitionsContributed     int64
	MaxContributionsPerPartition int64
	NoiseKind                    noise.Kind
}

// GobEncode serializes c and transitions it OPEN -> SERIALIZED.
func (c *Count) GobEncode() ([]byte, error) {
	if err := checkSerializable("dpagg.Count.GobEncode", c.state); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(countSummary{
		Count:                        c.count,
		Epsilon:                      c.epsilon,
		Delta:                        c.delta,
		MaxPartitionsContributed:     c.l0Sensitivity,
		MaxContributionsPerPartition: c.lInfSensitivity,
		NoiseKind:                    c.noiseKind,
	}); err != nil {
		return nil, err
	}
	c.state = serialized
	return buf.Bytes(), nil
}

// GobDecode restores c from bytes produced by GobEncode.
func (c *Count) GobDecode(data []byte) error {
	var s countSummary
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	c.count = s.Count
	c.epsilon = s.Epsilon
	c.delta = s.Delta
	c.l0Sensitivity = s.MaxPartitionsContributed
	c.lInfSensitivity = s.MaxContributionsPerPartition
	c.noiseKind = s.NoiseKind
	c.state = defaultState
	return nil
}
