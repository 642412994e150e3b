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

import (
	"fmt"

	log "github.com/golang/glog"

	"github.com/edric-shen/differential-privacy/checks"
	"github.com/edric-shen/differential-privacy/dpagg"
	"github.com/edric-shen/differential-privacy/noise"
)

// MeanParams specifies the parameters associated with a Mean aggregation.
// It mirrors CountParams's shape, generalized with the value bounds a
// bounded-mean aggregation needs.
type MeanParams struct {
	// Noise type (LaplaceNoise{} or GaussianNoise{}).
	//
	// Defaults to LaplaceNoise{}.
	NoiseKind NoiseKind
	// Differential privacy budget consumed by this aggregation. If both are
	// left 0, the entire remaining budget of the PrivacySpec is consumed.
	Epsilon, Delta float64
	// The maximum number of distinct partitions a privacy identifier may
	// contribute to. Identifiers contributing to more are truncated to a
	// random MaxPartitionsContributed of them.
	//
	// Required.
	MaxPartitionsContributed int64
	// The maximum number of records a privacy identifier may contribute to a
	// single partition. Excess records are dropped at random.
	//
	// Required.
	MaxContributionsPerPartition int64
	// Lower and upper bounds each contribution is clamped into before it
	// folds into the per-partition mean.
	//
	// Required.
	MinValue, MaxValue float64
}

// MeanPerKey partitions pcol's records by Partition, differentially
// privately averages the contribution-bounded, clamped records in each
// partition, and returns one noised mean per partition key.
func MeanPerKey(pcol PrivatePCollection, params MeanParams) (map[string]float64, error) {
	epsilon, delta, err := pcol.privacySpec.consumeBudget(params.Epsilon, params.Delta)
	if err != nil {
		return nil, fmt.Errorf("pbeam.MeanPerKey: couldn't consume budget: %w", err)
	}

	var noiseKind noise.Kind
	if params.NoiseKind == nil {
		noiseKind = noise.LaplaceNoise
		log.V(2).Infof("pbeam.MeanPerKey: no NoiseKind specified, using Laplace noise by default")
	} else {
		noiseKind = params.NoiseKind.toNoiseKind()
	}
	if err := checkMeanParams(params, epsilon, delta, noiseKind); err != nil {
		return nil, err
	}
	log.V(1).Infof("pbeam.MeanPerKey: consuming epsilon=%f delta=%f", epsilon, delta)

	bounded := boundContributions(pcol.records, params.MaxPartitionsContributed, params.MaxContributionsPerPartition)
	byPartition := groupByPartition(bounded)

	type partitionResult struct {
		partition string
		mean      float64
		err       error
	}
	results := make(chan partitionResult, len(byPartition))
	for partition, records := range byPartition {
		go func(partition string, records []Record) {
			meanAgg, err := dpagg.NewBoundedMeanFloat64(&dpagg.BoundedMeanFloat64Options{
				Epsilon:                      epsilon,
				Delta:                        delta,
				Lower:                        params.MinValue,
				Upper:                        params.MaxValue,
				MaxPartitionsContributed:     params.MaxPartitionsContributed,
				MaxContributionsPerPartition: params.MaxContributionsPerPartition,
				Noise:                        noiseFromKind(noiseKind),
			})
			if err != nil {
				results <- partitionResult{partition: partition, err: err}
				return
			}
			for _, r := range records {
				if err := meanAgg.Add(r.Value); err != nil {
					results <- partitionResult{partition: partition, err: err}
					return
				}
			}
			mean, err := meanAgg.Result()
			results <- partitionResult{partition: partition, mean: mean, err: err}
		}(partition, records)
	}

	out := make(map[string]float64, len(byPartition))
	for range byPartition {
		res := <-results
		if res.err != nil {
			return nil, fmt.Errorf("pbeam.MeanPerKey: partition %q: %w", res.partition, res.err)
		}
		out[res.partition] = res.mean
	}
	return out, nil
}

func checkMeanParams(params MeanParams, epsilon, delta float64, noiseKind noise.Kind) error {
	if err := checks.CheckEpsilon("pbeam.MeanPerKey", epsilon); err != nil {
		return err
	}
	var err error
	if noiseKind == noise.LaplaceNoise {
		err = checks.CheckNoDelta("pbeam.MeanPerKey", delta)
	} else {
		err = checks.CheckDeltaStrict("pbeam.MeanPerKey", delta)
	}
	if err != nil {
		return err
	}
	if err := checks.CheckMaxPartitionsContributed("pbeam.MeanPerKey", params.MaxPartitionsContributed); err != nil {
		return err
	}
	if err := checks.CheckMaxContributionsPerPartition("pbeam.MeanPerKey", params.MaxContributionsPerPartition); err != nil {
		return err
	}
	return checks.CheckBoundsFloat64("pbeam.MeanPerKey", params.MinValue, params.MaxValue)
}
