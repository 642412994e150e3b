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

// CountParams specifies the parameters associated with a Count aggregation.
type CountParams struct {
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
}

// CountPerKey partitions pcol's records by Partition, differentially
// privately counts the contribution-bounded records in each partition, and
// returns one noised count per partition key.
func CountPerKey(pcol PrivatePCollection, params CountParams) (map[string]int64, error) {
	epsilon, delta, err := pcol.privacySpec.consumeBudget(params.Epsilon, params.Delta)
	if err != nil {
		return nil, fmt.Errorf("pbeam.CountPerKey: couldn't consume budget: %w", err)
	}

	var noiseKind noise.Kind
	if params.NoiseKind == nil {
		noiseKind = noise.LaplaceNoise
		log.V(2).Infof("pbeam.CountPerKey: no NoiseKind specified, using Laplace noise by default")
	} else {
		noiseKind = params.NoiseKind.toNoiseKind()
	}
	if err := checkCountParams(params, epsilon, delta, noiseKind); err != nil {
		return nil, err
	}
	log.V(1).Infof("pbeam.CountPerKey: consuming epsilon=%f delta=%f", epsilon, delta)

	bounded := boundContributions(pcol.records, params.MaxPartitionsContributed, params.MaxContributionsPerPartition)
	byPartition := groupByPartition(bounded)

	type partitionResult struct {
		partition string
		count     int64
		err       error
	}
	results := make(chan partitionResult, len(byPartition))
	for partition, records := range byPartition {
		go func(partition string, records []Record) {
			counter, err := dpagg.NewCount(&dpagg.CountOptions{
				Epsilon:                      epsilon,
				Delta:                        delta,
				MaxPartitionsContributed:     params.MaxPartitionsContributed,
				MaxContributionsPerPartition: params.MaxContributionsPerPartition,
				Noise:                        noiseFromKind(noiseKind),
			})
			if err != nil {
				results <- partitionResult{partition: partition, err: err}
				return
			}
			if err := counter.IncrementBy(int64(len(records))); err != nil {
				results <- partitionResult{partition: partition, err: err}
				return
			}
			count, err := counter.Result()
			results <- partitionResult{partition: partition, count: count, err: err}
		}(partition, records)
	}

	out := make(map[string]int64, len(byPartition))
	for range byPartition {
		res := <-results
		if res.err != nil {
			return nil, fmt.Errorf("pbeam.CountPerKey: partition %q: %w", res.partition, res.err)
		}
		// Noised counts can go negative; there is no partition-selection
		// thresholding here, so clamp to zero rather than drop the partition.
		if res.count < 0 {
			res.count = 0
		}
		out[res.partition] = res.count
	}
	return out, nil
}

func checkCountParams(params CountParams, epsilon, delta float64, noiseKind noise.Kind) error {
	if err := checks.CheckEpsilon("pbeam.CountPerKey", epsilon); err != nil {
		return err
	}
	var err error
	if noiseKind == noise.LaplaceNoise {
		err = checks.CheckNoDelta("pbeam.CountPerKey", delta)
	} else {
		err = checks.CheckDeltaStrict("pbeam.CountPerKey", delta)
	}
	if err != nil {
		return err
	}
	if err := checks.CheckMaxPartitionsContributed("pbeam.CountPerKey", params.MaxPartitionsContributed); err != nil {
		return err
	}
	return checks.CheckMaxContributionsPerPartition("pbeam.CountPerKey", params.MaxContributionsPerPartition)
}

func groupByPartition(records []Record) map[string][]Record {
	byPartition := make(map[string][]Record)
	for _, r := range records {
		byPartition[r.Partition] = append(byPartition[r.Partition], r)
	}
	return byPartition
}
