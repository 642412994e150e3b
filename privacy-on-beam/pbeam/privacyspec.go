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

// Package pbeam is the pipeline layer over dpagg: it partitions a stream of
// per-identifier contributions by key, enforces cross-partition and
// per-partition contribution bounds, and runs one dpagg aggregator per
// partition to produce a differentially private per-key result. It mirrors
// the upstream Apache Beam-based Count transform's structure, but executes
// in-process, partition-by-partition, with a goroutine per partition
// instead of a distributed Beam pipeline.
package pbeam

import (
	"fmt"
	"sync"
)

// PrivacySpec meters the total (epsilon, delta) privacy budget available to
// every aggregation performed against a PrivatePCollection built from it.
// Each aggregation calls consumeBudget once; the spec tracks what remains
// so a caller cannot accidentally spend more budget than they declared
// up front.
type PrivacySpec struct {
	mu          sync.Mutex
	epsilon     float64
	delta       float64
	epsilonLeft float64
	deltaLeft   float64
}

// NewPrivacySpec returns a PrivacySpec with epsilon, delta as its total
// budget.
func NewPrivacySpec(epsilon, delta float64) *PrivacySpec {
	return &PrivacySpec{
		epsilon:     epsilon,
		delta:       delta,
		epsilonLeft: epsilon,
		deltaLeft:   delta,
	}
}

// consumeBudget allocates epsilon, delta for a single aggregation. If both
// are zero, the aggregation consumes the entire budget remaining on the
// spec, following the upstream "leave both 0 to spend the whole budget"
// contract.
func (spec *PrivacySpec) consumeBudget(epsilon, delta float64) (float64, float64, error) {
	spec.mu.Lock()
	defer spec.mu.Unlock()

	if epsilon == 0 && delta == 0 {
		epsilon, delta = spec.epsilonLeft, spec.deltaLeft
	}
	if epsilon <= 0 {
		return 0, 0, fmt.Errorf("pbeam: no epsilon budget remains to allocate (epsilon=%f)", epsilon)
	}
	const slack = 1e-9
	if epsilon > spec.epsilonLeft+slack {
		return 0, 0, fmt.Errorf("pbeam: requested epsilon %f exceeds remaining budget %f", epsilon, spec.epsilonLeft)
	}
	if delta > spec.deltaLeft+slack {
		return 0, 0, fmt.Errorf("pbeam: requested delta %f exceeds remaining budget %f", delta, spec.deltaLeft)
	}
	spec.epsilonLeft -= epsilon
	spec.deltaLeft -= delta
	return epsilon, delta, nil
}

// Record is one contribution from a single privacy identifier to a single
// partition.
type Record struct {
	PrivacyID string
	Partition string
	Value     float64
}

// PrivatePCollection is a collection of Records under a shared PrivacySpec:
// the in-process analogue of a Beam PCollection once it has been wrapped
// with privacy bookkeeping by NewPrivatePCollection.
type PrivatePCollection struct {
	privacySpec *PrivacySpec
	records     []Record
}

// NewPrivatePCollection associates records with spec, ready for CountPerKey
// or MeanPerKey.
func NewPrivatePCollection(spec *PrivacySpec, records []Record) PrivatePCollection {
	return PrivatePCollection{privacySpec: spec, records: records}
}
