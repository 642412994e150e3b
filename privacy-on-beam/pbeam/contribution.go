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
	crand "github.com/edric-shen/differential-privacy/rand"
)

// boundContributions enforces maxPartitionsContributed (the L0 bound: how
// many distinct partitions one privacy identifier may influence) and
// maxContributionsPerPartition (the L_inf bound: how many records one
// privacy identifier may contribute to a single partition), dropping
// excess records at random. This plays the role of the upstream
// boundContributions Beam transform, run here over an in-memory slice
// instead of a distributed GroupByKey.
func boundContributions(records []Record, maxPartitionsContributed, maxContributionsPerPartition int64) []Record {
	byID := make(map[string][]Record)
	var ids []string
	for _, r := range records {
		if _, ok := byID[r.PrivacyID]; !ok {
			ids = append(ids, r.PrivacyID)
		}
		byID[r.PrivacyID] = append(byID[r.PrivacyID], r)
	}

	var out []Record
	for _, id := range ids {
		idRecords := byID[id]

		byPartition := make(map[string][]Record)
		var partitions []string
		for _, r := range idRecords {
			if _, ok := byPartition[r.Partition]; !ok {
				partitions = append(partitions, r.Partition)
			}
			byPartition[r.Partition] = append(byPartition[r.Partition], r)
		}

		shuffleStrings(partitions)
		if maxPartitionsContributed > 0 && int64(len(partitions)) > maxPartitionsContributed {
			partitions = partitions[:maxPartitionsContributed]
		}
		for _, p := range partitions {
			prs := byPartition[p]
			shuffleRecords(prs)
			if maxContributionsPerPartition > 0 && int64(len(prs)) > maxContributionsPerPartition {
				prs = prs[:maxContributionsPerPartition]
			}
			out = append(out, prs...)
		}
	}
	return out
}

// shuffleStrings performs an in-place Fisher-Yates shuffle so that, when a
// contribution bound truncates a slice, the surviving entries are a random
// sample rather than whichever happened to appear first.
func shuffleStrings(s []string) {
	for i := len(s) - 1; i > 0; i-- {
		j := int(crand.Uniform() * float64(i+1))
		if j > i {
			j = i
		}
		s[i], s[j] = s[j], s[i]
	}
}

func shuffleRecords(s []Record) {
	for i := len(s) - 1; i > 0; i-- {
		j := int(crand.Uniform() * float64(i+1))
		if j > i {
			j = i
		}
		s[i], s[j] = s[j], s[i]
	}
}
