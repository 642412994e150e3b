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

// Package dpagg implements the core differentially private aggregators:
// Count, BoundedSumFloat64, and BoundedMeanFloat64. Each is a single-owner,
// single-threaded, single-shot accumulator: it ingests a stream of
// contributions, then transitions exactly once into either a noised result
// or a serialized summary, never both, never twice.
package dpagg

import (
	"errors"
	"fmt"
)

// aggregationState tracks where an aggregator is in its lifecycle. The only
// legal transitions are defaultState -> resultReturned, defaultState ->
// serialized, and defaultState -> merged (a summary that was merged into
// another aggregator, recorded on the summary's own aggregator so it isn't
// silently reused in a way that would look like it never moved).
type aggregationState int

const (
	defaultState aggregationState = iota
	resultReturned
	serialized
	merged
)

func (s aggregationState) String() string {
	switch s {
	case defaultState:
		return "Default"
	case resultReturned:
		return "ResultReturned"
	case serialized:
		return "Serialized"
	case merged:
		return "Merged"
	default:
		return "Unknown"
	}
}

// Sentinel errors for the distinct failure kinds from the aggregator
// lifecycle. Wrapped errors returned by exported methods satisfy
// errors.Is against these so callers can branch on kind without string
// matching.
var (
	// ErrInvalidParameter is returned by constructors when a privacy
	// parameter, contribution bound, or value bound is invalid.
	ErrInvalidParameter = errors.New("dpagg: invalid parameter")
	// ErrAggregatorFinalized is returned when ingestion, merge, or a result
	// is attempted after the aggregator already produced a noised result or
	// a summary, and when serialization is attempted after a noised result
	// or a merge. Re-serializing an already serialized aggregator is allowed.
	ErrAggregatorFinalized = errors.New("dpagg: aggregator already finalized")
	// ErrResultNotYetComputed is returned when a confidence interval is
	// requested before Result has been called.
	ErrResultNotYetComputed = errors.New("dpagg: result not yet computed")
	// ErrIncompatibleMerge is returned when two aggregators' configurations
	// don't match closely enough to combine their partial aggregates.
	ErrIncompatibleMerge = errors.New("dpagg: incompatible merge parameters")
)

func invalidParameterf(label, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", label, ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func finalizedErrorf(label string, state aggregationState) error {
	return fmt.Errorf("%s: %w (state=%s)", label, ErrAggregatorFinalized, state)
}

func resultNotComputedErrorf(label string) error {
	return fmt.Errorf("%s: %w", label, ErrResultNotYetComputed)
}

func incompatibleMergeErrorf(label, field string, got, want interface{}) error {
	return fmt.Errorf("%s: %w: %s differs (got %v, want %v)", label, ErrIncompatibleMerge, field, got, want)
}

// checkState returns an error unless state is defaultState, used at the top
// of every ingestion/merge/finalization operation to enforce the one-shot
// lifecycle.
func checkState(label string, state aggregationState) error {
	if state != defaultState {
		return finalizedErrorf(label, state)
	}
	return nil
}

// checkSerializable returns an error if state is resultReturned or merged.
// Unlike checkState, it tolerates an aggregator that has already been
// serialized: GobEncode is idempotent and re-encoding the same partial
// aggregate is harmless, whereas encoding after a noised result was already
// returned (or after the aggregate was consumed by a merge) would silently
// leak a second view of data the caller already finalized.
func checkSerializable(label string, state aggregationState) error {
	if state == resultReturned || state == merged {
		return finalizedErrorf(label, state)
	}
	return nil
}

// clamp projects x into [lower, upper].
func clamp(x, lower, upper float64) float64 {
	if x < lower {
		return lower
	}
	if x > upper {
		return upper
	}
	return x
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
