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

// Package checks provides shared parameter-validation helpers used by the
// aggregators in dpagg and the pipeline layer in pbeam. Every check returns
// an error naming the caller and the offending field, never a panic.
package checks

import (
	"fmt"
	"math"
)

// CheckEpsilon returns an error if epsilon is not a positive, finite number.
func CheckEpsilon(label string, epsilon float64) error {
	if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return fmt.Errorf("%s: Epsilon must be finite, got %f", label, epsilon)
	}
	if epsilon <= 0 {
		return fmt.Errorf("%s: Epsilon must be strictly positive, got %f", label, epsilon)
	}
	return nil
}

// CheckEpsilonStrict is an alias of CheckEpsilon kept for call sites that
// want to make explicit that no relaxed variant exists for this parameter.
func CheckEpsilonStrict(label string, epsilon float64) error {
	return CheckEpsilon(label, epsilon)
}

// CheckDelta returns an error if delta is set (non-zero) but not in (0,1).
// A zero delta is accepted: it signals "absent", which pure-epsilon
// mechanisms such as Laplace require and (epsilon, delta)-mechanisms such
// as Gaussian reject via CheckDeltaStrict.
func CheckDelta(label string, delta float64) error {
	if delta == 0 {
		return nil
	}
	return CheckDeltaStrict(label, delta)
}

// CheckDeltaStrict returns an error unless delta lies strictly in (0,1).
func CheckDeltaStrict(label string, delta float64) error {
	if math.IsNaN(delta) {
		return fmt.Errorf("%s: Delta must not be NaN", label)
	}
	if delta <= 0 || delta >= 1 {
		return fmt.Errorf("%s: Delta must be strictly between 0 and 1, got %f", label, delta)
	}
	return nil
}

// CheckNoDelta returns an error if delta is set, for mechanisms that must
// not receive one (pure-epsilon Laplace noise).
func CheckNoDelta(label string, delta float64) error {
	if delta != 0 {
		return fmt.Errorf("%s: Delta should not be set for this noise kind, got %f", label, delta)
	}
	return nil
}

// CheckL0Sensitivity returns an error unless maxPartitionsContributed is a
// positive integer.
func CheckL0Sensitivity(label string, maxPartitionsContributed int64) error {
	if maxPartitionsContributed <= 0 {
		return fmt.Errorf("%s: MaxPartitionsContributed must be strictly positive, got %d", label, maxPartitionsContributed)
	}
	return nil
}

// CheckMaxPartitionsContributed is an alias of CheckL0Sensitivity under the
// name used by aggregation call sites, keeping the sensitivity-level and
// parameter-level checks distinct by name even though they validate the
// same constraint.
func CheckMaxPartitionsContributed(label string, maxPartitionsContributed int64) error {
	return CheckL0Sensitivity(label, maxPartitionsContributed)
}

// CheckLInfSensitivity returns an error unless maxContributionsPerPartition
// is a positive integer.
func CheckLInfSensitivity(label string, maxContributionsPerPartition int64) error {
	if maxContributionsPerPartition <= 0 {
		return fmt.Errorf("%s: MaxContributionsPerPartition must be strictly positive, got %d", label, maxContributionsPerPartition)
	}
	return nil
}

// CheckMaxContributionsPerPartition is an alias of CheckLInfSensitivity.
func CheckMaxContributionsPerPartition(label string, maxContributionsPerPartition int64) error {
	return CheckLInfSensitivity(label, maxContributionsPerPartition)
}

// CheckBoundsFloat64 returns an error unless lower and upper are finite and
// lower < upper.
func CheckBoundsFloat64(label string, lower, upper float64) error {
	if math.IsNaN(lower) || math.IsInf(lower, 0) {
		return fmt.Errorf("%s: Lower bound must be finite, got %f", label, lower)
	}
	if math.IsNaN(upper) || math.IsInf(upper, 0) {
		return fmt.Errorf("%s: Upper bound must be finite, got %f", label, upper)
	}
	if lower >= upper {
		return fmt.Errorf("%s: Lower bound must be strictly less than upper bound, got Lower=%f, Upper=%f", label, lower, upper)
	}
	return nil
}

// CheckAlpha returns an error unless alpha lies strictly in (0,1).
func CheckAlpha(label string, alpha float64) error {
	if math.IsNaN(alpha) {
		return fmt.Errorf("%s: Alpha must not be NaN", label)
	}
	if alpha <= 0 || alpha >= 1 {
		return fmt.Errorf("%s: Alpha must be strictly between 0 and 1, got %f", label, alpha)
	}
	return nil
}
