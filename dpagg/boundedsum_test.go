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
	"math"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/edric-shen/differential-privacy/noise"
)

func TestNewBoundedSumFloat64(t *testing.T) {
	for _, tc := range []struct {
		desc string
		opt  *BoundedSumFloat64Options
		want *BoundedSumFloat64
	}{
		{"MaxPartitionsContributed is not set",
			&BoundedSumFloat64Options{
				Epsilon:                      ln3,
				Delta:                        tenten,
				Lower:                        -1,
				Upper:                        5,
				Noise:                        noNoise{},
				MaxContributionsPerPartition: 2,
			},
			&BoundedSumFloat64{
				epsilon:         ln3,
				delta:           tenten,
				l0Sensitivity:   1,
				lInfSensitivity: 10,
				lower:           -1,
				upper:           5,
				Noise:           noNoise{},
				noiseKind:       noise.Unrecognised,
				sum:             0,
				state:           defaultState,
			}},
	} {
		bs, err := NewBoundedSumFloat64(tc.opt)
		if err != nil {
			t.Fatalf("Couldn't initialize sum: %v", err)
		}
		if !reflect.DeepEqual(bs, tc.want) {
			t.Errorf("NewBoundedSumFloat64: when %s got %+v, want %+v", tc.desc, bs, tc.want)
		}
	}
}

func TestNewBoundedSumFloat64RejectsBadParameters(t *testing.T) {
	for _, tc := range []struct {
		desc string
		opt  *BoundedSumFloat64Options
	}{
		{"lower >= upper", &BoundedSumFloat64Options{Epsilon: ln3, Lower: 5, Upper: 1, MaxContributionsPerPartition: 1}},
		{"non-finite bound", &BoundedSumFloat64Options{Epsilon: ln3, Lower: math.Inf(-1), Upper: 1, MaxContributionsPerPartition: 1}},
		{"zero epsilon", &BoundedSumFloat64Options{Epsilon: 0, Lower: -1, Upper: 1, MaxContributionsPerPartition: 1}},
	} {
		if _, err := NewBoundedSumFloat64(tc.opt); err == nil {
			t.Errorf("NewBoundedSumFloat64: when %s got no error, want error", tc.desc)
		}
	}
}

func TestBoundedSumFloat64AddClamps(t *testing.T) {
	bs, err := NewBoundedSumFloat64(&BoundedSumFloat64Options{Epsilon: ln3, Lower: -1, Upper: 5, MaxContributionsPerPartition: 1, Noise: noNoise{}})
	if err != nil {
		t.Fatalf("Couldn't initialize sum: %v", err)
	}
	bs.Add(3.5)
	bs.Add(8.3)  // clamped to 5
	bs.Add(-7.5) // clamped to -1
	got, err := bs.Result()
	if err != nil {
		t.Fatalf("Couldn't compute dp result: %v", err)
	}
	want := 3.5 + 5 - 1
	if !ApproxEqual(got, want) {
		t.Errorf("Result: got %f, want %f", got, want)
	}
}

func TestBoundedSumFloat64AddIgnoresNaN(t *testing.T) {
	bs, err := NewBoundedSumFloat64(&BoundedSumFloat64Options{Epsilon: ln3, Lower: -1, Upper: 5, MaxContributionsPerPartition: 1, Noise: noNoise{}})
	if err != nil {
		t.Fatalf("Couldn't initialize sum: %v", err)
	}
	bs.Add(1)
	bs.Add(math.NaN())
	bs.Add(2)
	got, err := bs.Result()
	if err != nil {
		t.Fatalf("Couldn't compute dp result: %v", err)
	}
	if !ApproxEqual(got, 3) {
		t.Errorf("Result: got %f, want %f", got, 3.0)
	}
}

func TestMergeBoundedSumFloat64(t *testing.T) {
	bs1, err := NewBoundedSumFloat64(&BoundedSumFloat64Options{Epsilon: ln3, Lower: -1, Upper: 5, MaxContributionsPerPartition: 1, Noise: noNoise{}})
	if err != nil {
		t.Fatalf("Couldn't initialize bs1: %v", err)
	}
	bs2, err := NewBoundedSumFloat64(&BoundedSumFloat64Options{Epsilon: ln3, Lower: -1, Upper: 5, MaxContributionsPerPartition: 1, Noise: noNoise{}})
	if err != nil {
		t.Fatalf("Couldn't initialize bs2: %v", err)
	}
	bs1.Add(2)
	bs2.Add(3)
	if err := bs1.Merge(bs2); err != nil {
		t.Fatalf("Couldn't merge bs1 and bs2: %v", err)
	}
	got, err := bs1.Result()
	if err != nil {
		t.Fatalf("Couldn't compute dp result: %v", err)
	}
	if !ApproxEqual(got, 5) {
		t.Errorf("Merge: got %f, want %f", got, 5.0)
	}
	if bs2.state != merged {
		t.Errorf("Merge: for bs2.state got %v, want Merged", bs2.state)
	}
}

func TestCheckMergeCompatibleBoundedSumFloat64StateChecks(t *testing.T) {
	for _, tc := range []struct {
		state1  aggregationState
		state2  aggregationState
		wantErr bool
	}{
		{defaultState, defaultState, false},
		{resultReturned, defaultState, true},
		{defaultState, resultReturned, true},
		{defaultState, serialized, true},
		{defaultState, merged, true},
	} {
		bs1, err := NewBoundedSumFloat64(&BoundedSumFloat64Options{Epsilon: ln3, Lower: -1, Upper: 5, MaxContributionsPerPartition: 1, Noise: noNoise{}})
		if err != nil {
			t.Fatalf("Couldn't initialize bs1: %v", err)
		}
		bs2, err := NewBoundedSumFloat64(&BoundedSumFloat64Options{Epsilon: ln3, Lower: -1, Upper: 5, MaxContributionsPerPartition: 1, Noise: noNoise{}})
		if err != nil {
			t.Fatalf("Couldn't initialize bs2: %v", err)
		}
		bs1.state = tc.state1
		bs2.state = tc.state2
		if err := checkMergeCompatibleBoundedSumFloat64(bs1, bs2); (err != nil) != tc.wantErr {
			t.Errorf("checkMergeCompatibleBoundedSumFloat64: when states [%v, %v] got %v, wantErr %t", tc.state1, tc.state2, err, tc.wantErr)
		}
	}
}

func TestBoundedSumFloat64Serialization(t *testing.T) {
	for _, tc := range []struct {
		desc string
		opts *BoundedSumFloat64Options
	}{
		{"default options", &BoundedSumFloat64Options{Epsilon: ln3, Lower: 0, Upper: 1, MaxContributionsPerPartition: 1}},
		{"non-default options", &BoundedSumFloat64Options{
			Lower:                        -100,
			Upper:                        555,
			Epsilon:                      ln3,
			Delta:                        1e-5,
			MaxPartitionsContributed:     5,
			MaxContributionsPerPartition: 6,
			Noise:                        noise.Gaussian(),
		}},
	} {
		bs, err := NewBoundedSumFloat64(tc.opts)
		if err != nil {
			t.Fatalf("Couldn't initialize bs: %v", err)
		}
		bs.Add(12.5)
		bsUnchanged, err := NewBoundedSumFloat64(tc.opts)
		if err != nil {
			t.Fatalf("Couldn't initialize bsUnchanged: %v", err)
		}
		bsUnchanged.Add(12.5)

		bytes, err := encode(bs)
		if err != nil {
			t.Fatalf("encode(BoundedSumFloat64) error: %v", err)
		}
		bsUnmarshalled := new(BoundedSumFloat64)
		if err := decode(bsUnmarshalled, bytes); err != nil {
			t.Fatalf("decode(BoundedSumFloat64) error: %v", err)
		}
		if !cmp.Equal(bsUnchanged, bsUnmarshalled, cmp.Comparer(compareBoundedSumFloat64)) {
			t.Errorf("decode(encode(_)): when %s got %+v, want %+v", tc.desc, bsUnmarshalled, bsUnchanged)
		}
		if bs.state != serialized {
			t.Errorf("BoundedSumFloat64 should have its state set to Serialized, got %v, want Serialized", bs.state)
		}
	}
}

func TestBoundedSumFloat64SerializationStateChecks(t *testing.T) {
	for _, tc := range []struct {
		state   aggregationState
		wantErr bool
	}{
		{defaultState, false},
		{merged, true},
		{serialized, false},
		{resultReturned, true},
	} {
		bs, err := NewBoundedSumFloat64(&BoundedSumFloat64Options{Epsilon: ln3, Lower: -1, Upper: 5, MaxContributionsPerPartition: 1, Noise: noNoise{}})
		if err != nil {
			t.Fatalf("Couldn't initialize bs: %v", err)
		}
		bs.state = tc.state
		if _, err := bs.GobEncode(); (err != nil) != tc.wantErr {
			t.Errorf("GobEncode: when state %v got %v, wantErr %t", tc.state, err, tc.wantErr)
		}
	}
}
