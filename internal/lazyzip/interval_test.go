// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lazyzip

import (
	"reflect"
	"testing"
)

// TestIntervalIndexPlanS3 is scenario S3 from the spec: with an index of
// [(0, 99), (500, 599)], planning a fetch of [50, 550] should yield a
// single gap of [100, 499] (not [50, 99] or [500, 550], both already
// cached) and a merged interval of [0, 599].
func TestIntervalIndexPlanS3(t *testing.T) {
	idx := intervalIndex{left: []int64{0, 500}, right: []int64{99, 599}}

	pf := idx.plan(50, 550)

	want := []gapRange{{100, 499}}
	if !reflect.DeepEqual(pf.gaps, want) {
		t.Fatalf("gaps = %v, want %v", pf.gaps, want)
	}

	if pf.mergedS != 0 || pf.mergedE != 599 {
		t.Fatalf("merged interval = [%d, %d], want [0, 599]", pf.mergedS, pf.mergedE)
	}

	idx.applyMerge(pf)
	if !reflect.DeepEqual(idx.left, []int64{0}) || !reflect.DeepEqual(idx.right, []int64{599}) {
		t.Fatalf("post-merge index = %v/%v, want [0]/[599]", idx.left, idx.right)
	}
}

// TestIntervalIndexDisjointGaps checks that planning a fetch entirely
// between two cached intervals with room to spare doesn't touch either of
// them and reports exactly the gap between.
func TestIntervalIndexDisjointGaps(t *testing.T) {
	idx := intervalIndex{left: []int64{0, 1000}, right: []int64{99, 1099}}

	pf := idx.plan(200, 300)

	want := []gapRange{{200, 300}}
	if !reflect.DeepEqual(pf.gaps, want) {
		t.Fatalf("gaps = %v, want %v", pf.gaps, want)
	}

	if pf.mergedS != 200 || pf.mergedE != 300 {
		t.Fatalf("merged interval = [%d, %d], want [200, 300]", pf.mergedS, pf.mergedE)
	}

	idx.applyMerge(pf)
	idx.checkInvariants()

	wantLeft := []int64{0, 200, 1000}
	wantRight := []int64{99, 300, 1099}
	if !reflect.DeepEqual(idx.left, wantLeft) || !reflect.DeepEqual(idx.right, wantRight) {
		t.Fatalf("post-merge index = %v/%v, want %v/%v", idx.left, idx.right, wantLeft, wantRight)
	}
}

// TestIntervalIndexIdempotentReread is invariant/property 4: reading the
// same range twice should produce no gaps, and therefore no fetch, the
// second time.
func TestIntervalIndexIdempotentReread(t *testing.T) {
	idx := intervalIndex{}

	pf := idx.plan(10, 20)
	if len(pf.gaps) != 1 {
		t.Fatalf("first plan: got %d gaps, want 1", len(pf.gaps))
	}
	idx.applyMerge(pf)

	pf2 := idx.plan(10, 20)
	if len(pf2.gaps) != 0 {
		t.Fatalf("second plan of the same range: got %d gaps, want 0", len(pf2.gaps))
	}
}

// TestIntervalIndexAdjacentMerge checks that touching-but-not-overlapping
// intervals (end of one immediately before the start of the next) are
// merged into a single interval, per the non-adjacency invariant.
func TestIntervalIndexAdjacentMerge(t *testing.T) {
	idx := intervalIndex{left: []int64{0}, right: []int64{99}}

	pf := idx.plan(100, 199)
	idx.applyMerge(pf)
	idx.checkInvariants()

	if !reflect.DeepEqual(idx.left, []int64{0}) || !reflect.DeepEqual(idx.right, []int64{199}) {
		t.Fatalf("post-merge index = %v/%v, want [0]/[199]", idx.left, idx.right)
	}
}

func TestIntervalIndexContains(t *testing.T) {
	idx := intervalIndex{left: []int64{0, 500}, right: []int64{99, 599}}

	if !idx.contains(10, 50) {
		t.Fatalf("expected [10, 50] to be contained in [0, 99]")
	}
	if idx.contains(90, 110) {
		t.Fatalf("did not expect [90, 110] to be reported contained (it straddles a gap)")
	}
	if idx.contains(600, 700) {
		t.Fatalf("did not expect an out-of-range query to be reported contained")
	}
}
