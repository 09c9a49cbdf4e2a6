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

import "sort"

// intervalIndex is the set of byte offsets whose contents in the backing
// buffer are defined, represented as two equal-length sorted slices S, E
// where each pair (S[i], E[i]) denotes a closed interval [S[i], E[i]].
//
// INVARIANT: len(left) == len(right)
// INVARIANT: left[i] <= right[i] for all i
// INVARIANT: right[i]+1 < left[i+1] for all i -- disjoint and non-adjacent
// INVARIANT: 0 <= left[0] (when non-empty)
type intervalIndex struct {
	left  []int64
	right []int64
}

// gapRange is a byte range, inclusive on both ends, not yet present in the
// backing buffer.
type gapRange struct {
	start, end int64
}

// plannedFetch is the result of planning a fetch for [start, end]: the gaps
// that must be downloaded, and the single merged interval that replaces
// whatever the index held over [left, right) once every gap has been
// downloaded successfully.
type plannedFetch struct {
	gaps             []gapRange
	left, right      int // overlapping block in the index, before the merge
	mergedS, mergedE int64
}

// floorRight returns the smallest i such that right[i] >= x, or len(right)
// if there is none.
func (idx *intervalIndex) floorRight(x int64) int {
	return sort.Search(len(idx.right), func(i int) bool {
		return idx.right[i] >= x
	})
}

// ceilLeft returns the smallest i such that left[i] > y, or len(left) if
// there is none.
func (idx *intervalIndex) ceilLeft(y int64) int {
	return sort.Search(len(idx.left), func(i int) bool {
		return idx.left[i] > y
	})
}

// contains reports whether [start, end] is entirely covered by a single
// existing interval (the common case on a re-read).
func (idx *intervalIndex) contains(start, end int64) bool {
	left := idx.floorRight(start)
	if left >= len(idx.left) {
		return false
	}

	return idx.left[left] <= start && idx.right[left] >= end
}

// plan computes the gaps in [start, end] not yet covered by the index, and
// the interval that the index will hold over the touched block once those
// gaps are filled. It does not mutate the index; call applyMerge with the
// result after every gap has been successfully downloaded.
func (idx *intervalIndex) plan(start, end int64) (pf plannedFetch) {
	// Searching from start-1 and end+1 also takes in intervals that merely
	// touch [start, end], so they are merged instead of left adjacent.
	left := idx.floorRight(start - 1)
	right := idx.ceilLeft(end + 1)

	pf.left, pf.right = left, right

	lslice := idx.left[left:right]
	rslice := idx.right[left:right]

	i := start
	if len(lslice) > 0 && lslice[0] < i {
		i = lslice[0]
	}
	pf.mergedS = i

	mergedE := end
	if len(rslice) > 0 && rslice[len(rslice)-1] > mergedE {
		mergedE = rslice[len(rslice)-1]
	}
	pf.mergedE = mergedE

	for j := range lslice {
		s, e := lslice[j], rslice[j]
		if s > i {
			pf.gaps = append(pf.gaps, gapRange{i, s - 1})
		}
		i = e + 1
	}

	if i <= mergedE {
		pf.gaps = append(pf.gaps, gapRange{i, mergedE})
	}

	return
}

// applyMerge replaces the overlapping block [pf.left, pf.right) with the
// single interval [pf.mergedS, pf.mergedE], restoring the canonical
// disjoint-non-adjacent form. Must only be called after every gap in
// pf.gaps has been downloaded successfully.
func (idx *intervalIndex) applyMerge(pf plannedFetch) {
	newLeft := make([]int64, 0, len(idx.left)-(pf.right-pf.left)+1)
	newLeft = append(newLeft, idx.left[:pf.left]...)
	newLeft = append(newLeft, pf.mergedS)
	newLeft = append(newLeft, idx.left[pf.right:]...)

	newRight := make([]int64, 0, len(idx.right)-(pf.right-pf.left)+1)
	newRight = append(newRight, idx.right[:pf.left]...)
	newRight = append(newRight, pf.mergedE)
	newRight = append(newRight, idx.right[pf.right:]...)

	idx.left = newLeft
	idx.right = newRight
}

// checkInvariants panics if the canonical form of the index has been
// violated. Intended for use from tests and debug builds, in the style of
// the teacher's CheckInvariants methods.
func (idx *intervalIndex) checkInvariants() {
	if len(idx.left) != len(idx.right) {
		panic("lazyzip: interval index left/right length mismatch")
	}

	for i := range idx.left {
		if idx.left[i] > idx.right[i] {
			panic("lazyzip: interval with left > right")
		}

		if i > 0 && idx.right[i-1]+1 >= idx.left[i] {
			panic("lazyzip: adjacent or overlapping intervals were not merged")
		}
	}
}
