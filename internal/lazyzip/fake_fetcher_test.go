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
	"archive/zip"
	"bytes"
	"context"
	"fmt"
)

// fakeFetcher is an in-memory fetcher for tests, standing in for an actual
// HTTP range server. It records every requested range and can be told to
// fail a specific range a fixed number of times before succeeding.
type fakeFetcher struct {
	data []byte

	calls      []gapRange
	failsLeft  map[gapRange]int
	fetchBytes int64
}

func newFakeFetcher(data []byte) *fakeFetcher {
	return &fakeFetcher{data: data, failsLeft: make(map[gapRange]int)}
}

func (f *fakeFetcher) Length(ctx context.Context) (int64, error) {
	return int64(len(f.data)), nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, start, end int64) ([]byte, error) {
	f.calls = append(f.calls, gapRange{start, end})

	key := gapRange{start, end}
	if n := f.failsLeft[key]; n > 0 {
		f.failsLeft[key] = n - 1
		return nil, fmt.Errorf("simulated range fetch failure for bytes=%d-%d", start, end)
	}

	f.fetchBytes += end - start + 1
	out := make([]byte, end-start+1)
	copy(out, f.data[start:end+1])
	return out, nil
}

// failNextFetch arranges for the next Fetch of exactly [start, end] to
// fail n times before succeeding.
func (f *fakeFetcher) failNextFetch(start, end int64, n int) {
	f.failsLeft[gapRange{start, end}] = n
}

// buildZip returns the bytes of a valid ZIP archive containing the given
// files, stored uncompressed so the archive is as large as its contents,
// with an optional trailing comment used to push the central
// directory record further from the end of the file (simulating a
// comment-bearing ZIP that defeats a one-chunk bootstrap guess).
func buildZip(files map[string][]byte, comment string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			panic(err)
		}
		if _, err := fw.Write(content); err != nil {
			panic(err)
		}
	}
	if comment != "" {
		if err := w.SetComment(comment); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
