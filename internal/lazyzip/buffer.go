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
	"io"
	"os"
)

// DefaultMemoryThreshold is the largest resource length that is kept as an
// in-memory backing buffer rather than spilled to a temp file. Most Python
// wheels are well under this.
const DefaultMemoryThreshold = 32 << 20 // 32 MiB

// backingBuffer is the Backing Buffer of the spec: an addressable byte
// region of fixed length whose contents are undefined until written.
// Logical positions are in [0, Len()).
//
// A single Stream owns exactly one backingBuffer for its whole lifetime; no
// cross-instance sharing or leasing is required, so unlike the teacher's
// lease.FileLeaser there is no LRU eviction here.
type backingBuffer interface {
	// ReadAt fills p with bytes starting at off. Never-written ranges yield
	// undefined bytes, not an error; callers must consult the interval index
	// before trusting the result.
	ReadAt(p []byte, off int64) (n int, err error)

	// WriteAt stores p starting at off.
	WriteAt(p []byte, off int64) (n int, err error)

	// Len returns the fixed length of the buffer.
	Len() int64

	// Close releases any resources (temp file descriptors). Further calls
	// to ReadAt/WriteAt are errors.
	Close() error
}

// newBackingBuffer picks an in-memory or temp-file-backed buffer for a
// resource of the given length, per threshold.
func newBackingBuffer(length int64, threshold int64) (backingBuffer, error) {
	if length <= threshold {
		return newMemoryBuffer(length), nil
	}

	return newFileBuffer(length)
}

////////////////////////////////////////////////////////////////////////
// In-memory buffer
////////////////////////////////////////////////////////////////////////

type memoryBuffer struct {
	data   []byte
	closed bool
}

func newMemoryBuffer(length int64) *memoryBuffer {
	return &memoryBuffer{data: make([]byte, length)}
}

func (b *memoryBuffer) ReadAt(p []byte, off int64) (n int, err error) {
	if b.closed {
		err = ErrClosed
		return
	}

	if off >= int64(len(b.data)) {
		err = io.EOF
		return
	}

	n = copy(p, b.data[off:])
	if n < len(p) {
		err = io.EOF
	}

	return
}

func (b *memoryBuffer) WriteAt(p []byte, off int64) (n int, err error) {
	if b.closed {
		err = ErrClosed
		return
	}

	n = copy(b.data[off:], p)
	return
}

func (b *memoryBuffer) Len() int64 {
	return int64(len(b.data))
}

func (b *memoryBuffer) Close() error {
	b.closed = true
	b.data = nil
	return nil
}

////////////////////////////////////////////////////////////////////////
// Temp-file-backed buffer
////////////////////////////////////////////////////////////////////////

// fileBuffer backs the buffer with a temp file truncated to the resource's
// length, the same approach as the original Python implementation's
// tempfile.NamedTemporaryFile + truncate.
type fileBuffer struct {
	f      *os.File
	length int64
}

func newFileBuffer(length int64) (fb *fileBuffer, err error) {
	f, err := os.CreateTemp("", "lazyzip-*")
	if err != nil {
		return
	}

	if err = f.Truncate(length); err != nil {
		f.Close()
		os.Remove(f.Name())
		return
	}

	fb = &fileBuffer{f: f, length: length}
	return
}

func (b *fileBuffer) ReadAt(p []byte, off int64) (n int, err error) {
	return b.f.ReadAt(p, off)
}

func (b *fileBuffer) WriteAt(p []byte, off int64) (n int, err error) {
	return b.f.WriteAt(p, off)
}

func (b *fileBuffer) Len() int64 {
	return b.length
}

func (b *fileBuffer) Close() (err error) {
	name := b.f.Name()
	err = b.f.Close()
	os.Remove(name)
	return
}
