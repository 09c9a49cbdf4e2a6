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
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/thejcannon/pypkgmapper/internal/httprange"
)

// DefaultChunkSize is the minimum number of bytes fetched per HTTP range
// request, and the granularity the bootstrap extends its trailing-suffix
// guess by on each retry.
const DefaultChunkSize = 8192

// fetcher is the downward collaborator a Stream needs: something that can
// report a fixed length once and serve inclusive byte ranges of it. A
// httprange.Client satisfies this; tests substitute a fake.
type fetcher interface {
	Length(ctx context.Context) (int64, error)
	Fetch(ctx context.Context, start, end int64) ([]byte, error)
}

// Options configures a Stream. The zero value is not usable directly;
// construct with Open, which fills in defaults for unset fields.
type Options struct {
	// ChunkSize is the minimum number of bytes fetched per HTTP range
	// request. Defaults to DefaultChunkSize.
	ChunkSize int64

	// MemoryThreshold is the largest resource length kept as an in-memory
	// backing buffer rather than a temp file. Defaults to
	// DefaultMemoryThreshold.
	MemoryThreshold int64

	// HTTPClient is used for the HEAD and ranged GET requests. Defaults to
	// http.DefaultClient. It may be shared across multiple Streams.
	HTTPClient *http.Client
}

func (o *Options) withDefaults() Options {
	out := Options{ChunkSize: DefaultChunkSize, MemoryThreshold: DefaultMemoryThreshold}
	if o != nil {
		if o.ChunkSize > 0 {
			out.ChunkSize = o.ChunkSize
		}
		if o.MemoryThreshold > 0 {
			out.MemoryThreshold = o.MemoryThreshold
		}
		if o.HTTPClient != nil {
			out.HTTPClient = o.HTTPClient
		}
	}
	return out
}

// Stream is a Lazy Remote ZIP Stream: a seekable, read-only byte stream
// backed by an HTTP resource, that only downloads the byte ranges its
// caller (ordinarily archive/zip, via ReadAt) actually demands.
//
// A Stream is single-owner. Concurrent calls into the same instance from
// multiple goroutines are undefined.
type Stream struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	length    int64
	chunkSize int64

	/////////////////////////
	// Dependencies
	/////////////////////////

	ctx     context.Context
	fetcher fetcher

	/////////////////////////
	// Mutable state
	/////////////////////////

	buf    backingBuffer
	idx    intervalIndex
	cursor int64
	closed bool
}

var _ io.ReaderAt = (*Stream)(nil)
var _ io.ReadSeekCloser = (*Stream)(nil)

// Open constructs a Stream against url. It issues a HEAD request to learn
// the resource's length, then bootstraps by downloading and validating a
// trailing suffix of the resource until a ZIP central directory is found
// (see bootstrap).
//
// Open fails with ErrResourceUnavailable if the HEAD request fails or
// lacks a usable Content-Length, and with ErrNotAZip if the entire
// resource was fetched without a valid central directory turning up.
func Open(ctx context.Context, url string, opts *Options) (s *Stream, err error) {
	o := opts.withDefaults()
	return open(ctx, httprange.NewClient(url, o.HTTPClient), o)
}

// open is Open with the fetcher injected, for tests.
func open(ctx context.Context, f fetcher, o Options) (s *Stream, err error) {
	length, err := f.Length(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
		return
	}

	buf, err := newBackingBuffer(length, o.MemoryThreshold)
	if err != nil {
		err = fmt.Errorf("%w: allocating backing buffer: %v", ErrResourceUnavailable, err)
		return
	}

	s = &Stream{
		length:    length,
		chunkSize: o.ChunkSize,
		ctx:       ctx,
		fetcher:   f,
		buf:       buf,
	}

	if err = s.bootstrap(); err != nil {
		buf.Close()
		return nil, err
	}

	return s, nil
}

// Len returns the fixed byte length of the remote resource.
func (s *Stream) Len() int64 {
	return s.length
}

// Tell returns the current cursor position, in [0, Len()].
func (s *Stream) Tell() int64 {
	return s.cursor
}

// Seek implements io.Seeker. It never triggers a fetch; the cursor may be
// moved past the end of the resource, and reads from there yield io.EOF.
func (s *Stream) Seek(offset int64, whence int) (pos int64, err error) {
	if s.closed {
		err = ErrClosed
		return
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.cursor
	case io.SeekEnd:
		base = s.length
	default:
		err = fmt.Errorf("lazyzip: invalid whence %d", whence)
		return
	}

	pos = base + offset
	if pos < 0 {
		err = fmt.Errorf("lazyzip: negative seek position %d", pos)
		return
	}

	s.cursor = pos
	return
}

// Read implements io.Reader by delegating to ReadAt at the current cursor
// and advancing it by however many bytes were returned.
func (s *Stream) Read(p []byte) (n int, err error) {
	if s.closed {
		err = ErrClosed
		return
	}

	n, err = s.ReadAt(p, s.cursor)
	s.cursor += int64(n)
	return
}

// ReadAt implements io.ReaderAt: it fills p with up to len(p) bytes
// starting at off, downloading whatever sub-ranges of [off, off+len(p))
// are not yet cached. It ignores and does not modify the stream's cursor.
//
// Per the io.ReaderAt contract, a short read is always accompanied by a
// non-nil error (io.EOF at the end of the resource, or a wrapped
// ErrFetchFailed if a required range could not be downloaded).
func (s *Stream) ReadAt(p []byte, off int64) (n int, err error) {
	if s.closed {
		err = ErrClosed
		return
	}

	if off < 0 {
		err = fmt.Errorf("lazyzip: invalid offset %d", off)
		return
	}

	if off >= s.length {
		err = io.EOF
		return
	}

	if len(p) == 0 {
		return
	}

	if err = s.ensureWindow(off, int64(len(p))); err != nil {
		return
	}

	avail := s.length - off
	if avail > int64(len(p)) {
		avail = int64(len(p))
	}

	n, err = s.buf.ReadAt(p[:avail], off)
	if err == io.EOF && int64(n) == avail {
		// The backing buffer has no notion of the resource's logical
		// length, only its own; don't surface its own end-of-region EOF
		// when we asked for (and got) exactly what we wanted.
		err = nil
	}

	if err == nil && avail < int64(len(p)) {
		err = io.EOF
	}

	return
}

// ReadAll reads and returns every remaining byte from the cursor to the
// end of the resource, advancing the cursor to Len(). This is the
// "unbounded read" of the spec's read(n) contract, where n is left
// unspecified; idiomatic Go always bounds Read by len(p), so unbounded
// reads get their own method.
func (s *Stream) ReadAll() (data []byte, err error) {
	if s.closed {
		err = ErrClosed
		return
	}

	remaining := s.length - s.cursor
	if remaining < 0 {
		remaining = 0
	}

	data = make([]byte, remaining)
	n, err := s.ReadAt(data, s.cursor)
	if err == io.EOF {
		err = nil
	}
	s.cursor += int64(n)

	return data[:n], err
}

// Close releases the backing buffer. Further calls on s are errors.
func (s *Stream) Close() (err error) {
	if s.closed {
		return ErrClosed
	}

	s.closed = true
	return s.buf.Close()
}

// ensureWindow ensures that a download window covering [off, off+want) is
// present in the backing buffer, per the window policy of the spec: the
// window is sized to max(want, chunkSize) and, once clamped to the
// resource, biased to extend backward from its end. This produces fewer,
// larger, cache-friendlier requests for readers (like a ZIP central
// directory scan) that perform a series of slightly-increasing reads near
// the end of the file.
func (s *Stream) ensureWindow(off, want int64) (err error) {
	windowSize := want
	if windowSize < s.chunkSize {
		windowSize = s.chunkSize
	}

	stop := off + windowSize
	if stop > s.length {
		stop = s.length
	}

	fetchStart := stop - windowSize
	if fetchStart < 0 {
		fetchStart = 0
	}

	return s.ensure(fetchStart, stop-1)
}

// ensure guarantees that [start, end] (inclusive) is present in the
// backing buffer, restoring the stream's cursor before returning in every
// case -- fetching is transparent to callers, per the spec's
// context-managed-position-save design note.
func (s *Stream) ensure(start, end int64) (err error) {
	if start > end {
		return nil
	}

	pos := s.cursor
	defer func() { s.cursor = pos }()

	pf := s.idx.plan(start, end)
	if len(pf.gaps) == 0 {
		return nil
	}

	for _, gap := range pf.gaps {
		var body []byte
		body, err = s.fetcher.Fetch(s.ctx, gap.start, gap.end)
		if err != nil {
			err = fmt.Errorf("%w: bytes=%d-%d: %v", ErrFetchFailed, gap.start, gap.end, err)
			return
		}

		if _, err = s.buf.WriteAt(body, gap.start); err != nil {
			err = fmt.Errorf("%w: writing bytes=%d-%d to backing buffer: %v", ErrFetchFailed, gap.start, gap.end, err)
			return
		}
	}

	s.idx.applyMerge(pf)
	return nil
}

// CheckInvariants panics if the stream's interval index has lost its
// canonical disjoint-non-adjacent form. Exposed for tests, in the style of
// the teacher's invariant-checking types.
func (s *Stream) CheckInvariants() {
	if s.closed {
		panic("lazyzip: CheckInvariants called on closed stream")
	}

	s.idx.checkInvariants()

	if len(s.idx.left) > 0 {
		if s.idx.left[0] < 0 {
			panic("lazyzip: interval index starts before 0")
		}
		if s.idx.right[len(s.idx.right)-1] > s.length-1 {
			panic("lazyzip: interval index extends past end of resource")
		}
	}
}
