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

// Package httprange implements the downward HTTP range protocol used by
// lazyzip: a HEAD to discover a resource's length, and ranged GETs to fetch
// byte intervals of it. Compression is disabled throughout, since a
// compressed body would invalidate the byte offsets a caller asked for.
package httprange

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// IdentityEncoding is the header set on every request this package issues,
// so that no intermediary serves a compressed body whose byte offsets
// wouldn't line up with the ones the caller asked for.
const IdentityEncoding = "identity"

// Client issues HEAD and ranged GET requests against a single URL.
type Client struct {
	HTTP *http.Client
	URL  string
}

// NewClient returns a Client using http.DefaultClient if hc is nil.
func NewClient(url string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{HTTP: hc, URL: url}
}

// Length issues a HEAD request and returns the resource's Content-Length.
func (c *Client) Length(ctx context.Context) (length int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.URL, nil)
	if err != nil {
		err = fmt.Errorf("NewRequestWithContext: %w", err)
		return
	}

	req.Header.Set("Accept-Encoding", IdentityEncoding)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		err = fmt.Errorf("Do: %w", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("HEAD %s: unexpected status %s", c.URL, resp.Status)
		return
	}

	if resp.ContentLength < 0 {
		err = fmt.Errorf("HEAD %s: no Content-Length", c.URL)
		return
	}

	length = resp.ContentLength
	return
}

// Fetch issues a ranged GET for the inclusive byte range [start, end] and
// returns exactly end-start+1 bytes. A response that isn't a successful
// partial-content response, or whose body is the wrong length, is an
// error.
func (c *Client) Fetch(ctx context.Context, start, end int64) (body []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		err = fmt.Errorf("NewRequestWithContext: %w", err)
		return
	}

	req.Header.Set("Accept-Encoding", IdentityEncoding)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		err = fmt.Errorf("Do: %w", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("GET %s (bytes=%d-%d): unexpected status %s", c.URL, start, end, resp.Status)
		return
	}

	want := end - start + 1
	body = make([]byte, want)
	n, err := io.ReadFull(resp.Body, body)
	if err != nil {
		err = fmt.Errorf("reading range bytes=%d-%d: %w", start, end, err)
		return
	}

	if int64(n) != want {
		err = fmt.Errorf("range bytes=%d-%d: got %d bytes, wanted %d", start, end, n, want)
		return
	}

	if extra, _ := io.CopyN(io.Discard, resp.Body, 1); extra > 0 {
		err = fmt.Errorf("range bytes=%d-%d: body longer than %d bytes", start, end, want)
		return
	}

	return
}
