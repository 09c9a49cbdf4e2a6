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

import "errors"

// ErrResourceUnavailable is returned by Open when the remote resource could
// not be HEADed, or the HEAD response carried no usable Content-Length.
var ErrResourceUnavailable = errors.New("lazyzip: remote resource unavailable")

// ErrFetchFailed is returned by Read, ReadAt and Open when a ranged GET
// fails or returns a body of the wrong length. The failing sub-range is
// never merged into the interval index, so a later call may retry it.
var ErrFetchFailed = errors.New("lazyzip: ranged fetch failed")

// ErrNotAZip is returned by Open when the bootstrap exhausted the entire
// resource without finding a valid ZIP central directory.
var ErrNotAZip = errors.New("lazyzip: resource is not a zip")

// ErrClosed is returned by any operation performed on a Stream after Close.
var ErrClosed = errors.New("lazyzip: use of closed stream")
