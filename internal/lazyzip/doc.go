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

// Package lazyzip implements a lazy remote ZIP stream: a seekable,
// read-only byte stream backed by an HTTP resource that supports byte-range
// requests. It materializes only the byte ranges demanded by a ZIP central
// directory reader placed on top of it, so that archive/zip can list and
// read a remote wheel's contents without downloading the whole file.
//
// A Stream is single-owner and is not safe for concurrent use.
package lazyzip
