// Copyright 2025 The fawa Authors
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

package upload

import (
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// TokenSource assigns the uniqueness token of an upload.
// It is called once per upload, before the key is derived.
type TokenSource interface {
	Next(f *File) uint64
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(f *File) uint64

// Next implements TokenSource.
func (fn TokenFunc) Next(f *File) uint64 { return fn(f) }

// ClockMillis returns wall-clock milliseconds. Two uploads in the same
// millisecond get the same token.
func ClockMillis(now func() time.Time) TokenSource {
	return TokenFunc(func(*File) uint64 {
		return uint64(now().UnixMilli())
	})
}

// MonotonicClock hands out wall-clock milliseconds, bumped past the last
// token it issued so no two tokens from one source are equal.
type MonotonicClock struct {
	now  func() time.Time
	last atomic.Uint64
}

// NewMonotonicClock returns a MonotonicClock reading time from now.
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	return &MonotonicClock{now: now}
}

// Next implements TokenSource.
func (m *MonotonicClock) Next(*File) uint64 {
	ms := uint64(m.now().UnixMilli())
	for {
		last := m.last.Load()
		next := ms
		if next <= last {
			next = last + 1
		}
		if m.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// ContentHash derives the token from the xxhash64 of the buffered payload, so
// identical content always lands on the same key. Files that carry only a
// stream fall back to fallback.
//
// Two assets with the same name, path and bytes share one object: deleting
// either of them removes the object the other still references. Use it only
// when the host never deletes deduplicated assets independently.
func ContentHash(fallback TokenSource) TokenSource {
	return TokenFunc(func(f *File) uint64 {
		if f.Stream != nil || f.Buffer == nil {
			return fallback.Next(f)
		}
		return xxhash.Sum64(f.Buffer)
	})
}
