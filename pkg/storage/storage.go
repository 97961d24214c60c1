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

package storage

import (
	"context"
	"errors"
	"io"
)

// ImmutableCacheControl is the cache policy set on every uploaded asset.
// Keys embed a uniqueness token, so an object's content never changes.
const ImmutableCacheControl = "public, max-age=31536000, immutable"

var (
	// ErrObjectExists is returned by Store when Upsert is off and the key is taken.
	ErrObjectExists = errors.New("object already exists")

	// ErrEmptyKey is returned when an operation is given an empty bucket or key.
	ErrEmptyKey = errors.New("bucket and key must not be empty")
)

// StoreOptions controls how an object is written.
type StoreOptions struct {
	CacheControl string
	ContentType  string
	// Upsert overwrites an existing object instead of rejecting the write.
	Upsert bool
}

// Client defines the remote object storage operations the upload provider needs.
// This decouples the provider from the concrete storage implementation.
type Client interface {
	// Store writes size bytes from body under key in bucket. A size of -1
	// means the length is unknown and the body is streamed until EOF.
	Store(ctx context.Context, bucket, key string, body io.Reader, size int64, opts StoreOptions) error

	// PublicURL resolves the address an object can be fetched from.
	PublicURL(ctx context.Context, bucket, key string) (string, error)

	// Remove deletes keys from bucket. Removing a missing key is not an error.
	Remove(ctx context.Context, bucket string, keys []string) error
}
