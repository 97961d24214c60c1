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
	"errors"
	"fmt"
)

var (
	// ErrNilFile is returned when an operation is called without a file.
	ErrNilFile = errors.New("file cannot be nil")

	// ErrNoLedger is returned by ReapOrphans when no ledger is configured.
	ErrNoLedger = errors.New("no orphan ledger configured")
)

// UploadError reports that the store call failed. Nothing was persisted.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// URLResolutionError reports that the object was stored under Key but its
// address could not be resolved. The object stays in the bucket.
type URLResolutionError struct {
	Key string
	Err error
}

func (e *URLResolutionError) Error() string {
	return fmt.Sprintf("resolve url of %s: %v", e.Key, e.Err)
}

func (e *URLResolutionError) Unwrap() error { return e.Err }

// DeleteError reports that the removal call failed. Whether the object still
// exists depends on the backend.
type DeleteError struct {
	Key string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Key, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
