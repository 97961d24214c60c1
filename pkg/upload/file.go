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
	"bytes"
	"io"

	"github.com/fawa-io/objupload/pkg/objectkey"
)

// File is the asset descriptor handed over by the host.
// Upload and UploadStream set Hash and, on success, URL.
type File struct {
	// Name is the original file name, extension included.
	Name string
	// Ext is the extension with its leading dot, or empty.
	Ext string
	// Path is a sub-path below the configured directory, or empty.
	Path string
	// Hash is the uniqueness token embedded in the object key.
	Hash uint64

	// Buffer holds the content for Upload, and for UploadStream when Stream is nil.
	Buffer []byte
	// Stream is the content for UploadStream. Size is its length in bytes;
	// zero or negative means unknown.
	Stream io.Reader
	Size   int64

	Mime string

	// URL is the resolved public address, set after a successful upload.
	URL string
}

func (f *File) fields() objectkey.Fields {
	return objectkey.Fields{
		Name: f.Name,
		Ext:  f.Ext,
		Path: f.Path,
		Hash: f.Hash,
	}
}

func (f *File) bufferBody() (io.Reader, int64) {
	return bytes.NewReader(f.Buffer), int64(len(f.Buffer))
}

func (f *File) streamBody() (io.Reader, int64) {
	if f.Stream == nil {
		return f.bufferBody()
	}
	if f.Size <= 0 {
		return f.Stream, -1
	}
	return f.Stream, f.Size
}
