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

// Package objectkey derives the object names uploaded assets are stored under.
//
// A key has the shape
//
//	[root/][path/]<base>_<hash><ext>
//
// where base is the file name with its last extension removed. Derivation is
// pure: the same inputs always name the same object, which is what lets a
// later delete find what an earlier upload stored.
package objectkey

import (
	"strconv"
	"strings"
)

// Fields are the parts of a file descriptor that take part in naming.
type Fields struct {
	Name string
	Ext  string
	Path string
	Hash uint64
}

// Derive returns the object key for f under the root directory.
// The result never starts with "/".
func Derive(root string, f Fields) string {
	var b strings.Builder
	if root != "" {
		b.WriteString(root)
		b.WriteByte('/')
	}
	if f.Path != "" {
		b.WriteString(f.Path)
		b.WriteByte('/')
	}
	b.WriteString(BaseName(f.Name))
	b.WriteByte('_')
	b.WriteString(strconv.FormatUint(f.Hash, 10))
	b.WriteString(f.Ext)

	return strings.TrimLeft(b.String(), "/")
}

// BaseName strips the final extension from name. An extension is a dot
// followed by one or more characters that are neither '.' nor '/', so
// "a.b.png" becomes "a.b" while "archive." and "dir.d/file" are unchanged.
func BaseName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return name
	}
	if strings.ContainsRune(name[i+1:], '/') {
		return name
	}
	return name[:i]
}
