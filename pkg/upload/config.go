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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// DefaultBucket is used when the configuration names no bucket.
const DefaultBucket = "strapi-uploads"

// DynamicDirectoryOption is the adapter flag recognised in Config.Options.
// It is consumed by the adapter and never forwarded to the storage client.
const DynamicDirectoryOption = "dynamic_directory"

// Config is the adapter configuration supplied once at Init.
type Config struct {
	APIURL    string         `mapstructure:"apiUrl"`
	APIKey    string         `mapstructure:"apiKey"`
	Bucket    string         `mapstructure:"bucket"`
	Directory string         `mapstructure:"directory"`
	Options   map[string]any `mapstructure:"options"`
}

// settings is Config after normalization.
type settings struct {
	bucket           string
	directory        string
	dynamicDirectory bool
	clientOptions    map[string]any
}

// normalize resolves defaults and splits the adapter flag from the client
// options. c.Options is copied, never modified.
func (c Config) normalize(now time.Time) (settings, error) {
	s := settings{
		bucket:        c.Bucket,
		directory:     strings.Trim(c.Directory, "/"),
		clientOptions: make(map[string]any, len(c.Options)),
	}
	if s.bucket == "" {
		s.bucket = DefaultBucket
	}

	for k, v := range c.Options {
		if k != DynamicDirectoryOption {
			s.clientOptions[k] = v
			continue
		}
		dyn, err := cast.ToBoolE(v)
		if err != nil {
			return settings{}, fmt.Errorf("invalid option %q: %w", DynamicDirectoryOption, err)
		}
		s.dynamicDirectory = dyn
	}

	if s.directory == "" && s.dynamicDirectory {
		s.directory = DateDirectory(now)
	}
	return s, nil
}

// DateDirectory returns "<year>/<month>" for t, month not zero padded.
func DateDirectory(t time.Time) string {
	return strconv.Itoa(t.Year()) + "/" + strconv.Itoa(int(t.Month()))
}
