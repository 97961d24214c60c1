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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fawa-io/objupload/pkg/fwlog"
	"github.com/fawa-io/objupload/pkg/ledger"
	"github.com/fawa-io/objupload/pkg/upload"
)

// EnvPrefix prefixes every environment variable, e.g. OBJUPLOAD_STORAGE_BUCKET.
const EnvPrefix = "OBJUPLOAD"

// LedgerConfig locates the Dragonfly/Redis instance holding orphan records.
// An empty Addr disables the ledger.
type LedgerConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Config is the full uploadctl configuration.
type Config struct {
	Storage  upload.Config `mapstructure:"storage"`
	Ledger   LedgerConfig  `mapstructure:"ledger"`
	LogLevel string        `mapstructure:"logLevel"`
}

// Adapter returns the upload adapter configuration.
func (c Config) Adapter() upload.Config {
	opts := make(map[string]any, len(c.Storage.Options))
	for k, v := range c.Storage.Options {
		opts[k] = v
	}
	a := c.Storage
	a.Options = opts
	return a
}

var (
	once sync.Once

	mu sync.RWMutex

	config Config
)

// InitConfig loads the configuration once and starts watching the config file.
func InitConfig(flags *pflag.FlagSet) error {
	var initErr error
	once.Do(func() {
		initErr = LoadAndWatch(flags)
	})
	return initErr
}

// Get returns a copy of the current configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return config
}

// RegisterFlags adds the command line flags understood by Load to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("storage.apiUrl", "", "Object storage endpoint (e.g., 'https://s3.example.com').")
	flags.String("storage.apiKey", "", "Secret key used to sign storage requests.")
	flags.String("storage.bucket", "", "Bucket assets are stored in (default 'strapi-uploads').")
	flags.String("storage.directory", "", "Root directory inside the bucket.")
	flags.String("ledger.addr", "", "Dragonfly/Redis address of the orphan ledger (e.g., '127.0.0.1:6379').")
	flags.String("logLevel", "", "Log level: debug, info, warn, error.")
}

func newViper(flags *pflag.FlagSet, searchPaths []string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("storage.bucket", upload.DefaultBucket)
	v.SetDefault("storage.directory", "")
	v.SetDefault("ledger.db", 0)
	v.SetDefault("ledger.ttl", ledger.DefaultTTL)
	v.SetDefault("logLevel", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind pflags: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"storage.apiUrl", "storage.apiKey", "ledger.addr", "ledger.password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	v.SetConfigName("objupload")
	v.SetConfigType("yaml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fwlog.Infof("Config file not found.")
		} else {
			return nil, fmt.Errorf("fatal error config file: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads the configuration from flags, the environment, a .env file and
// objupload.yaml in searchPaths, in that order of precedence.
func Load(flags *pflag.FlagSet, searchPaths ...string) (Config, error) {
	v, err := newViper(flags, searchPaths)
	if err != nil {
		return Config{}, err
	}
	c, err := decode(v)
	if err != nil {
		return Config{}, fmt.Errorf("the configuration cannot be decoded into the struct: %w", err)
	}
	return c, nil
}

// LoadAndWatch loads the configuration from "." and /etc/objupload/ and
// reloads the log level when the file changes. Storage settings are read
// once; a running provider keeps the ones it was built with.
func LoadAndWatch(flags *pflag.FlagSet) error {
	v, err := newViper(flags, []string{".", "/etc/objupload/"})
	if err != nil {
		return err
	}

	mu.Lock()
	c, err := decode(v)
	if err != nil {
		mu.Unlock()
		return fmt.Errorf("the initial configuration cannot be decoded into the struct: %w", err)
	}
	config = c
	mu.Unlock()

	if v.ConfigFileUsed() == "" {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		fwlog.Infof("config file %s changed, reloading...", e.Name)

		c, err := decode(v)
		if err != nil {
			fwlog.Errorf("Error while reloading config: %v", err)
			return
		}

		mu.Lock()
		config.LogLevel = c.LogLevel
		mu.Unlock()

		newLogLevel, err := fwlog.ParseLevel(c.LogLevel)
		if err != nil {
			fwlog.Warnf("New log level in config is invalid: %v. Keeping previous level.", err)
			return
		}
		fwlog.SetLevel(newLogLevel)
		fwlog.Infof("Log level reloaded successfully to: %s", newLogLevel)
	})
	v.WatchConfig()

	return nil
}
