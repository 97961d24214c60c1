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

// Package ledger keeps track of objects that were stored but whose address
// could not be resolved. Such objects are invisible to the host, so the
// ledger is the only place they can be found again for cleanup.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fawa-io/objupload/pkg/fwlog"
)

// DefaultTTL is how long an orphan record is kept when no TTL is configured.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "objupload:"

// ErrNotFound is returned by Get when no record exists for a key.
var ErrNotFound = errors.New("orphan not found")

// Orphan describes one object left in the bucket without a resolved URL.
// The file fields are enough to re-derive the key and delete the object.
type Orphan struct {
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	Ext        string    `json:"ext"`
	Path       string    `json:"path,omitempty"`
	Hash       uint64    `json:"hash"`
	Mime       string    `json:"mime,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Ledger stores orphan records in Dragonfly/Redis.
// Each record lives at its own key with a TTL; a per-bucket set indexes them.
type Ledger struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New wraps an existing client. A ttl of zero selects DefaultTTL.
func New(client redis.Cmdable, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{client: client, ttl: ttl}
}

// NewDragonflyLedger connects to addr and checks the connection.
func NewDragonflyLedger(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Ledger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping dragonfly at %s: %w", addr, err)
	}
	fwlog.Debugf("ledger: connected to %s (db %d)", addr, db)
	return New(client, ttl), nil
}

func itemKey(bucket, key string) string {
	return keyPrefix + "orphan:" + bucket + ":" + key
}

func indexKey(bucket string) string {
	return keyPrefix + "orphans:" + bucket
}

// Record saves o, replacing any earlier record for the same object.
func (l *Ledger) Record(ctx context.Context, o Orphan) error {
	if o.Bucket == "" || o.Key == "" {
		return errors.New("orphan bucket and key cannot be empty")
	}
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now().UTC()
	}
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	if err := l.client.Set(ctx, itemKey(o.Bucket, o.Key), data, l.ttl).Err(); err != nil {
		return err
	}
	return l.client.SAdd(ctx, indexKey(o.Bucket), o.Key).Err()
}

// Get returns the record for key in bucket.
func (l *Ledger) Get(ctx context.Context, bucket, key string) (*Orphan, error) {
	val, err := l.client.Get(ctx, itemKey(bucket, key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var o Orphan
	if err := json.Unmarshal([]byte(val), &o); err != nil {
		return nil, fmt.Errorf("decode orphan %s: %w", key, err)
	}
	return &o, nil
}

// List returns the live records of bucket ordered by key. Index entries whose
// record has expired are pruned on the way.
func (l *Ledger) List(ctx context.Context, bucket string) ([]*Orphan, error) {
	keys, err := l.client.SMembers(ctx, indexKey(bucket)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	orphans := make([]*Orphan, 0, len(keys))
	for _, key := range keys {
		o, err := l.Get(ctx, bucket, key)
		if errors.Is(err, ErrNotFound) {
			if err := l.client.SRem(ctx, indexKey(bucket), key).Err(); err != nil {
				fwlog.Warnf("ledger: failed to prune expired entry %s: %v", key, err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		orphans = append(orphans, o)
	}
	return orphans, nil
}

// Forget drops the record for key. Forgetting an unknown key is not an error.
func (l *Ledger) Forget(ctx context.Context, bucket, key string) error {
	if err := l.client.Del(ctx, itemKey(bucket, key)).Err(); err != nil {
		return err
	}
	return l.client.SRem(ctx, indexKey(bucket), key).Err()
}
