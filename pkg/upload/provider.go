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

// Package upload implements the upload provider contract of a content
// management host: Init, Upload, UploadStream and Delete, on top of an
// object storage client.
package upload

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fawa-io/objupload/pkg/fwlog"
	"github.com/fawa-io/objupload/pkg/ledger"
	"github.com/fawa-io/objupload/pkg/objectkey"
	"github.com/fawa-io/objupload/pkg/storage"
)

// ClientFactory builds the storage client from the adapter credentials and
// the client options left after the adapter flags are removed.
type ClientFactory func(apiURL, apiKey string, options map[string]any) (storage.Client, error)

// MinioFactory is the default ClientFactory.
func MinioFactory(apiURL, apiKey string, options map[string]any) (storage.Client, error) {
	return storage.NewMinioClient(apiURL, apiKey, options)
}

// Ledger records objects that were stored without a resolved URL.
// *ledger.Ledger satisfies it.
type Ledger interface {
	Record(ctx context.Context, o ledger.Orphan) error
	List(ctx context.Context, bucket string) ([]*ledger.Orphan, error)
	Forget(ctx context.Context, bucket, key string) error
}

type initOptions struct {
	client  storage.Client
	factory ClientFactory
	tokens  TokenSource
	ledger  Ledger
	logger  fwlog.Logger
	now     func() time.Time
}

// Option customizes Init.
type Option func(*initOptions)

// WithClient uses c instead of building a client from the config.
func WithClient(c storage.Client) Option {
	return func(o *initOptions) { o.client = c }
}

// WithClientFactory replaces MinioFactory.
func WithClientFactory(f ClientFactory) Option {
	return func(o *initOptions) { o.factory = f }
}

// WithTokenSource replaces the default monotonic clock token source.
func WithTokenSource(t TokenSource) Option {
	return func(o *initOptions) { o.tokens = t }
}

// WithLedger records orphaned objects in l.
func WithLedger(l Ledger) Option {
	return func(o *initOptions) { o.ledger = l }
}

// WithLogger sets the logger. The package default logger is used otherwise.
func WithLogger(l fwlog.Logger) Option {
	return func(o *initOptions) { o.logger = l }
}

// WithClock sets the time source for the dynamic directory and the default tokens.
func WithClock(now func() time.Time) Option {
	return func(o *initOptions) { o.now = now }
}

// Provider is the handle returned by Init. Its bucket, directory and client
// are fixed at Init, and it is safe for concurrent use.
type Provider struct {
	bucket    string
	directory string
	client    storage.Client
	tokens    TokenSource
	ledger    Ledger
	log       fwlog.Logger
	now       func() time.Time
}

// Init normalizes cfg, builds the storage client and returns the provider.
// The root directory, dynamic or not, is computed here once.
func Init(cfg Config, opts ...Option) (*Provider, error) {
	o := initOptions{
		factory: MinioFactory,
		logger:  fwlog.DefaultLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s, err := cfg.normalize(o.now())
	if err != nil {
		return nil, err
	}

	client := o.client
	if client == nil {
		client, err = o.factory(cfg.APIURL, cfg.APIKey, s.clientOptions)
		if err != nil {
			return nil, fmt.Errorf("init storage client: %w", err)
		}
	}

	tokens := o.tokens
	if tokens == nil {
		tokens = NewMonotonicClock(o.now)
	}

	o.logger.Infof("upload: provider ready (bucket=%s, directory=%q, dynamic=%v)", s.bucket, s.directory, s.dynamicDirectory)

	return &Provider{
		bucket:    s.bucket,
		directory: s.directory,
		client:    client,
		tokens:    tokens,
		ledger:    o.ledger,
		log:       o.logger,
		now:       o.now,
	}, nil
}

// Bucket returns the bucket objects are stored in.
func (p *Provider) Bucket() string { return p.bucket }

// Directory returns the effective root directory.
func (p *Provider) Directory() string { return p.directory }

// Key returns the object key f is stored under, using its current Hash.
func (p *Provider) Key(f *File) string {
	return objectkey.Derive(p.directory, f.fields())
}

// Upload stores f.Buffer and sets f.URL to the object's public address.
// f.Hash is reassigned on every call.
func (p *Provider) Upload(ctx context.Context, f *File) error {
	if f == nil {
		return ErrNilFile
	}
	body, size := f.bufferBody()
	return p.put(ctx, f, body, size)
}

// UploadStream behaves like Upload but sends f.Stream when it is set.
func (p *Provider) UploadStream(ctx context.Context, f *File) error {
	if f == nil {
		return ErrNilFile
	}
	body, size := f.streamBody()
	return p.put(ctx, f, body, size)
}

func (p *Provider) put(ctx context.Context, f *File, body io.Reader, size int64) error {
	f.Hash = p.tokens.Next(f)
	key := p.Key(f)

	p.log.Debugf("upload: storing %s/%s (%s, %d bytes)", p.bucket, key, f.Mime, size)
	err := p.client.Store(ctx, p.bucket, key, body, size, storage.StoreOptions{
		CacheControl: storage.ImmutableCacheControl,
		ContentType:  f.Mime,
		Upsert:       true,
	})
	if err != nil {
		p.log.Errorf("upload: failed to store %s/%s: %v", p.bucket, key, err)
		return &UploadError{Key: key, Err: err}
	}

	url, err := p.client.PublicURL(ctx, p.bucket, key)
	if err != nil {
		p.log.Warnf("upload: %s/%s stored but its url could not be resolved: %v", p.bucket, key, err)
		p.recordOrphan(ctx, f, key, err)
		return &URLResolutionError{Key: key, Err: err}
	}

	f.URL = url
	p.log.Debugf("upload: %s/%s available at %s", p.bucket, key, url)
	return nil
}

func (p *Provider) recordOrphan(ctx context.Context, f *File, key string, cause error) {
	if p.ledger == nil {
		return
	}
	err := p.ledger.Record(ctx, ledger.Orphan{
		Bucket:     p.bucket,
		Key:        key,
		Name:       f.Name,
		Ext:        f.Ext,
		Path:       f.Path,
		Hash:       f.Hash,
		Mime:       f.Mime,
		Reason:     cause.Error(),
		RecordedAt: p.now().UTC(),
	})
	if err != nil {
		p.log.Errorf("upload: failed to record orphan %s/%s: %v", p.bucket, key, err)
	}
}

// Delete removes the object f was uploaded as. f must carry the Hash, Path,
// Name and Ext used at upload time. customParams is accepted for
// compatibility with the host contract and ignored.
func (p *Provider) Delete(ctx context.Context, f *File, customParams map[string]any) error {
	if f == nil {
		return ErrNilFile
	}
	key := p.Key(f)

	p.log.Debugf("upload: removing %s/%s", p.bucket, key)
	if err := p.client.Remove(ctx, p.bucket, []string{key}); err != nil {
		p.log.Errorf("upload: failed to remove %s/%s: %v", p.bucket, key, err)
		return &DeleteError{Key: key, Err: err}
	}

	if p.ledger != nil {
		if err := p.ledger.Forget(ctx, p.bucket, key); err != nil {
			p.log.Warnf("upload: failed to clear ledger entry %s/%s: %v", p.bucket, key, err)
		}
	}
	return nil
}

// ReapOrphans removes every object the ledger lists for this provider's
// bucket and forgets the records. It returns how many objects were removed;
// the first failure stops the sweep.
func (p *Provider) ReapOrphans(ctx context.Context) (int, error) {
	if p.ledger == nil {
		return 0, ErrNoLedger
	}
	orphans, err := p.ledger.List(ctx, p.bucket)
	if err != nil {
		return 0, fmt.Errorf("list orphans: %w", err)
	}

	reaped := 0
	for _, o := range orphans {
		if err := p.client.Remove(ctx, p.bucket, []string{o.Key}); err != nil {
			return reaped, &DeleteError{Key: o.Key, Err: err}
		}
		if err := p.ledger.Forget(ctx, p.bucket, o.Key); err != nil {
			return reaped, fmt.Errorf("forget orphan %s: %w", o.Key, err)
		}
		p.log.Infof("upload: reaped orphan %s/%s", p.bucket, o.Key)
		reaped++
	}
	return reaped, nil
}
