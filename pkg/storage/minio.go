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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cast"

	"github.com/fawa-io/objupload/pkg/fwlog"
)

// URL modes accepted by the "url_mode" client option.
const (
	URLModePublic    = "public"
	URLModePresigned = "presigned"
)

const defaultPresignExpiry = 24 * time.Hour

// MinioOptions are the client options understood by NewMinioClient.
// They are decoded from the free-form options record of the adapter config.
type MinioOptions struct {
	AccessKeyID   string
	SessionToken  string
	Region        string
	PublicURL     string
	URLMode       string
	PresignExpiry time.Duration
	// UseSSL overrides the scheme of the API URL when set.
	UseSSL *bool
}

// ParseMinioOptions decodes a free-form options record.
// Unknown keys are ignored.
func ParseMinioOptions(raw map[string]any) (MinioOptions, error) {
	opts := MinioOptions{
		URLMode:       URLModePublic,
		PresignExpiry: defaultPresignExpiry,
	}
	for k, v := range raw {
		var err error
		switch k {
		case "access_key_id":
			opts.AccessKeyID, err = cast.ToStringE(v)
		case "session_token":
			opts.SessionToken, err = cast.ToStringE(v)
		case "region":
			opts.Region, err = cast.ToStringE(v)
		case "public_url":
			opts.PublicURL, err = cast.ToStringE(v)
		case "url_mode":
			opts.URLMode, err = cast.ToStringE(v)
			opts.URLMode = strings.ToLower(opts.URLMode)
		case "presign_expiry":
			opts.PresignExpiry, err = cast.ToDurationE(v)
		case "use_ssl":
			var b bool
			b, err = cast.ToBoolE(v)
			opts.UseSSL = &b
		default:
			fwlog.Debugf("storage: ignoring unknown client option %q", k)
		}
		if err != nil {
			return MinioOptions{}, fmt.Errorf("invalid client option %q: %w", k, err)
		}
	}

	switch opts.URLMode {
	case URLModePublic, URLModePresigned:
	default:
		return MinioOptions{}, fmt.Errorf("invalid client option \"url_mode\": %q", opts.URLMode)
	}
	if opts.PresignExpiry <= 0 {
		return MinioOptions{}, errors.New("invalid client option \"presign_expiry\": must be positive")
	}
	return opts, nil
}

// MinioClient implements Client against any S3-compatible endpoint.
type MinioClient struct {
	client        *minio.Client
	publicBase    string
	urlMode       string
	presignExpiry time.Duration
}

// NewMinioClient creates a client for the endpoint at apiURL, signing requests
// with apiKey as the secret key. No request is made until the first operation.
func NewMinioClient(apiURL, apiKey string, raw map[string]any) (*MinioClient, error) {
	opts, err := ParseMinioOptions(raw)
	if err != nil {
		return nil, err
	}

	endpoint, secure, err := splitEndpoint(apiURL)
	if err != nil {
		return nil, err
	}
	if opts.UseSSL != nil {
		secure = *opts.UseSSL
	}
	if apiKey != "" && opts.AccessKeyID == "" {
		return nil, errors.New("client option \"access_key_id\" is required when an api key is set")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, apiKey, opts.SessionToken),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicBase := opts.PublicURL
	if publicBase == "" {
		publicBase = client.EndpointURL().String()
	}

	fwlog.Debugf("storage: minio client for %s (secure=%v, url_mode=%s)", endpoint, secure, opts.URLMode)

	return &MinioClient{
		client:        client,
		publicBase:    strings.TrimRight(publicBase, "/"),
		urlMode:       opts.URLMode,
		presignExpiry: opts.PresignExpiry,
	}, nil
}

// splitEndpoint turns "https://host:port" into ("host:port", true).
// A bare "host:port" is treated as https.
func splitEndpoint(apiURL string) (string, bool, error) {
	if apiURL == "" {
		return "", false, errors.New("api url must not be empty")
	}
	if !strings.Contains(apiURL, "://") {
		apiURL = "https://" + apiURL
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", false, fmt.Errorf("parse api url: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("api url %q has no host", apiURL)
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		return "", false, fmt.Errorf("api url %q must not carry a path", apiURL)
	}
	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("api url %q: unsupported scheme %q", apiURL, u.Scheme)
	}
}

// Store implements Client.
func (m *MinioClient) Store(ctx context.Context, bucket, key string, body io.Reader, size int64, opts StoreOptions) error {
	if bucket == "" || key == "" {
		return ErrEmptyKey
	}
	if !opts.Upsert {
		_, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return ErrObjectExists
		}
		if minio.ToErrorResponse(err).StatusCode != http.StatusNotFound {
			return err
		}
	}

	_, err := m.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	return err
}

// PublicURL implements Client. In public mode the address is the public base
// joined with bucket and key; in presigned mode it is a signed GET URL valid
// for the configured expiry.
func (m *MinioClient) PublicURL(ctx context.Context, bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", ErrEmptyKey
	}
	if m.urlMode == URLModePresigned {
		u, err := m.client.PresignedGetObject(ctx, bucket, key, m.presignExpiry, nil)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}
	return m.publicBase + "/" + url.PathEscape(bucket) + "/" + escapeKey(key), nil
}

// escapeKey escapes every "/"-separated segment of key and keeps the
// separators as they are. Keys are opaque, so "." and ".." segments and
// repeated slashes are never cleaned.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// Remove implements Client. The first per-object failure is returned after
// the whole batch has been processed.
func (m *MinioClient) Remove(ctx context.Context, bucket string, keys []string) error {
	if bucket == "" {
		return ErrEmptyKey
	}
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var firstErr error
	for rErr := range m.client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		fwlog.Warnf("storage: failed to remove %s/%s: %v", bucket, rErr.ObjectName, rErr.Err)
		if firstErr == nil {
			firstErr = rErr.Err
		}
	}
	return firstErr
}
