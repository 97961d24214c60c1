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
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/objupload/pkg/fwlog"
)

func TestParseMinioOptions(t *testing.T) {
	testCases := []struct {
		name    string
		raw     map[string]any
		want    MinioOptions
		wantErr bool
	}{
		{
			name: "defaults",
			raw:  nil,
			want: MinioOptions{URLMode: URLModePublic, PresignExpiry: defaultPresignExpiry},
		},
		{
			name: "all options",
			raw: map[string]any{
				"access_key_id":  "AKIA",
				"session_token":  "tok",
				"region":         "eu-west-1",
				"public_url":     "https://cdn.example.com",
				"url_mode":       "Presigned",
				"presign_expiry": "1h",
				"unknown":        struct{}{},
			},
			want: MinioOptions{
				AccessKeyID:   "AKIA",
				SessionToken:  "tok",
				Region:        "eu-west-1",
				PublicURL:     "https://cdn.example.com",
				URLMode:       URLModePresigned,
				PresignExpiry: time.Hour,
			},
		},
		{
			name:    "bad url mode",
			raw:     map[string]any{"url_mode": "signed"},
			wantErr: true,
		},
		{
			name:    "bad expiry",
			raw:     map[string]any{"presign_expiry": "soon"},
			wantErr: true,
		},
		{
			name:    "negative expiry",
			raw:     map[string]any{"presign_expiry": "-1m"},
			wantErr: true,
		},
		{
			name:    "bad use_ssl",
			raw:     map[string]any{"use_ssl": "maybe"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMinioOptions(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseMinioOptionsUseSSL(t *testing.T) {
	got, err := ParseMinioOptions(map[string]any{"use_ssl": "false"})
	require.NoError(t, err)
	require.NotNil(t, got.UseSSL)
	assert.False(t, *got.UseSSL)
}

func TestSplitEndpoint(t *testing.T) {
	testCases := []struct {
		in         string
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{"https://project.storage.example.com", "project.storage.example.com", true, false},
		{"http://localhost:9000", "localhost:9000", false, false},
		{"http://localhost:9000/", "localhost:9000", false, false},
		{"s3.example.com", "s3.example.com", true, false},
		{"", "", false, true},
		{"https://example.com/storage/v1", "", false, true},
		{"ftp://example.com", "", false, true},
	}
	for _, tc := range testCases {
		host, secure, err := splitEndpoint(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.wantHost, host, tc.in)
		assert.Equal(t, tc.wantSecure, secure, tc.in)
	}
}

func TestNewMinioClientRequiresAccessKey(t *testing.T) {
	_, err := NewMinioClient("http://localhost:9000", "secret", nil)
	assert.Error(t, err)
}

func TestMinioClient_PublicURL(t *testing.T) {
	c, err := NewMinioClient("http://localhost:9000", "secret", map[string]any{
		"access_key_id": "minio",
	})
	require.NoError(t, err)

	got, err := c.PublicURL(context.Background(), "assets", "2024/3/photo_1.png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/assets/2024/3/photo_1.png", got)

	testCases := []struct {
		key  string
		want string
	}{
		{"my file_1.png", "http://localhost:9000/assets/my%20file_1.png"},
		{"uploads/a/../b/x_1.png", "http://localhost:9000/assets/uploads/a/../b/x_1.png"},
		{"uploads/./x_1.png", "http://localhost:9000/assets/uploads/./x_1.png"},
		{"uploads//avatars/x_1.png", "http://localhost:9000/assets/uploads//avatars/x_1.png"},
		{"a?b#c_1.png", "http://localhost:9000/assets/a%3Fb%23c_1.png"},
	}
	for _, tc := range testCases {
		got, err := c.PublicURL(context.Background(), "assets", tc.key)
		require.NoError(t, err, tc.key)
		assert.Equal(t, tc.want, got, tc.key)
	}

	_, err = c.PublicURL(context.Background(), "assets", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestMinioClient_PublicURLCustomBase(t *testing.T) {
	c, err := NewMinioClient("https://s3.example.com", "secret", map[string]any{
		"access_key_id": "minio",
		"public_url":    "https://cdn.example.com/",
	})
	require.NoError(t, err)

	got, err := c.PublicURL(context.Background(), "assets", "a_1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/assets/a_1.png", got)
}

func TestMinioClient_PresignedURL(t *testing.T) {
	c, err := NewMinioClient("http://localhost:9000", "secret", map[string]any{
		"access_key_id":  "minio",
		"region":         "us-east-1",
		"url_mode":       URLModePresigned,
		"presign_expiry": "15m",
	})
	require.NoError(t, err)

	got, err := c.PublicURL(context.Background(), "assets", "a_1.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "http://localhost:9000/assets/a_1.png?"), got)
	assert.Contains(t, got, "X-Amz-Signature=")
	assert.Contains(t, got, "X-Amz-Expires=900")
}

// fakeS3 records the requests a MinioClient sends.
type fakeS3 struct {
	mu       sync.Mutex
	requests []*http.Request
	objects  map[string]bool
	denyKeys map[string]bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead:
		if f.objects[r.URL.Path] {
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut:
		f.mu.Lock()
		f.objects[r.URL.Path] = true
		f.mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		key := strings.TrimPrefix(r.URL.Path, "/assets/")
		if f.denyKeys[key] {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message><Key>` + key + `</Key></Error>`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Query().Has("delete"):
		w.Header().Set("Content-Type", "application/xml")
		var body bytes.Buffer
		body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
		for key := range f.denyKeys {
			body.WriteString(`<Error><Key>` + key + `</Key><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
		}
		body.WriteString(`</DeleteResult>`)
		_, _ = w.Write(body.Bytes())
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFakeClient(t *testing.T) (*MinioClient, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]bool{}, denyKeys: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewMinioClient(srv.URL, "secret", map[string]any{
		"access_key_id": "minio",
		"region":        "us-east-1",
	})
	require.NoError(t, err)
	return c, fake
}

func TestMinioClient_Store(t *testing.T) {
	c, fake := newFakeClient(t)
	payload := []byte("hello")

	err := c.Store(context.Background(), "assets", "docs/a_1.txt", bytes.NewReader(payload), int64(len(payload)), StoreOptions{
		CacheControl: ImmutableCacheControl,
		ContentType:  "text/plain",
		Upsert:       true,
	})
	require.NoError(t, err)

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/assets/docs/a_1.txt", req.URL.Path)
	assert.Equal(t, ImmutableCacheControl, req.Header.Get("Cache-Control"))
	assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
}

func TestMinioClient_StoreWithoutUpsert(t *testing.T) {
	c, fake := newFakeClient(t)
	payload := []byte("x")
	opts := StoreOptions{ContentType: "text/plain"}

	require.NoError(t, c.Store(context.Background(), "assets", "k_1", bytes.NewReader(payload), 1, opts))
	assert.Equal(t, http.MethodPut, fake.last().Method)

	err := c.Store(context.Background(), "assets", "k_1", bytes.NewReader(payload), 1, opts)
	assert.ErrorIs(t, err, ErrObjectExists)
	assert.Equal(t, http.MethodHead, fake.last().Method)
}

func TestMinioClient_StoreEmptyKey(t *testing.T) {
	c, _ := newFakeClient(t)
	err := c.Store(context.Background(), "assets", "", bytes.NewReader(nil), 0, StoreOptions{})
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestMinioClient_Remove(t *testing.T) {
	c, fake := newFakeClient(t)

	require.NoError(t, c.Remove(context.Background(), "assets", []string{"a_1.png"}))
	req := fake.last()
	assert.Contains(t, []string{http.MethodPost, http.MethodDelete}, req.Method)
	assert.True(t, strings.HasPrefix(req.URL.Path, "/assets"), req.URL.Path)

	// missing keys are reported as deleted, so a repeat succeeds too
	require.NoError(t, c.Remove(context.Background(), "assets", []string{"a_1.png"}))
}

func TestMinioClient_RemoveFailure(t *testing.T) {
	c, fake := newFakeClient(t)
	fake.denyKeys["locked_1.png"] = true

	logs := new(bytes.Buffer)
	fwlog.SetOutput(logs)
	defer fwlog.SetOutput(os.Stderr)

	err := c.Remove(context.Background(), "assets", []string{"locked_1.png"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyKey))
	assert.Contains(t, err.Error(), "Access Denied")
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), "locked_1.png")
}
