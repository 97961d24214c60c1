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

package fwlog

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Level  string `json:"level"`
	Msg    string `json:"msg"`
	Caller string `json:"caller"`
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []line {
	t.Helper()
	var out []line
	dec := json.NewDecoder(buf)
	for dec.More() {
		var l line
		require.NoError(t, dec.Decode(&l))
		out = append(out, l)
	}
	return out
}

// emit logs args through the package level functions of testLevel.
func emit(testLevel Level, format string, args ...any) {
	switch testLevel {
	case LevelDebug:
		Debug(args...)
		Debugf(format, args...)
	case LevelInfo:
		Info(args...)
		Infof(format, args...)
	case LevelWarn:
		Warn(args...)
		Warnf(format, args...)
	case LevelError:
		Error(args...)
		Errorf(format, args...)
	}
}

func TestOutput(t *testing.T) {
	defer SetLevel(LevelInfo)
	defer SetOutput(os.Stderr)

	tests := []struct {
		format      string
		args        []any
		testLevel   Level
		loggerLevel Level
		wantLevel   string
		wantMsg     string
	}{
		{"%s", []any{"LevelInfo test"}, LevelInfo, LevelInfo, "INFO", "LevelInfo test"},
		{"%s %s", []any{"LevelInfo", "test"}, LevelInfo, LevelWarn, "", ""},
		{"%s%s", []any{"LevelDebug", "Test"}, LevelDebug, LevelDebug, "DEBUG", "LevelDebugTest"},
		{"%s", []any{"LevelDebug test"}, LevelDebug, LevelInfo, "", ""},
		{"%s", []any{"LevelError test"}, LevelError, LevelInfo, "ERROR", "LevelError test"},
		{"%s", []any{"LevelWarn test"}, LevelWarn, LevelWarn, "WARN", "LevelWarn test"},
	}

	for _, tt := range tests {
		buf := new(bytes.Buffer)
		SetOutput(buf)
		SetLevel(tt.loggerLevel)
		emit(tt.testLevel, tt.format, tt.args...)

		lines := decodeLines(t, buf)
		if tt.wantLevel == "" {
			assert.Empty(t, lines)
			continue
		}
		require.Len(t, lines, 2)
		for _, l := range lines {
			assert.Equal(t, tt.wantLevel, l.Level)
			assert.Equal(t, tt.wantMsg, l.Msg)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "level(9)", Level(9).String())
}

func TestNewZapLoggerIsIndependent(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewZapLogger(buf, LevelError)
	l.Info("dropped")
	l.Errorf("kept %d", 1)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept 1", lines[0].Msg)
}

func TestCallerIsTheLoggingSite(t *testing.T) {
	defer SetOutput(os.Stderr)

	buf := new(bytes.Buffer)
	l := NewZapLogger(buf, LevelInfo)
	l.Info("method")
	l.Infof("method %s", "f")

	SetOutput(buf)
	Info("package")
	Infof("package %s", "f")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	for _, ln := range lines {
		assert.Contains(t, ln.Caller, "fwlog/default_test.go", ln.Msg)
	}
}
