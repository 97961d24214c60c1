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
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger Logger = NewZapLogger(os.Stderr, LevelInfo)

// SetOutput sets the output of default logger. By default, it is stderr.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetLevel sets the level of logs below which logs will not be output.
// The default log level is LevelInfo.
func SetLevel(lv Level) {
	logger.SetLevel(lv)
}

// DefaultLogger returns the process wide logger.
func DefaultLogger() Logger {
	return logger
}

// SetLogger sets the default logger.
// Note that this method is not concurrent-safe and must not be called
// after the use of DefaultLogger and global functions in this package.
func SetLogger(v Logger) {
	logger = v
}

// global returns the logger used by the package level functions. For the
// zap logger it is a view that skips one more frame, so callers of Infof and
// friends are reported instead of this package.
func global() Logger {
	if zl, ok := logger.(*zapLogger); ok {
		return zl.pkg
	}
	return logger
}

// Fatal calls the default logger's Fatal method and then os.Exit(1).
func Fatal(v ...any) {
	global().Fatal(v...)
}

// Error calls the default logger's Error method.
func Error(v ...any) {
	global().Error(v...)
}

// Warn calls the default logger's Warn method.
func Warn(v ...any) {
	global().Warn(v...)
}

// Info calls the default logger's Info method.
func Info(v ...any) {
	global().Info(v...)
}

// Debug calls the default logger's Debug method.
func Debug(v ...any) {
	global().Debug(v...)
}

// Fatalf calls the default logger's Fatalf method and then os.Exit(1).
func Fatalf(format string, v ...any) {
	global().Fatalf(format, v...)
}

// Errorf calls the default logger's Errorf method.
func Errorf(format string, v ...any) {
	global().Errorf(format, v...)
}

// Warnf calls the default logger's Warnf method.
func Warnf(format string, v ...any) {
	global().Warnf(format, v...)
}

// Infof calls the default logger's Infof method.
func Infof(format string, v ...any) {
	global().Infof(format, v...)
}

// Debugf calls the default logger's Debugf method.
func Debugf(format string, v ...any) {
	global().Debugf(format, v...)
}

// zapState is shared by a zapLogger and its package level view. The level is
// atomic so SetLevel may be called from the config watcher while uploads are
// logging.
type zapState struct {
	mu       sync.RWMutex
	sugar    *zap.SugaredLogger
	pkgSugar *zap.SugaredLogger
	level    zap.AtomicLevel
}

// zapLogger writes JSON lines through a zap core.
type zapLogger struct {
	state *zapState
	// viaPkg selects the sugar that skips the package level function frame.
	viaPkg bool
	pkg    *zapLogger
}

// NewZapLogger builds a Logger writing to w at the given level.
func NewZapLogger(w io.Writer, lv Level) Logger {
	st := &zapState{level: zap.NewAtomicLevelAt(lv.toZapLevel())}
	st.build(w)
	zl := &zapLogger{state: st}
	zl.pkg = &zapLogger{state: st, viaPkg: true}
	return zl
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return ec
}

func (st *zapState) build(w io.Writer) {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(w), st.level)
	sugar := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	st.mu.Lock()
	st.sugar = sugar
	st.pkgSugar = sugar.WithOptions(zap.AddCallerSkip(1))
	st.mu.Unlock()
}

func (l *zapLogger) s() *zap.SugaredLogger {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	if l.viaPkg {
		return l.state.pkgSugar
	}
	return l.state.sugar
}

func (l *zapLogger) SetLevel(lv Level) {
	l.state.level.SetLevel(lv.toZapLevel())
}

func (l *zapLogger) SetOutput(w io.Writer) {
	l.state.build(w)
}

func (l *zapLogger) Fatal(v ...any) {
	l.s().Fatal(v...)
}

func (l *zapLogger) Error(v ...any) {
	l.s().Error(v...)
}

func (l *zapLogger) Warn(v ...any) {
	l.s().Warn(v...)
}

func (l *zapLogger) Info(v ...any) {
	l.s().Info(v...)
}

func (l *zapLogger) Debug(v ...any) {
	l.s().Debug(v...)
}

func (l *zapLogger) Fatalf(format string, v ...any) {
	l.s().Fatalf(format, v...)
}

func (l *zapLogger) Errorf(format string, v ...any) {
	l.s().Errorf(format, v...)
}

func (l *zapLogger) Warnf(format string, v ...any) {
	l.s().Warnf(format, v...)
}

func (l *zapLogger) Infof(format string, v ...any) {
	l.s().Infof(format, v...)
}

func (l *zapLogger) Debugf(format string, v ...any) {
	l.s().Debugf(format, v...)
}
