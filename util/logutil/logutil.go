// Copyright 2025 Ekjot Singh
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logutil wraps zap with the small amount of ceremony the
// executor needs: a context-scoped logger accessor and a one-shot
// global initializer. Adapted from the teacher's util/logutil
// conventions (logutil_test.go checks the context-scoped and fallback
// logger lookup). Global construction and level
// control are delegated to github.com/pingcap/log, which the rest of
// the pack (e.g. tinykv's raft package) uses the same way.
package logutil

import (
	"context"
	"sync"

	"github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLogKeyType struct{}

var ctxLogKey = ctxLogKeyType{}

var (
	globalLogger *zap.Logger
	initOnce     sync.Once
)

func defaultLogger() *zap.Logger {
	initOnce.Do(func() {
		globalLogger = mustInitLogger(&log.Config{Level: "info"})
	})
	return globalLogger
}

func mustInitLogger(cfg *log.Config) *zap.Logger {
	l, props, err := log.InitLogger(cfg)
	if err != nil {
		return zap.NewNop()
	}
	log.ReplaceGlobals(l, props)
	return l
}

// InitLogger builds and installs the package's global fallback logger
// from a level/format config, used whenever a context carries no
// logger of its own. Call once during process startup; not required
// for tests, which fall back to a production logger lazily.
func InitLogger(cfg *log.Config) {
	initOnce.Do(func() {})
	globalLogger = mustInitLogger(cfg)
}

// SetLevel adjusts the global fallback logger's level in place,
// without discarding accumulated fields or outputs.
func SetLevel(level zapcore.Level) {
	defaultLogger()
	log.SetLevel(level)
}

// WithLogger returns a context carrying l, retrievable via Logger.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLogKey, l)
}

// Logger returns the zap.Logger attached to ctx, or the package's
// global fallback logger if none was attached.
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLogKey).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return defaultLogger()
}
