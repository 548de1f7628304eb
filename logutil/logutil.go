// Copyright 2024 The eth-indexer Authors
// This file is part of the eth-indexer library.
//
// The eth-indexer library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The eth-indexer library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the eth-indexer library. If not, see <http://www.gnu.org/licenses/>.

// Package logutil builds the process-wide zap logger and hands out named
// module loggers. Every package declares its logger once at the top:
//
//	var logger = logutil.NewModuleLogger("indexer")
package logutil

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.Mutex
	root *zap.SugaredLogger
)

// Init configures the root logger from a LOG_LEVEL string (debug, info, warn,
// error). It may be called once before any module logger is used; module
// loggers created earlier keep the default info level.
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()
	root = build(level)
}

// NewModuleLogger returns a named logger for one module of the indexer.
func NewModuleLogger(module string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		root = build("info")
	}
	return root.Named(module)
}

func build(level string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		lvl = parsed
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}
