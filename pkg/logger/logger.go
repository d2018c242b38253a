// Copyright 2025 Kadir Pekel
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

// Package logger sets up the process-wide structured logger. Every
// component takes a *slog.Logger (or calls logger.Get() for the
// process default) and attaches structured fields rather than
// formatting messages by hand.
package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
)

const substratePackagePrefix = "github.com/kadirpekel/substrate"

var (
	mu      sync.Mutex
	current *slog.Logger
)

// ParseLevel converts a string log level ("debug", "info", "warn",
// "error") to an slog.Level, defaulting to Warn for anything else.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// filteringHandler suppresses third-party library logs unless the
// minimum level is Debug, so a production INFO-level run isn't drowned
// out by dependency chatter.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || h.isSubstratePackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isSubstratePackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), substratePackagePrefix) || strings.Contains(file, "substrate/")
}

// Init configures the process-wide default logger at level, writing to
// output. Subsequent calls to Get return this logger; slog.SetDefault is
// also called so libraries that reach for slog.Default() pick it up.
func Init(level slog.Level, output *os.File) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String(slog.LevelKey, "WARN")
			}
			return a
		},
	}

	handler := &filteringHandler{handler: slog.NewJSONHandler(output, opts), minLevel: level}
	l := slog.New(handler)

	mu.Lock()
	current = l
	mu.Unlock()

	slog.SetDefault(l)
	return l
}

// Get returns the process default logger, initializing one at Info
// level to stderr if Init hasn't been called yet.
func Get() *slog.Logger {
	mu.Lock()
	l := current
	mu.Unlock()
	if l != nil {
		return l
	}
	return Init(slog.LevelInfo, os.Stderr)
}

// Component returns l (or the process default, if l is nil) with a
// "component" field attached, the convention every package in this
// module follows when accepting an optional logger.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Get()
	}
	return l.With(slog.String("component", name))
}
