// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package obs provides the process-wide structured logging constructor used
// throughout the gateway, mirroring the one-logger-per-package convention
// of humus.Logger.
package obs

import (
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
)

// SetHandler overrides the process-wide slog.Handler. Intended for tests
// and for swapping in a level-filtered handler once configuration is
// loaded.
func SetHandler(h slog.Handler) {
	mu.Lock()
	defer mu.Unlock()
	handler = h
}

// Logger returns a *slog.Logger scoped to name, attached as a "logger"
// attribute on every record it emits.
func Logger(name string) *slog.Logger {
	mu.Lock()
	h := handler
	mu.Unlock()
	return slog.New(h).With(slog.String("logger", name))
}
