//go:build !(rp2040 || rp2350)

package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	level  = new(slog.LevelVar)
	mu     sync.RWMutex
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
)

func init() { level.Set(slog.LevelWarn) }

// SetLevel sets the minimum level for all components.
func SetLevel(l Level) { level.Set(slog.Level(l)) }

// SetOutput redirects logging to w in text format.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	mu.Unlock()
}

func log(l Level, c Component, msg string, args []any) {
	mu.RLock()
	lg := logger
	mu.RUnlock()
	lg.Log(context.Background(), slog.Level(l), msg, append([]any{"component", string(c)}, args...)...)
}

func Debug(c Component, msg string, args ...any) { log(LevelDebug, c, msg, args) }
func Info(c Component, msg string, args ...any)  { log(LevelInfo, c, msg, args) }
func Warn(c Component, msg string, args ...any)  { log(LevelWarn, c, msg, args) }
func Error(c Component, msg string, args ...any) { log(LevelError, c, msg, args) }
