package bloom

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/mreinstein/cobalt-bloom/gpu"
)

// nopHandler is a slog.Handler that silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger for bloom and the gpu packages it drives.
// By default nothing is logged. Pass nil to restore that.
//
// Levels used:
//   - [slog.LevelDebug]: per-frame and per-call detail
//   - [slog.LevelInfo]: target allocation, resize, release
//   - [slog.LevelError]: the message of a fatal guarantee, just before the panic
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
	gpu.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
