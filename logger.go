package multibuffer

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discard drops every record. Reporting Enabled=false lets slog skip
// building attributes on the acquire and release paths.
type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (d discard) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discard) WithGroup(string) slog.Handler           { return d }

var (
	silent  = slog.New(discard{})
	current atomic.Pointer[slog.Logger]
)

func init() {
	current.Store(silent)
}

// SetLogger routes buffer diagnostics to l. Buffers log nothing until this
// is called; nil switches logging off again. Buffers already in use pick up
// the new logger on their next record.
//
// Records are emitted at debug level for overwrite notifications,
// superseded writes and read timeouts, and at error level for contract
// violations just before the panic.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	current.Store(l)
}

// Logger returns the logger buffers currently write to.
func Logger() *slog.Logger {
	return current.Load()
}
