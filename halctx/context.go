// Package halctx carries transfer tracing through a context. Drivers call
// Dump with the bytes they put on or take off the wire; nothing is logged
// unless the context was marked with WithTrace.
package halctx

import (
	"context"
	"encoding/hex"
	"log/slog"
)

type traceKey struct{}

// WithTrace enables or disables transfer dumps for calls made with ctx.
func WithTrace(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, traceKey{}, enabled)
}

func Tracing(ctx context.Context) bool {
	enabled, _ := ctx.Value(traceKey{}).(bool)
	return enabled
}

// Dump logs data as a hex dump at debug level when ctx is tracing.
func Dump(ctx context.Context, msg string, data []byte, args ...any) {
	if !Tracing(ctx) {
		return
	}
	slog.DebugContext(ctx, msg, append(args, "data", hex.EncodeToString(data), "len", len(data))...)
}
