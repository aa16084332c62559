package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrVersion = "version"
	attrEnv     = "env"
	attrMode    = "mode"

	redacted = "[redacted]"
)

// secretKeys are log attribute keys whose values are replaced before output.
var secretKeys = []string{"token", "authorization", "password", "secret"}

// HandlerMeta is the service metadata attached to every log record.
type HandlerMeta struct {
	Service string
	Version string
	Env     string
	Mode    AppMode
}

// TracingHandler is an [slog.Handler] that injects OpenTelemetry trace context
// (trace_id, span_id) and service metadata into every log record, and redacts
// attributes that look like credentials.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps an [slog.Handler]. The metadata is attached to the
// inner handler up front so it stays at the top level under WithGroup.
func NewTracingHandler(inner slog.Handler, meta HandlerMeta) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, meta.Service),
		slog.String(attrMode, string(meta.Mode)),
	}

	if meta.Version != "" {
		attrs = append(attrs, slog.String(attrVersion, meta.Version))
	}

	if meta.Env != "" {
		attrs = append(attrs, slog.String(attrEnv, meta.Env))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds trace context, redacts secrets, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))

		return true
	})

	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		out.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	err := th.inner.Handle(ctx, out)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a new TracingHandler with additional attributes on the inner handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redact(a)
	}

	return &TracingHandler{inner: th.inner.WithAttrs(clean)}
}

// WithGroup returns a new TracingHandler with a group prefix on the inner handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

func redact(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		clean := make([]any, len(group))

		for i, g := range group {
			clean[i] = redact(g)
		}

		return slog.Group(a.Key, clean...)
	}

	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, redacted)
		}
	}

	return a
}
