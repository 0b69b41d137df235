// Package trace fills in the eventlog.TraceContext carried on every event.
//
// When the caller's context.Context holds an ambient OpenTelemetry span, its
// ids are copied onto the event. When it doesn't — the common case for a
// direct EventStream.Append call with no surrounding instrumentation — a
// synthetic trace/span pair is fabricated so every event still carries
// non-null trace metadata, per the spec's §9 "Trace context" design note.
// No span is exported anywhere; this package only produces identifiers.
package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/iteratehq/eventbroker/internal/eventlog"
)

// nowFunc is overridable in tests.
var nowFunc = time.Now

// Capture derives a TraceContext for an event being appended under ctx. If
// an ambient, valid span context is present, its trace id and span id are
// used (with the span's own parent left unset — we only know the active
// span here, not its parent). Otherwise a synthetic, stable-for-this-call
// trace is generated.
func Capture(ctx context.Context) eventlog.TraceContext {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		return eventlog.TraceContext{
			TraceId: sc.TraceID().String(),
			SpanId:  sc.SpanID().String(),
		}
	}
	return synthesize()
}

// synthesize fabricates {traceId: "untraced-<time>-<rand>", spanId:
// "untraced"}, unique per invocation, stable for the duration of the append
// it's attached to (i.e. it is computed once per Capture call).
func synthesize() eventlog.TraceContext {
	return eventlog.TraceContext{
		TraceId: fmt.Sprintf("untraced-%d-%s", nowFunc().UnixNano(), uuid.NewString()),
		SpanId:  "untraced",
	}
}

// StartChildSpan starts a span linked to ev's trace, for use by processors
// and consumers reacting to a live event (§4.4: "processors start child
// spans linked to the event's span"). The returned context carries the new
// span; callers are responsible for ending it when the reaction completes.
func StartChildSpan(ctx context.Context, tracerName string, ev eventlog.Event) (context.Context, trace.Span) {
	parent, err := parseSpanContext(ev.Trace)
	if err == nil {
		ctx = trace.ContextWithSpanContext(ctx, parent)
	}
	tracer := noop.NewTracerProvider().Tracer(tracerName)
	return tracer.Start(ctx, string(ev.Type))
}

func parseSpanContext(tc eventlog.TraceContext) (trace.SpanContext, error) {
	traceID, err := trace.TraceIDFromHex(padHex(tc.TraceId, 32))
	if err != nil {
		return trace.SpanContext{}, err
	}
	spanID, err := trace.SpanIDFromHex(padHex(tc.SpanId, 16))
	if err != nil {
		return trace.SpanContext{}, err
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
		Remote:  true,
	}), nil
}

// padHex right-pads s with '0' or truncates it to exactly width
// characters so it can be handed to otel's hex id parsers. It does not
// convert non-hex characters: synthetic ids ("untraced", "untraced-...")
// still fail to parse, and StartChildSpan then starts its span without a
// parent. Real otel-derived ids are already hex of the right width and pass
// through unchanged.
func padHex(s string, width int) string {
	if len(s) == width {
		return s
	}
	if len(s) > width {
		return s[:width]
	}
	out := make([]byte, width)
	for i := range out {
		out[i] = '0'
	}
	copy(out, s)
	return string(out)
}
