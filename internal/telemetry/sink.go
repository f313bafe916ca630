package telemetry

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "copilot-survey/telemetry"

// Dependency describes one call to an external collaborator.
type Dependency struct {
	Name     string // e.g. "CreateIssue"
	Target   string // e.g. "github"
	Start    time.Time
	Duration time.Duration
	Success  bool
}

// Sink receives custom events, dependency calls and exceptions.
// Implementations never fail the caller.
type Sink interface {
	TrackEvent(ctx context.Context, name string, props map[string]string)
	TrackDependency(ctx context.Context, dep Dependency)
	TrackException(ctx context.Context, err error, props map[string]string)
}

type noopSink struct{}

// NewNoopSink is used when no telemetry backend is configured.
func NewNoopSink() Sink {
	return noopSink{}
}

func (noopSink) TrackEvent(context.Context, string, map[string]string) {}
func (noopSink) TrackDependency(context.Context, Dependency)           {}
func (noopSink) TrackException(context.Context, error, map[string]string) {
}

type otelSink struct {
	tracer trace.Tracer
}

// NewOTelSink records onto the globally registered tracer provider.
// Events and exceptions attach to the active span; dependencies become client spans.
func NewOTelSink() Sink {
	return &otelSink{tracer: otel.Tracer(instrumentationName)}
}

func (s *otelSink) TrackEvent(ctx context.Context, name string, props map[string]string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		_, span = s.tracer.Start(ctx, name)
		defer span.End()
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(props)...))
}

func (s *otelSink) TrackDependency(ctx context.Context, dep Dependency) {
	start := dep.Start
	if start.IsZero() {
		start = time.Now().Add(-dep.Duration)
	}

	_, span := s.tracer.Start(ctx, dep.Target+" "+dep.Name,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dependency.target", dep.Target),
			attribute.String("dependency.name", dep.Name),
			attribute.Bool("dependency.success", dep.Success),
		),
	)
	if !dep.Success {
		span.SetStatus(codes.Error, dep.Name+" failed")
	}
	span.End(trace.WithTimestamp(start.Add(dep.Duration)))
}

func (s *otelSink) TrackException(ctx context.Context, err error, props map[string]string) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		_, span = s.tracer.Start(ctx, "exception")
		defer span.End()
	}
	span.RecordError(err, trace.WithAttributes(toAttributes(props)...))
	span.SetStatus(codes.Error, err.Error())

	slog.DebugContext(ctx, "exception tracked", "error", err)
}

func toAttributes(props map[string]string) []attribute.KeyValue {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(props))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, props[k]))
	}
	return attrs
}
