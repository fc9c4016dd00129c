package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to the logger at debug level.
type logExporter struct {
	logger *slog.Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.logger.DebugContext(ctx, "span finished",
			slog.String("name", s.Name()),
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.Duration("duration", s.EndTime().Sub(s.StartTime())),
			slog.String("status", s.Status().Code.String()),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }

func newTracerProvider(logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(&logExporter{logger: logger}),
	)
}

// recordExporter writes OpenTelemetry log records as one line each, with
// the trace and span they were emitted in.
type recordExporter struct {
	w   io.Writer
	min otellog.Severity
}

func (e *recordExporter) Export(_ context.Context, records []sdklog.Record) error {
	for _, r := range records {
		if r.Severity() < e.min {
			continue
		}
		if _, err := fmt.Fprintf(e.w, "otel-log severity=%s trace_id=%s span_id=%s body=%q\n",
			r.SeverityText(), r.TraceID(), r.SpanID(), r.Body().AsString()); err != nil {
			return err
		}
	}
	return nil
}

func (e *recordExporter) Shutdown(context.Context) error   { return nil }
func (e *recordExporter) ForceFlush(context.Context) error { return nil }

// newLoggerProvider returns a provider exporting records at or above
// level to w. slog levels map onto OpenTelemetry severities by an offset
// of 9, as the otelslog bridge converts them.
func newLoggerProvider(w io.Writer, level slog.Level) *sdklog.LoggerProvider {
	exp := &recordExporter{w: w, min: otellog.Severity(int(level) + 9)}
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
}
