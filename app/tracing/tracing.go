// Package tracing sets up OpenTelemetry tracing for the server
package tracing

import (
	"context"
	"io"
	"os"

	"github.com/xavierroma/vala/app/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xavierroma/vala"

// Tracer starts spans for served requests
type Tracer struct {
	trace.Tracer
	ShutdownFunc func(context.Context) error
}

// New returns a Tracer for the provided options. Provider "stdout" exports
// spans to w (os.Stdout when nil); anything else returns a no-op Tracer.
func New(opts *config.TracingConfig, w io.Writer) (*Tracer, error) {
	if opts == nil || opts.Provider != "stdout" {
		return NoOp(), nil
	}
	if w == nil {
		w = os.Stdout
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	rate := opts.SampleRate
	if rate <= 0 {
		rate = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", opts.ServiceName),
		)),
	)
	return &Tracer{
		Tracer:       tp.Tracer(instrumentationName),
		ShutdownFunc: tp.Shutdown,
	}, nil
}

// NewWithProcessor returns a Tracer that hands every span to sp
func NewWithProcessor(sp sdktrace.SpanProcessor) *Tracer {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sp))
	return &Tracer{
		Tracer:       tp.Tracer(instrumentationName),
		ShutdownFunc: tp.Shutdown,
	}
}

// NoOp returns a Tracer that records nothing
func NoOp() *Tracer {
	return &Tracer{
		Tracer:       trace.NewNoopTracerProvider().Tracer(instrumentationName),
		ShutdownFunc: func(context.Context) error { return nil },
	}
}

// StartRequest starts a server span for one request
func (t *Tracer) StartRequest(ctx context.Context, method, path, remote string) (context.Context, trace.Span) {
	return t.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.target", path),
			attribute.String("net.peer.addr", remote),
		),
	)
}

// EndRequest records the outcome of the request and ends the span
func EndRequest(span trace.Span, status int, dispatch string, err error) {
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.String("vala.dispatch", dispatch),
	)
	if err != nil {
		span.RecordError(err)
	}
	if status >= 500 {
		msg := "server error"
		if err != nil {
			msg = err.Error()
		}
		span.SetStatus(codes.Error, msg)
	}
	span.End()
}

// Shutdown flushes and stops the underlying provider
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.ShutdownFunc == nil {
		return nil
	}
	return t.ShutdownFunc(ctx)
}
