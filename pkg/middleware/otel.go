package middleware

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reliwire-dev/reliwire/pkg/processor"
)

// Default tracer name for engine spans.
const defaultTracerName = "reliwire"

// OTelConfig configures the OpenTelemetry hooks.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "reliwire").
	TracerName string

	// Attributes are added to every request span.
	Attributes []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry hooks.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithAttributes adds constant attributes to every request span.
func WithAttributes(attrs ...attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// OpenTelemetry returns hooks that trace every outbound request as a
// span, opened when the request envelope is transmitted and ended at
// its terminal outcome. Outcome code 0 marks the span Ok; every other
// code marks it Error with the code recorded as an attribute.
//
// The tracer comes from the global OpenTelemetry tracer provider.
// Configure it in main() before opening connections:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	)
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) processor.Hooks {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	spans := &spanTable{open: make(map[string]trace.Span)}

	return processor.Hooks{
		RequestSent: func(stamp string) {
			attrs := append([]attribute.KeyValue{
				attribute.String("reliwire.stamp", stamp),
			}, config.Attributes...)

			_, span := config.tracer.Start(
				context.Background(),
				"reliwire.request",
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(attrs...),
			)
			spans.put(stamp, span)
		},
		RequestResolved: func(stamp string, code processor.Code) {
			span := spans.take(stamp)
			if span == nil {
				return
			}
			if code == 0 {
				span.SetStatus(codes.Ok, "")
			} else {
				span.SetAttributes(attribute.String("reliwire.failure_code", code.String()))
				span.SetStatus(codes.Error, "request failed with code "+code.String())
			}
			span.End()
		},
	}
}

// spanTable maps in-flight request stamps to their spans. Hooks from
// multiple engines may share one table.
type spanTable struct {
	mu   sync.Mutex
	open map[string]trace.Span
}

func (t *spanTable) put(stamp string, span trace.Span) {
	t.mu.Lock()
	t.open[stamp] = span
	t.mu.Unlock()
}

func (t *spanTable) take(stamp string) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.open[stamp]
	if !ok {
		return nil
	}
	delete(t.open, stamp)
	return span
}
