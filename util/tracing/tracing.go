// Package tracing wraps OpenTelemetry spans with the optional prometheus
// observation and start/finish logging used around message handling.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options func(s *TraceOptions)

type TraceOptions struct {
	Histogram  prometheus.Observer
	Counter    prometheus.Counter
	Logger     ulogger.Logger
	LogMessage string
	LogArgs    []interface{}
	Tags       []attribute.KeyValue
}

// WithHistogram sets the prometheus histogram to be observed when the span is finished.
func WithHistogram(histogram prometheus.Observer) Options {
	return func(s *TraceOptions) {
		s.Histogram = histogram
	}
}

// WithCounter sets the prometheus counter to be incremented when the span is finished.
func WithCounter(counter prometheus.Counter) Options {
	return func(s *TraceOptions) {
		s.Counter = counter
	}
}

// WithLogMessage logs format at DEBUG level when the span starts and again,
// with the elapsed time, when it ends.
func WithLogMessage(logger ulogger.Logger, format string, args ...interface{}) Options {
	return func(s *TraceOptions) {
		s.Logger = logger
		s.LogMessage = format
		s.LogArgs = args
	}
}

func WithTag(key, value string) Options {
	return func(s *TraceOptions) {
		s.Tags = append(s.Tags, attribute.String(key, value))
	}
}

// UTracer is a named otel tracer.
type UTracer struct {
	tracer trace.Tracer
}

func Tracer(name string) *UTracer {
	return &UTracer{tracer: otel.Tracer(name)}
}

// Start opens a span. The returned function ends it; passing a non-nil error
// records the error on the span and in the finish log line.
func (u *UTracer) Start(ctx context.Context, name string, setOptions ...Options) (context.Context, trace.Span, func(...error)) {
	options := &TraceOptions{}
	for _, opt := range setOptions {
		opt(options)
	}

	start := time.Now()

	ctx, span := u.tracer.Start(ctx, name, trace.WithAttributes(options.Tags...))

	if options.Logger != nil && options.LogMessage != "" {
		options.Logger.Debugf(options.LogMessage, options.LogArgs...)
	}

	return ctx, span, func(errs ...error) {
		var err error

		for _, e := range errs {
			if e != nil {
				err = e
				break
			}
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()

		if options.Histogram != nil {
			options.Histogram.Observe(time.Since(start).Seconds())
		}

		if options.Counter != nil {
			options.Counter.Inc()
		}

		if options.Logger != nil && options.LogMessage != "" {
			done := fmt.Sprintf(" DONE in %s", time.Since(start))
			if err != nil {
				done += fmt.Sprintf(" with error: %v", err)
			}

			options.Logger.Debugf(options.LogMessage+done, options.LogArgs...)
		}
	}
}
