// Package logging holds the process-wide zerolog logger for the parking
// service. Every entry carries the service name and environment; entries
// logged with a context inside a span also carry its trace and span IDs.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var logger = zerolog.Nop()

type Options struct {
	Service     string
	Environment string
	// Development switches to the console writer with caller info.
	Development bool
	// Out defaults to os.Stdout.
	Out io.Writer
}

func Init(opts Options) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339

	if opts.Development {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.Environment != "" {
		ctx = ctx.Str("env", opts.Environment)
	}
	if opts.Development {
		ctx = ctx.Caller()
	}
	logger = ctx.Logger()
}

func Logger() *zerolog.Logger {
	return &logger
}

// Component returns a child logger tagged with the subsystem name, e.g.
// "http" or "scheduler".
func Component(name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func WithContext(ctx context.Context) zerolog.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return logger
	}
	return logger.With().
		Str("traceId", sc.TraceID().String()).
		Str("spanId", sc.SpanID().String()).
		Logger()
}

func Info(ctx context.Context) *zerolog.Event {
	l := WithContext(ctx)
	return l.Info()
}

func Warn(ctx context.Context) *zerolog.Event {
	l := WithContext(ctx)
	return l.Warn()
}

func Error(ctx context.Context) *zerolog.Event {
	l := WithContext(ctx)
	return l.Error()
}

func Debug(ctx context.Context) *zerolog.Event {
	l := WithContext(ctx)
	return l.Debug()
}
