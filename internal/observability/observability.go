// Package observability installs the process-wide slog logger and, optionally,
// OpenTelemetry log export.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies log records exported through the slog bridge.
const instrumentationName = "github.com/florianilch/ex30link"

// Log exporters supported by Instrument.
const (
	ExporterNone     = ""
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
	ExporterStdout   = "stdout"
)

type options struct {
	exporter string
	writer   io.Writer
}

// Option configures Instrument.
type Option func(*options)

// WithExporter enables OpenTelemetry log export. OTLP exporters read their
// endpoint and headers from the standard OTEL_EXPORTER_OTLP_* variables.
func WithExporter(exporter string) Option {
	return func(o *options) {
		o.exporter = exporter
	}
}

// WithWriter replaces stderr as the destination of local log output.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writer = w
		}
	}
}

// Instrument sets the default slog logger. The returned shutdown flushes pending
// exports and must be called before the process exits.
func Instrument(ctx context.Context, level slog.Level, format string, opts ...Option) (func(context.Context) error, error) {
	o := options{writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	local, err := newLocalHandler(o.writer, level, format)
	if err != nil {
		return nil, err
	}

	if o.exporter == ExporterNone {
		slog.SetDefault(slog.New(local))
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, o.exporter)
	if err != nil {
		return nil, fmt.Errorf("creating %s log exporter: %w", o.exporter, err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))),
	)
	global.SetLoggerProvider(provider)

	// SDK errors go to the local handler only, exporting them could loop
	localLogger := slog.New(local)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		localLogger.Warn("opentelemetry error", "error", err)
	}))

	slog.SetDefault(slog.New(fanout{
		local,
		otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)),
	}))

	return provider.Shutdown, nil
}

func newLocalHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch format {
	case "", "text":
		return slog.NewTextHandler(w, handlerOpts), nil
	case "json":
		return slog.NewJSONHandler(w, handlerOpts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, name string) (sdklog.Exporter, error) {
	switch name {
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(os.Stdout))
	default:
		return nil, errors.New("unsupported log exporter")
	}
}

// severity maps the configured slog level onto the OpenTelemetry severity filter.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
