package util

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
	"github.com/HDFGroup/hdf5-json/pkg/tracing"
)

// The module name used for unique strings, such as tracing identifiers.
const Module = "github.com/HDFGroup/hdf5-json"

// TraceSettings are the tracing flags of one invocation.
type TraceSettings struct {
	// File receives spans as indented JSON.
	File string
	// HTTP sends spans to an OTLP collector; Endpoint and Insecure refine it.
	HTTP     bool
	Endpoint string
	Insecure bool
}

func traceSettingsFrom(c *cli.Context) TraceSettings {
	return TraceSettings{
		File:     c.String("trace.file"),
		HTTP:     c.Bool("trace.http.enable"),
		Endpoint: c.String("trace.http.endpoint"),
		Insecure: c.Bool("trace.http.insecure"),
	}
}

// tracingResource describes this process: the service, plus the
// document format and store engine every span of it works with.
func tracingResource(version string) (*resource.Resource, error) {
	own := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("h5json"),
		semconv.ServiceNamespaceKey.String(Module),
		semconv.ServiceVersionKey.String(version),
		attribute.String(tracing.AttrKeyAPIVersion, h5api.APIVersion),
		attribute.String(tracing.AttrKeyEngine, memstore.EngineName),
		attribute.String(tracing.AttrKeyEngineVersion, memstore.EngineVersion),
	)
	res, err := resource.Merge(resource.Default(), own)
	if err != nil {
		return nil, err
	}
	return resource.Merge(res, resource.Environment())
}

// newTracingProvider builds a provider exporting to every destination s names.
// With no destination it returns nil.
func newTracingProvider(ctx context.Context, s TraceSettings, version string) (_ *sdktrace.TracerProvider, retErr error) {
	var exporters []sdktrace.TracerProviderOption
	fileExporter, err := newFileSpanExporter(ctx, s.File)
	if err != nil {
		return nil, err
	}
	defer func() {
		if retErr != nil {
			fileExporter.Shutdown(ctx)
		}
	}()
	if fileExporter != nil {
		exporters = append(exporters, sdktrace.WithBatcher(fileExporter))
	}
	if s.HTTP {
		var httpOpts []otlptracehttp.Option
		if s.Endpoint != "" {
			logging.Ctx(ctx).Debug("", "sending spans to %s", s.Endpoint)
			httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(s.Endpoint))
		}
		if s.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		httpExporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(httpOpts...))
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, sdktrace.WithBatcher(httpExporter))
	}
	if len(exporters) == 0 {
		return nil, nil
	}

	res, err := tracingResource(version)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}, exporters...)...), nil
}

// fileSpanExporter closes its file on Shutdown.
type fileSpanExporter struct {
	sdktrace.SpanExporter
	io.Closer
}

// Shutdown flushes the exporter and closes the file.
//
// Errors:
//
//   - h5json-error-internal -- when the exporter fails to flush
func (e *fileSpanExporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	defer e.Closer.Close()
	if err := e.SpanExporter.Shutdown(ctx); err != nil {
		return h5api.ErrorInternal("tracing shutdown failed", err)
	}
	return nil
}

// newFileSpanExporter truncates name; nothing happens for an empty name.
func newFileSpanExporter(ctx context.Context, name string) (*fileSpanExporter, error) {
	if name == "" {
		return nil, nil
	}
	logging.Ctx(ctx).Debug("", "writing spans to %s", name)
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(f),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSpanExporter{exp, f}, nil
}
