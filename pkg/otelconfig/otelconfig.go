// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelconfig builds OpenTelemetry tracer and meter providers from config.
package otelconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Supported exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterGCP    = "gcp"
)

// Config selects and configures a trace exporter.
type Config struct {
	ServiceName string `config:"serviceName"`
	Exporter    string `config:"exporter"`

	// Target is the OTLP collector gRPC target.
	Target string `config:"target"`

	// ProjectId is the Google Cloud project traces are exported to.
	ProjectId string `config:"projectId"`
}

// UnknownExporterError is returned by [FromConfig] for an unsupported exporter.
type UnknownExporterError struct {
	Exporter string
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown trace exporter: %s", e.Exporter)
}

// FromConfig returns the [Initializer] described by cfg. An empty exporter
// is the same as [ExporterNone].
func FromConfig(cfg Config) (Initializer, error) {
	switch cfg.Exporter {
	case "", ExporterNone:
		return Noop, nil
	case ExporterStdout:
		return Local(ServiceName(cfg.ServiceName)), nil
	case ExporterOTLP:
		return OTLP(ServiceName(cfg.ServiceName), OTLPTarget(cfg.Target)), nil
	case ExporterGCP:
		return GoogleCloud(ServiceName(cfg.ServiceName), GoogleCloudProjectId(cfg.ProjectId)), nil
	default:
		return nil, UnknownExporterError{Exporter: cfg.Exporter}
	}
}

// Providers are the tracer and meter providers registered by [Install].
type Providers struct {
	Tracer trace.TracerProvider
	Meter  metric.MeterProvider
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// Shutdown flushes and stops each provider which supports it.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, v := range []any{p.Tracer, p.Meter} {
		sd, ok := v.(shutdowner)
		if !ok {
			continue
		}
		errs = append(errs, sd.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Install initializes a tracer provider and, if i is also a
// [MeterInitializer], a meter provider, and registers them globally.
// Otherwise the current global meter provider is kept.
func Install(i Initializer) (*Providers, error) {
	tp, err := i.Init()
	if err != nil {
		return nil, err
	}

	p := &Providers{
		Tracer: tp,
		Meter:  otel.GetMeterProvider(),
	}
	if mi, ok := i.(MeterInitializer); ok {
		mp, err := mi.InitMeter()
		if err != nil {
			return nil, errors.Join(err, p.Shutdown(context.Background()))
		}
		p.Meter = mp
		otel.SetMeterProvider(mp)
	}
	if tp != otel.GetTracerProvider() {
		otel.SetTracerProvider(tp)
	}
	return p, nil
}

// Common holds the settings shared by every exporter.
type Common struct {
	ServiceName string `config:"serviceName"`
}

// CommonOption
type CommonOption interface {
	GoogleCloudOption
	LocalOption
	OTLPOption
}

type commonOptionFunc func(*Common)

func (f commonOptionFunc) ApplyGCP(cfg *GoogleCloudConfig) {
	f(&cfg.Common)
}

func (f commonOptionFunc) ApplyOTLP(cfg *OTLPConfig) {
	f(&cfg.Common)
}

func (f commonOptionFunc) ApplyLocal(cfg *LocalConfig) {
	f(&cfg.Common)
}

// ServiceName sets the service.name resource attribute.
func ServiceName(name string) CommonOption {
	return commonOptionFunc(func(c *Common) {
		c.ServiceName = name
	})
}

func (c Common) resource(ctx context.Context, opts ...resource.Option) (*resource.Resource, error) {
	opts = append(
		opts,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(c.ServiceName)),
	)
	return resource.New(ctx, opts...)
}

// Initializer creates a tracer provider.
type Initializer interface {
	Init() (trace.TracerProvider, error)
}

// MeterInitializer creates a meter provider.
type MeterInitializer interface {
	InitMeter() (metric.MeterProvider, error)
}

// Noop leaves the currently registered tracer provider in place.
var Noop = noopConfiger{}

type noopConfiger struct{}

func (noopConfiger) Init() (trace.TracerProvider, error) {
	return otel.GetTracerProvider(), nil
}

// LocalConfig
type LocalConfig struct {
	Common

	Out io.Writer
}

// LocalOption
type LocalOption interface {
	ApplyLocal(*LocalConfig)
}

type localOptionFunc func(*LocalConfig)

func (f localOptionFunc) ApplyLocal(cfg *LocalConfig) {
	f(cfg)
}

// LocalWriter sets where spans and metrics are printed. The default is os.Stdout.
func LocalWriter(w io.Writer) LocalOption {
	return localOptionFunc(func(lc *LocalConfig) {
		lc.Out = w
	})
}

// Local returns an Initializer which prints spans and metrics, which is
// mostly useful while developing an application.
func Local(opts ...LocalOption) Initializer {
	cfg := LocalConfig{
		Out: os.Stdout,
	}
	for _, opt := range opts {
		opt.ApplyLocal(&cfg)
	}
	return cfg
}

// Init implements Initializer interface.
func (cfg LocalConfig) Init() (trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cfg.Out),
	)
	if err != nil {
		return nil, err
	}

	res, err := cfg.Common.resource(context.Background())
	if err != nil {
		return nil, err
	}

	// spans are exported synchronously so nothing is lost on exit
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

// InitMeter implements the MeterInitializer interface. Metrics are
// exported periodically and once more on shutdown.
func (cfg LocalConfig) InitMeter() (metric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(cfg.Out),
	)
	if err != nil {
		return nil, err
	}

	res, err := cfg.Common.resource(context.Background())
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	return mp, nil
}
