// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelconfig

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultDialTimeout bounds how long [OTLPConfig.Init] and
// [OTLPConfig.InitMeter] wait for the collector.
const DefaultDialTimeout = time.Second

// OTLPConfig
type OTLPConfig struct {
	Common

	// gRPC target string which is passed to grpc.DialContext()
	Target string `config:"target"`

	DialTimeout time.Duration `config:"dialTimeout"`
}

// OTLPOption
type OTLPOption interface {
	ApplyOTLP(*OTLPConfig)
}

type otlpOptionFunc func(*OTLPConfig)

func (f otlpOptionFunc) ApplyOTLP(cfg *OTLPConfig) {
	f(cfg)
}

// OTLPTarget sets the collector gRPC target, e.g. "localhost:4317".
func OTLPTarget(target string) OTLPOption {
	return otlpOptionFunc(func(oc *OTLPConfig) {
		oc.Target = target
	})
}

// OTLPDialTimeout overrides [DefaultDialTimeout].
func OTLPDialTimeout(d time.Duration) OTLPOption {
	return otlpOptionFunc(func(oc *OTLPConfig) {
		oc.DialTimeout = d
	})
}

// OTLP returns an Initializer which exports spans and metrics to an OTLP
// collector over gRPC.
func OTLP(opts ...OTLPOption) Initializer {
	c := OTLPConfig{
		DialTimeout: DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt.ApplyOTLP(&c)
	}
	return c
}

var errMissingTarget = errors.New("otlp exporter requires a target")

func (cfg OTLPConfig) dial(ctx context.Context) (*resource.Resource, *grpc.ClientConn, error) {
	if cfg.Target == "" {
		return nil, nil, errMissingTarget
	}

	res, err := cfg.Common.resource(ctx)
	if err != nil {
		return nil, nil, err
	}

	conn, err := grpc.DialContext(
		ctx,
		cfg.Target,
		// Note the use of insecure transport here. TLS is recommended in production.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, nil, err
	}
	return res, conn, nil
}

// Init implements Initializer interface.
func (cfg OTLPConfig) Init() (trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	res, conn, err := cfg.dial(ctx)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	return tp, nil
}

// InitMeter implements the MeterInitializer interface.
func (cfg OTLPConfig) InitMeter() (metric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	res, conn, err := cfg.dial(ctx)
	if err != nil {
		return nil, err
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	return mp, nil
}
