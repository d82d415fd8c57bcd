// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/z5labs/wsgate/internal/try"
	"github.com/z5labs/wsgate/pkg/noop"
	"github.com/z5labs/wsgate/pkg/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/z5labs/wsgate/wsgi"

type serverOptions struct {
	logHandler slog.Handler
	diag       io.Writer
	errs       io.Writer
	now        func() time.Time
	listenOpts []ListenOption
	tp         trace.TracerProvider
	mp         metric.MeterProvider
}

// ServerOption configures a [Server].
type ServerOption func(*serverOptions)

// LogHandler sets the slog.Handler used for structured server logs.
// By default logs are discarded.
func LogHandler(h slog.Handler) ServerOption {
	return func(so *serverOptions) {
		so.logHandler = h
	}
}

// DiagnosticWriter sets where the raw request and response lines are dumped.
// The default is os.Stdout.
func DiagnosticWriter(w io.Writer) ServerOption {
	return func(so *serverOptions) {
		so.diag = w
	}
}

// ErrorWriter sets the error stream exposed to applications as wsgi.errors.
// The default is os.Stderr.
func ErrorWriter(w io.Writer) ServerOption {
	return func(so *serverOptions) {
		so.errs = w
	}
}

// Clock sets the clock used for the Date header.
func Clock(now func() time.Time) ServerOption {
	return func(so *serverOptions) {
		so.now = now
	}
}

// ListenOptions are passed to [Listen] by [Server.Run].
func ListenOptions(opts ...ListenOption) ServerOption {
	return func(so *serverOptions) {
		so.listenOpts = append(so.listenOpts, opts...)
	}
}

// TracerProvider sets where request spans are created.
// The default is the globally registered provider.
func TracerProvider(tp trace.TracerProvider) ServerOption {
	return func(so *serverOptions) {
		so.tp = tp
	}
}

// MeterProvider sets where the request counter is created.
// The default is the globally registered provider.
func MeterProvider(mp metric.MeterProvider) ServerOption {
	return func(so *serverOptions) {
		so.mp = mp
	}
}

// Server serves an [Application] over plain TCP, one connection at a time.
type Server struct {
	cfg Config
	app Application

	log        *slog.Logger
	diag       io.Writer
	errs       io.Writer
	now        func() time.Time
	listenOpts []ListenOption

	tracer   trace.Tracer
	requests metric.Int64Counter
}

// NewServer returns a Server for app which will listen as described by cfg.
func NewServer(cfg Config, app Application, opts ...ServerOption) *Server {
	so := &serverOptions{
		logHandler: noop.LogHandler{},
		diag:       os.Stdout,
		errs:       os.Stderr,
		now:        time.Now,
		tp:         otel.GetTracerProvider(),
		mp:         otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(so)
	}

	requests, err := so.mp.Meter(instrumentationName).Int64Counter(
		"wsgi.server.requests",
		metric.WithDescription("Number of requests handled, by response status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		otel.Handle(err)
		requests, _ = noopmetric.NewMeterProvider().Meter(instrumentationName).Int64Counter("wsgi.server.requests")
	}

	return &Server{
		cfg:        cfg,
		app:        app,
		log:        slog.New(so.logHandler),
		diag:       so.diag,
		errs:       so.errs,
		now:        so.now,
		listenOpts: so.listenOpts,
		tracer:     so.tp.Tracer(instrumentationName),
		requests:   requests,
	}
}

// Run opens the listener and serves connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := Listen(ctx, s.cfg, s.listenOpts...)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to listen", slogfield.String("addr", s.cfg.Addr()), slogfield.Error(err))
		return err
	}

	id := ln.Identity()
	s.log.InfoContext(
		ctx,
		"serving http",
		slogfield.Addr("addr", ln.Addr()),
		slogfield.String("server_name", id.Name),
		slogfield.Int("port", id.Port),
	)
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln and serves them serially. The listener
// is closed when ctx is cancelled, after which Serve returns nil. A request
// in flight at that moment is not interrupted.
func (s *Server) Serve(ctx context.Context, ln *Listener) error {
	id := ln.Identity()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ln.AcceptLoop(gctx, func(ctx context.Context, conn net.Conn) {
			err := s.ServeConn(ctx, conn, id)
			if err == nil {
				return
			}
			s.log.ErrorContext(
				ctx,
				"failed to handle request",
				slogfield.Addr("remote_addr", conn.RemoteAddr()),
				slogfield.Error(err),
			)
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		err := ln.Close()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	})
	return g.Wait()
}

type outcome struct {
	line   RequestLine
	status string
}

// ServeConn runs one full request cycle on conn: read, parse, invoke the
// application, respond. conn is closed exactly once before ServeConn returns.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser, id Identity) (err error) {
	oc := &onceCloser{ReadWriteCloser: conn}
	defer try.Close(&err, oc)

	spanCtx, span := s.tracer.Start(ctx, "wsgi.request", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	var out outcome
	defer func() {
		s.record(spanCtx, span, out, err)
	}()

	out, err = s.serveConn(spanCtx, oc, id)
	return err
}

func (s *Server) serveConn(ctx context.Context, conn io.ReadWriteCloser, id Identity) (outcome, error) {
	raw, err := ReadRequest(conn)
	if err != nil {
		return outcome{}, err
	}
	writeDiagnostic(s.diag, "< ", raw)

	if isEmptyRequest(raw) {
		s.log.WarnContext(
			ctx,
			"received empty request, using default request line",
			slogfield.String("method", DefaultRequestLine.Method),
			slogfield.String("path", DefaultRequestLine.Path),
		)
	}

	line, err := ParseRequestLine(raw)
	if err != nil {
		status, err := s.reject(conn, "400 Bad Request", err)
		return outcome{status: status}, err
	}
	out := outcome{line: line}

	env := NewEnviron(line, raw, id, s.errs)
	state := NewResponseState(WithClock(s.now))

	body, err := s.invoke(ctx, env, state)
	if err != nil {
		aerr := ApplicationError{Cause: err}
		if state.Started() {
			out.status = state.Status()
			return out, aerr
		}
		out.status, err = s.reject(conn, "500 Internal Server Error", aerr)
		return out, err
	}
	if excInfo := state.ExcInfo(); excInfo != nil {
		s.log.WarnContext(ctx, "application reported an error while responding", slogfield.Error(excInfo))
	}

	out.status = state.Status()
	return out, FinishResponse(conn, state, body, s.diag)
}

func (s *Server) invoke(ctx context.Context, env Environ, state *ResponseState) (_ Body, err error) {
	defer try.Recover(&err)

	return s.app.Serve(ctx, env, state.StartResponse)
}

// reject makes a best effort to tell the client why its request failed.
func (s *Server) reject(conn io.WriteCloser, status string, cause error) (string, error) {
	state := NewResponseState(WithClock(s.now))
	state.StartResponse(status, []Header{{Name: "Content-Type", Value: "text/plain"}}, nil)

	err := FinishResponse(conn, state, Body{[]byte(status)}, s.diag)
	if err != nil {
		return status, errors.Join(cause, err)
	}
	return status, cause
}

func (s *Server) record(ctx context.Context, span trace.Span, out outcome, err error) {
	code := statusCode(out.status)

	span.SetAttributes(
		attribute.String("http.request.method", out.line.Method),
		attribute.String("url.path", out.line.Path),
		attribute.String("network.protocol.version", out.line.Version),
		attribute.String("wsgi.response.status", out.status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("http.response.status_code", code)))

	if err != nil {
		return
	}
	s.log.InfoContext(
		ctx,
		"handled request",
		slogfield.String("method", out.line.Method),
		slogfield.String("path", out.line.Path),
		slogfield.String("status", out.status),
	)
}

// statusCode returns the leading code of a status such as "200 OK".
func statusCode(status string) string {
	code, _, _ := strings.Cut(status, " ")
	return code
}
