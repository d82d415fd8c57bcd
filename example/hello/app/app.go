// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app implements a greeting application served over wsgi.
package app

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/z5labs/wsgate"
	"github.com/z5labs/wsgate/app"
	"github.com/z5labs/wsgate/internal/try"
	"github.com/z5labs/wsgate/pkg/otelconfig"
	"github.com/z5labs/wsgate/pkg/otelslog"
	"github.com/z5labs/wsgate/wsgi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TimeFormat is how the current time is rendered in the greeting.
const TimeFormat = "2006-01-02 15:04:05.000000"

// Config
type Config struct {
	Logging struct {
		Level slog.Level `config:"level"`
	} `config:"logging"`

	OTel otelconfig.Config `config:"otel"`

	Wsgi wsgi.Config `config:"wsgi"`

	HTML struct {
		Root string `config:"root"`
		Path string `config:"path"`
	} `config:"html"`
}

// Init builds the wsgi server for the hello application.
func Init(ctx context.Context, cfg Config) (wsgate.App, error) {
	logHandler := otelslog.NewHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     cfg.Logging.Level,
		AddSource: true,
	}))

	initializer, err := otelconfig.FromConfig(cfg.OTel)
	if err != nil {
		return nil, err
	}
	providers, err := otelconfig.Install(initializer)
	if err != nil {
		return nil, err
	}

	hello := &Hello{
		FS:   os.DirFS(cfg.HTML.Root),
		Path: cfg.HTML.Path,
		Now:  time.Now,
	}

	srv := wsgi.NewServer(
		cfg.Wsgi,
		hello,
		wsgi.LogHandler(logHandler),
		wsgi.TracerProvider(providers.Tracer),
		wsgi.MeterProvider(providers.Meter),
	)

	var a wsgate.App = app.Recover(srv)
	a = app.WithSignalNotifications(a, os.Interrupt, syscall.SIGTERM)
	a = app.WithLifecycleHooks(a, app.Lifecycle{
		PostRun: app.Shutdown(providers),
	})
	return a, nil
}

// Hello greets every request with the current time. If Path exists
// in FS its contents are served instead.
type Hello struct {
	FS   fs.FS
	Path string
	Now  func() time.Time
}

// Serve implements the [wsgi.Application] interface.
func (h *Hello) Serve(ctx context.Context, env wsgi.Environ, start wsgi.StartResponseFunc) (wsgi.Body, error) {
	_, span := otel.Tracer("github.com/z5labs/wsgate/example/hello/app").Start(ctx, "Hello.Serve")
	defer span.End()

	page, err := h.page()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("hello.page", page != nil))

	start("200 OK", []wsgi.Header{{Name: "Content-Type", Value: "text/html"}}, nil)
	if page != nil {
		return wsgi.Body{page}, nil
	}
	return h.greeting(), nil
}

func (h *Hello) greeting() wsgi.Body {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return wsgi.Body{
		[]byte("Hello world!\n"),
		[]byte("Current time: " + now().Format(TimeFormat)),
	}
}

// page returns nil, without an error, if there is no page to serve.
func (h *Hello) page() ([]byte, error) {
	if h.FS == nil || h.Path == "" {
		return nil, nil
	}

	b, err := readFile(h.FS, h.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

func readFile(fsys fs.FS, name string) (_ []byte, err error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer try.Close(&err, f)

	return io.ReadAll(f)
}
