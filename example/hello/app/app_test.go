// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/z5labs/wsgate/pkg/otelconfig"
	"github.com/z5labs/wsgate/wsgi"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
)

func fixedNow() time.Time {
	return time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)
}

type startRecorder struct {
	status  string
	headers []wsgi.Header
	calls   int
}

func (r *startRecorder) start(status string, headers []wsgi.Header, excInfo error) {
	r.status = status
	r.headers = headers
	r.calls++
}

func serve(h *Hello) (*startRecorder, wsgi.Body, error) {
	rec := &startRecorder{}
	body, err := h.Serve(context.Background(), wsgi.Environ{}, rec.start)
	return rec, body, err
}

type errFS struct {
	err error
}

func (f errFS) Open(name string) (fs.File, error) {
	return nil, f.err
}

func TestHello_Serve(t *testing.T) {
	t.Run("will respond with the greeting", func(t *testing.T) {
		t.Run("if the page does not exist", func(t *testing.T) {
			h := &Hello{
				FS:   fstest.MapFS{},
				Path: "index.html",
				Now:  fixedNow,
			}

			rec, body, err := serve(h)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, 1, rec.calls) {
				return
			}
			if !assert.Equal(t, "200 OK", rec.status) {
				return
			}
			if !assert.Equal(t, []wsgi.Header{{Name: "Content-Type", Value: "text/html"}}, rec.headers) {
				return
			}
			expected := wsgi.Body{
				[]byte("Hello world!\n"),
				[]byte("Current time: 2026-10-17 12:00:00.000000"),
			}
			if !assert.Equal(t, expected, body) {
				return
			}
		})

		t.Run("if no page is configured", func(t *testing.T) {
			h := &Hello{Now: fixedNow}

			_, body, err := serve(h)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Len(t, body, 2) {
				return
			}
		})
	})

	t.Run("will respond with the page", func(t *testing.T) {
		t.Run("if it exists", func(t *testing.T) {
			h := &Hello{
				FS: fstest.MapFS{
					"index.html": &fstest.MapFile{Data: []byte("<h1>Hello</h1>")},
				},
				Path: "index.html",
				Now:  fixedNow,
			}

			rec, body, err := serve(h)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "200 OK", rec.status) {
				return
			}
			if !assert.Equal(t, wsgi.Body{[]byte("<h1>Hello</h1>")}, body) {
				return
			}
		})

		t.Run("if it appears after the application was created", func(t *testing.T) {
			fsys := fstest.MapFS{}
			h := &Hello{FS: fsys, Path: "index.html", Now: fixedNow}

			_, body, err := serve(h)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Len(t, body, 2) {
				return
			}

			fsys["index.html"] = &fstest.MapFile{Data: []byte("late")}

			_, body, err = serve(h)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, wsgi.Body{[]byte("late")}, body) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the page can not be opened", func(t *testing.T) {
			openErr := errors.New("permission denied")
			h := &Hello{FS: errFS{err: openErr}, Path: "index.html"}

			rec, _, err := serve(h)
			if !assert.ErrorIs(t, err, openErr) {
				return
			}
			if !assert.Equal(t, 0, rec.calls) {
				return
			}
		})
	})
}

func TestInit(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the trace exporter is unknown", func(t *testing.T) {
			var cfg Config
			cfg.OTel.Exporter = "zipkin"

			_, err := Init(context.Background(), cfg)

			var uerr otelconfig.UnknownExporterError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
		})
	})

	t.Run("will build the app", func(t *testing.T) {
		t.Run("if the config is valid", func(t *testing.T) {
			var cfg Config
			cfg.Wsgi = wsgi.DefaultConfig()
			cfg.HTML.Root = t.TempDir()
			cfg.HTML.Path = "index.html"

			a, err := Init(context.Background(), cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.NotNil(t, a) {
				return
			}
		})
	})
}

func TestHello_EndToEnd(t *testing.T) {
	t.Run("will serve the greeting over http", func(t *testing.T) {
		ln, err := wsgi.Listen(context.Background(), wsgi.Config{Host: "127.0.0.1"})
		if !assert.Nil(t, err) {
			return
		}

		h := &Hello{FS: fstest.MapFS{}, Path: "index.html", Now: fixedNow}
		srv := wsgi.NewServer(
			wsgi.Config{Host: "127.0.0.1"},
			h,
			wsgi.DiagnosticWriter(io.Discard),
			wsgi.ErrorWriter(io.Discard),
		)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Serve(ctx, ln)
		}()
		defer func() {
			cancel()
			<-errCh
		}()

		client := retryablehttp.NewClient()
		client.Logger = nil
		client.RetryMax = 3
		client.RetryWaitMin = 10 * time.Millisecond
		client.RetryWaitMax = 100 * time.Millisecond

		resp, err := client.Get("http://" + ln.Addr().String() + "/hello")
		if !assert.Nil(t, err) {
			return
		}
		defer resp.Body.Close()

		if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
			return
		}
		if !assert.Equal(t, "text/html", resp.Header.Get("Content-Type")) {
			return
		}
		if !assert.Equal(t, wsgi.ServerSoftware, resp.Header.Get("Server")) {
			return
		}
		if !assert.NotEmpty(t, resp.Header.Get("Date")) {
			return
		}

		b, err := io.ReadAll(resp.Body)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.True(t, strings.HasPrefix(string(b), "Hello world!\nCurrent time: ")) {
			return
		}
	})
}
