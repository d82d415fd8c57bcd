// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"bytes"
	"io"
)

// Environ keys which are always present.
const (
	KeyVersion        = "wsgi.version"
	KeyURLScheme      = "wsgi.url_scheme"
	KeyInput          = "wsgi.input"
	KeyErrors         = "wsgi.errors"
	KeyMultithread    = "wsgi.multithread"
	KeyMultiprocess   = "wsgi.multiprocess"
	KeyRunOnce        = "wsgi.run_once"
	KeyRequestMethod  = "REQUEST_METHOD"
	KeyPathInfo       = "PATH_INFO"
	KeyServerProtocol = "SERVER_PROTOCOL"
	KeyServerName     = "SERVER_NAME"
	KeyServerPort     = "SERVER_PORT"
)

// Version is a gateway protocol version.
type Version [2]int

// ProtocolVersion is the gateway protocol version reported to applications.
var ProtocolVersion = Version{1, 0}

// Environ is the request environment handed to an [Application].
type Environ map[string]any

// NewEnviron builds the environment for a single request. raw is
// exposed to the application, unparsed, through [Environ.Input] and
// errs is where the application may write diagnostics.
func NewEnviron(line RequestLine, raw []byte, id Identity, errs io.Writer) Environ {
	if errs == nil {
		errs = io.Discard
	}
	return Environ{
		KeyVersion:        ProtocolVersion,
		KeyURLScheme:      "http",
		KeyInput:          bytes.NewReader(raw),
		KeyErrors:         errs,
		KeyMultithread:    false,
		KeyMultiprocess:   false,
		KeyRunOnce:        false,
		KeyRequestMethod:  line.Method,
		KeyPathInfo:       line.Path,
		KeyServerProtocol: line.Version,
		KeyServerName:     id.Name,
		KeyServerPort:     id.PortString(),
	}
}

func (env Environ) lookup(key string) string {
	s, _ := env[key].(string)
	return s
}

// Method returns REQUEST_METHOD.
func (env Environ) Method() string {
	return env.lookup(KeyRequestMethod)
}

// Path returns PATH_INFO.
func (env Environ) Path() string {
	return env.lookup(KeyPathInfo)
}

// Protocol returns SERVER_PROTOCOL.
func (env Environ) Protocol() string {
	return env.lookup(KeyServerProtocol)
}

// ServerName returns SERVER_NAME.
func (env Environ) ServerName() string {
	return env.lookup(KeyServerName)
}

// ServerPort returns SERVER_PORT.
func (env Environ) ServerPort() string {
	return env.lookup(KeyServerPort)
}

// Input returns the raw request bytes.
func (env Environ) Input() io.Reader {
	r, ok := env[KeyInput].(io.Reader)
	if !ok {
		return bytes.NewReader(nil)
	}
	return r
}

// Errors returns the error stream.
func (env Environ) Errors() io.Writer {
	w, ok := env[KeyErrors].(io.Writer)
	if !ok {
		return io.Discard
	}
	return w
}
