// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/z5labs/wsgate/internal/try"
)

const (
	// ServerSoftware is sent in the Server header of every response.
	ServerSoftware = "WSGIServer 0.2"

	// DateFormat is the layout of the Date header. Times are always rendered in UTC.
	DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

	responseProto = "HTTP/1.1"
)

// ContractViolationError is returned when a response is finished
// without the application ever having started it.
type ContractViolationError struct {
	Reason string
}

// Error implements the [builtin.error] interface.
func (e ContractViolationError) Error() string {
	return fmt.Sprintf("application contract violated: %s", e.Reason)
}

// InvalidHeaderError is returned when a header cannot be rendered
// without corrupting the response framing.
type InvalidHeaderError struct {
	Name  string
	Value string
}

// Error implements the [builtin.error] interface.
func (e InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid response header %q: %q", e.Name, e.Value)
}

// InvalidStatusError is returned when the status contains line breaks.
type InvalidStatusError struct {
	Status string
}

// Error implements the [builtin.error] interface.
func (e InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid response status: %q", e.Status)
}

// ResponseOption configures a [ResponseState].
type ResponseOption func(*ResponseState)

// WithClock sets the clock used to render the Date header.
func WithClock(now func() time.Time) ResponseOption {
	return func(s *ResponseState) {
		s.now = now
	}
}

// WithServerSoftware overrides the Server header value.
func WithServerSoftware(name string) ResponseOption {
	return func(s *ResponseState) {
		s.software = name
	}
}

// ResponseState collects the status and headers an application declares
// for one request.
type ResponseState struct {
	now      func() time.Time
	software string

	started bool
	status  string
	headers []Header
	excInfo error
}

// NewResponseState returns an empty ResponseState.
func NewResponseState(opts ...ResponseOption) *ResponseState {
	s := &ResponseState{
		now:      time.Now,
		software: ServerSoftware,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartResponse records status and headers, followed by the Date and
// Server headers. Calling it again replaces the previous values.
func (s *ResponseState) StartResponse(status string, headers []Header, excInfo error) {
	hs := make([]Header, 0, len(headers)+2)
	hs = append(hs, headers...)
	hs = append(
		hs,
		Header{Name: "Date", Value: s.now().UTC().Format(DateFormat)},
		Header{Name: "Server", Value: s.software},
	)

	s.started = true
	s.status = status
	s.headers = hs
	s.excInfo = excInfo
}

// Started reports whether StartResponse has been called.
func (s *ResponseState) Started() bool {
	return s.started
}

// Status returns the recorded status.
func (s *ResponseState) Status() string {
	return s.status
}

// Headers returns a copy of the recorded headers, including Date and Server.
func (s *ResponseState) Headers() []Header {
	hs := make([]Header, len(s.headers))
	copy(hs, s.headers)
	return hs
}

// ExcInfo returns the error passed to the last StartResponse call, if any.
func (s *ResponseState) ExcInfo() error {
	return s.excInfo
}

// FinishResponse renders the response held by state plus body and writes it
// to conn in a single write. conn is always closed before FinishResponse
// returns, whether rendering or writing succeeded or not.
func FinishResponse(conn io.WriteCloser, state *ResponseState, body Body, diag io.Writer) (err error) {
	defer try.Close(&err, conn)

	b, err := renderResponse(state, body)
	if err != nil {
		return err
	}
	writeDiagnostic(diag, "> ", b)

	_, err = conn.Write(b)
	return err
}

func renderResponse(state *ResponseState, body Body) ([]byte, error) {
	if state == nil || !state.started {
		return nil, ContractViolationError{Reason: "response finished before start_response was called"}
	}
	if strings.ContainsAny(state.status, "\r\n") {
		return nil, InvalidStatusError{Status: state.status}
	}

	var buf bytes.Buffer
	buf.WriteString(responseProto)
	buf.WriteByte(' ')
	buf.WriteString(state.status)
	buf.WriteString("\r\n")
	for _, h := range state.headers {
		if !validHeader(h) {
			return nil, InvalidHeaderError{Name: h.Name, Value: h.Value}
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")
	for _, chunk := range body {
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

func validHeader(h Header) bool {
	if h.Name == "" || strings.ContainsAny(h.Name, ":\r\n") {
		return false
	}
	return !strings.ContainsAny(h.Value, "\r\n")
}

// onceCloser lets every exit path close a connection while
// guaranteeing the underlying Close runs exactly once.
type onceCloser struct {
	io.ReadWriteCloser

	once sync.Once
}

func (c *onceCloser) Close() error {
	var err error
	c.once.Do(func() {
		err = c.ReadWriteCloser.Close()
	})
	return err
}
