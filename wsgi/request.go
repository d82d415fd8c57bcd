// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RecvSize is the most bytes read from a connection for a single request.
// Anything beyond it is silently dropped.
const RecvSize = 1024

// RequestLine is the first line of an HTTP request.
type RequestLine struct {
	Method  string
	Path    string
	Version string
}

// DefaultRequestLine is used when a connection sends no request at all.
var DefaultRequestLine = RequestLine{
	Method:  "GET",
	Path:    "/",
	Version: "HTTP/1.1",
}

// RequestParseError is returned when the request line does not consist
// of exactly a method, a path and a version.
type RequestParseError struct {
	Line   string
	Tokens int
}

// Error implements the [builtin.error] interface.
func (e RequestParseError) Error() string {
	return fmt.Sprintf("malformed request line %q: expected 3 tokens but found %d", e.Line, e.Tokens)
}

// ReadRequest performs a single read of at most [RecvSize] bytes from r.
// A connection which is closed before sending anything yields an empty buffer.
func ReadRequest(r io.Reader) ([]byte, error) {
	buf := make([]byte, RecvSize)
	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// ParseRequestLine extracts the [RequestLine] from raw request bytes. The
// first line ends at the first CR or LF.
// An empty (or all whitespace) buffer yields [DefaultRequestLine].
func ParseRequestLine(raw []byte) (RequestLine, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return DefaultRequestLine, nil
	}

	line := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		line = text[:i]
	}

	fields := strings.Fields(line)
	if len(fields) != 3 {
		return RequestLine{}, RequestParseError{Line: line, Tokens: len(fields)}
	}

	rl := RequestLine{
		Method:  fields[0],
		Path:    fields[1],
		Version: fields[2],
	}
	return rl, nil
}

func isEmptyRequest(raw []byte) bool {
	return len(bytes.TrimSpace(raw)) == 0
}
