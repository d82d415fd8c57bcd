// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"context"
	"fmt"
)

// Header is a single response header. Headers are kept in the
// order the application declared them.
type Header struct {
	Name  string
	Value string
}

// Body is the response body as an ordered sequence of chunks.
type Body [][]byte

// StartResponseFunc is handed to an [Application] so it can declare the
// response status, e.g. "200 OK", and headers. excInfo may carry an error
// the application encountered while producing the response.
type StartResponseFunc func(status string, headers []Header, excInfo error)

// Application produces the response for a single request.
type Application interface {
	Serve(ctx context.Context, env Environ, start StartResponseFunc) (Body, error)
}

// ApplicationFunc is a func variant of the [Application] interface.
type ApplicationFunc func(context.Context, Environ, StartResponseFunc) (Body, error)

// Serve implements the [Application] interface.
func (f ApplicationFunc) Serve(ctx context.Context, env Environ, start StartResponseFunc) (Body, error) {
	return f(ctx, env, start)
}

// ApplicationError wraps any failure returned, or panic raised, by an [Application].
type ApplicationError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ApplicationError) Error() string {
	return fmt.Sprintf("application failed: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ApplicationError) Unwrap() error {
	return e.Cause
}
