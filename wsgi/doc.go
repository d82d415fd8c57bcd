// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package wsgi implements a minimal HTTP gateway directly on TCP sockets.
//
// A [Server] accepts one connection at a time, reads a single bounded
// buffer from it, parses the request line, builds an [Environ] and hands
// it to an [Application]. The application declares its status and headers
// through a [StartResponseFunc] and returns the response [Body], which the
// server renders onto the wire before closing the connection.
//
// # Basic Usage
//
//	app := wsgi.ApplicationFunc(func(ctx context.Context, env wsgi.Environ, start wsgi.StartResponseFunc) (wsgi.Body, error) {
//	    start("200 OK", []wsgi.Header{{Name: "Content-Type", Value: "text/plain"}}, nil)
//	    return wsgi.Body{[]byte("Hello, " + env.Path())}, nil
//	})
//
//	srv := wsgi.NewServer(wsgi.Config{Port: 8080, Backlog: 10}, app)
//	err := srv.Run(ctx)
//
// Only one request is served per connection and connections are served
// serially. There is no keep-alive, chunked transfer or TLS support.
package wsgi
