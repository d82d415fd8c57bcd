// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEnviron(t *testing.T) {
	raw := []byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n")
	line := RequestLine{Method: "GET", Path: "/hello", Version: "HTTP/1.1"}
	id := Identity{Name: "web01.example.com", Port: 8080}

	t.Run("will always set every key", func(t *testing.T) {
		keys := []string{
			KeyVersion,
			KeyURLScheme,
			KeyInput,
			KeyErrors,
			KeyMultithread,
			KeyMultiprocess,
			KeyRunOnce,
			KeyRequestMethod,
			KeyPathInfo,
			KeyServerProtocol,
			KeyServerName,
			KeyServerPort,
		}

		envs := map[string]Environ{
			"parsed request":  NewEnviron(line, raw, id, &bytes.Buffer{}),
			"default request": NewEnviron(DefaultRequestLine, nil, Identity{}, nil),
		}
		for name, env := range envs {
			t.Run("for a "+name, func(t *testing.T) {
				if !assert.Len(t, env, len(keys)) {
					return
				}
				for _, key := range keys {
					if !assert.Contains(t, env, key) {
						return
					}
					if !assert.NotNil(t, env[key], key) {
						return
					}
				}
			})
		}
	})

	t.Run("will set the protocol constants", func(t *testing.T) {
		env := NewEnviron(line, raw, id, nil)

		if !assert.Equal(t, Version{1, 0}, env[KeyVersion]) {
			return
		}
		if !assert.Equal(t, "http", env[KeyURLScheme]) {
			return
		}
		if !assert.Equal(t, false, env[KeyMultithread]) {
			return
		}
		if !assert.Equal(t, false, env[KeyMultiprocess]) {
			return
		}
		if !assert.Equal(t, false, env[KeyRunOnce]) {
			return
		}
	})

	t.Run("will set request and server values", func(t *testing.T) {
		env := NewEnviron(line, raw, id, nil)

		if !assert.Equal(t, "GET", env.Method()) {
			return
		}
		if !assert.Equal(t, "/hello", env.Path()) {
			return
		}
		if !assert.Equal(t, "HTTP/1.1", env.Protocol()) {
			return
		}
		if !assert.Equal(t, "web01.example.com", env.ServerName()) {
			return
		}
		if !assert.Equal(t, "8080", env.ServerPort()) {
			return
		}
	})

	t.Run("will expose the raw request bytes", func(t *testing.T) {
		env := NewEnviron(line, raw, id, nil)

		b, err := io.ReadAll(env.Input())
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, raw, b) {
			return
		}
	})

	t.Run("will expose the error stream", func(t *testing.T) {
		var errs bytes.Buffer
		env := NewEnviron(line, raw, id, &errs)

		_, err := io.WriteString(env.Errors(), "oops")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "oops", errs.String()) {
			return
		}
	})
}

func TestEnviron_Accessors(t *testing.T) {
	t.Run("will return zero values", func(t *testing.T) {
		t.Run("if the keys are missing", func(t *testing.T) {
			env := Environ{}

			if !assert.Empty(t, env.Method()) {
				return
			}
			if !assert.Equal(t, io.Discard, env.Errors()) {
				return
			}

			b, err := io.ReadAll(env.Input())
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Empty(t, b) {
				return
			}
		})
	})
}
