// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slogfield

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type logFields[T any] struct {
	Value  T   `json:"value"`
	Values []T `json:"values"`
}

func decode[T any](t *testing.T, buf *bytes.Buffer) (logFields[T], bool) {
	var res logFields[T]
	err := json.Unmarshal(buf.Bytes(), &res)
	return res, assert.Nil(t, err)
}

func TestJsonHandler(t *testing.T) {
	testCases := []struct {
		Name     string
		Attrs    []any
		Validate func(*testing.T, *bytes.Buffer)
	}{
		{
			Name:  "any",
			Attrs: []any{Any("value", true)},
			Validate: func(t *testing.T, buf *bytes.Buffer) {
				res, ok := decode[any](t, buf)
				if !ok {
					return
				}
				assert.Equal(t, true, res.Value)
			},
		},
		{
			Name:  "bool",
			Attrs: []any{Bool("value", true)},
			Validate: func(t *testing.T, buf *bytes.Buffer) {
				res, ok := decode[bool](t, buf)
				if !ok {
					return
				}
				assert.True(t, res.Value)
			},
		},
		{
			Name:  "duration",
			Attrs: []any{Duration("value", 5*time.Second)},
			Validate: func(t *testing.T, buf *bytes.Buffer) {
				res, ok := decode[time.Duration](t, buf)
				if !ok {
					return
				}
				assert.Equal(t, 5*time.Second, res.Value)
			},
		},
		{
			Name:  "string",
			Attrs: []any{String("value", "GET")},
			Validate: func(t *testing.T, buf *bytes.Buffer) {
				res, ok := decode[string](t, buf)
				if !ok {
					return
				}
				assert.Equal(t, "GET", res.Value)
			},
		},
		{
			Name:  "strings",
			Attrs: []any{Strings("values", []string{"a", "b"})},
			Validate: func(t *testing.T, buf *bytes.Buffer) {
				res, ok := decode[string](t, buf)
				if !ok {
					return
				}
				assert.Equal(t, []string{"a", "b"}, res.Values)
			},
		},
		{
			Name:  "int",
			Attrs: []any{Int("value", 1024)},
			Validate: func(t *testing.T, buf *bytes.Buffer) {
				res, ok := decode[int](t, buf)
				if !ok {
					return
				}
				assert.Equal(t, 1024, res.Value)
			},
		},
		{
			Name:  "addr",
			Attrs: []any{Addr("value", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080})},
			Validate: func(t *testing.T, buf *bytes.Buffer) {
				res, ok := decode[string](t, buf)
				if !ok {
					return
				}
				assert.Equal(t, "127.0.0.1:8080", res.Value)
			},
		},
		{
			Name:  "nil addr",
			Attrs: []any{Addr("value", nil)},
			Validate: func(t *testing.T, buf *bytes.Buffer) {
				res, ok := decode[string](t, buf)
				if !ok {
					return
				}
				assert.Empty(t, res.Value)
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))
			log.Info("test", testCase.Attrs...)

			testCase.Validate(t, &buf)
		})
	}
}

func TestError(t *testing.T) {
	t.Run("will log the error message under the error key", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))
		log.Error("failed", Error(errors.New("bind failed")))

		var record struct {
			Error string `json:"error"`
		}
		err := json.Unmarshal(buf.Bytes(), &record)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "bind failed", record.Error) {
			return
		}
	})
}
