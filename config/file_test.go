// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

type fsFunc func(string) (fs.File, error)

func (f fsFunc) Open(path string) (fs.File, error) {
	return f(path)
}

func TestFileReader_Read(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the fs.FS fails to open the file", func(t *testing.T) {
			openErr := errors.New("failed to open")
			fs := fsFunc(func(s string) (fs.File, error) {
				return nil, openErr
			})

			r := NewFileReader(fs, "config.yaml")
			_, err := io.ReadAll(r)
			if !assert.ErrorIs(t, err, openErr) {
				return
			}
		})
	})
}

func TestFileReader_Close(t *testing.T) {
	t.Run("will not return an error", func(t *testing.T) {
		t.Run("if Close is called before the underlying file has been opened", func(t *testing.T) {
			fs := fsFunc(func(s string) (fs.File, error) {
				return nil, nil
			})

			r := NewFileReader(fs, "config.yaml")
			err := r.Close()
			if !assert.Nil(t, err) {
				return
			}
		})
	})
}

func TestFileReader_Ext(t *testing.T) {
	t.Run("will return the extension of the configured path", func(t *testing.T) {
		r := NewFileReader(fstest.MapFS{}, "conf/wsgate.json")
		if !assert.Equal(t, ".json", r.Ext()) {
			return
		}
	})
}

func TestFileReader_ReadAll(t *testing.T) {
	t.Run("will read the full file contents", func(t *testing.T) {
		fsys := fstest.MapFS{
			"config.yaml": &fstest.MapFile{Data: []byte("wsgi:\n  port: 8080\n")},
		}

		r := NewFileReader(fsys, "config.yaml")
		b, err := io.ReadAll(r)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "wsgi:\n  port: 8080\n", string(b)) {
			return
		}
		if !assert.Nil(t, r.Close()) {
			return
		}
	})
}

func TestFromFile(t *testing.T) {
	fsys := fstest.MapFS{
		"config.yaml": &fstest.MapFile{Data: []byte("wsgi:\n  port: 8080\n")},
		"config.yml":  &fstest.MapFile{Data: []byte("wsgi:\n  port: 8081\n")},
		"config.json": &fstest.MapFile{Data: []byte(`{"wsgi": {"port": 8082}}`)},
	}

	testCases := []struct {
		path string
		port int
	}{
		{path: "config.yaml", port: 8080},
		{path: "config.yml", port: 8081},
		{path: "config.json", port: 8082},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			src, err := FromFile(NewFileReader(fsys, tc.path))
			if !assert.Nil(t, err) {
				return
			}

			m, err := Read(src)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Wsgi struct {
					Port int `config:"port"`
				} `config:"wsgi"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, tc.port, cfg.Wsgi.Port)
		})
	}

	t.Run("will return an UnsupportedFormatError", func(t *testing.T) {
		t.Run("if the extension is not yaml or json", func(t *testing.T) {
			_, err := FromFile(NewFileReader(fsys, "config.toml"))

			var ferr UnsupportedFormatError
			if !assert.ErrorAs(t, err, &ferr) {
				return
			}
			if !assert.Equal(t, ".toml", ferr.Ext) {
				return
			}
			if !assert.NotEmpty(t, ferr.Error()) {
				return
			}
		})
	})
}
