// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/z5labs/wsgate/internal/try"

	"gopkg.in/yaml.v3"
)

// Yaml represents a Source where its underlying format is YAML.
type Yaml struct {
	r io.Reader
}

// FromYaml returns a source which will apply its config
// from YAML values parsed from the given io.Reader.
func FromYaml(r io.Reader) Yaml {
	return Yaml{r: r}
}

// InvalidYamlError occurs if the underlying io.Reader contains invalid YAML.
type InvalidYamlError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidYamlError) Error() string {
	return fmt.Sprintf("invalid yaml: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidYamlError) Unwrap() error {
	return e.Cause
}

// Apply implements the [Source] interface.
func (src Yaml) Apply(store Store) error {
	return decodeInto(store, src.r, func(b []byte, m *map[string]any) error {
		err := yaml.Unmarshal(b, m)
		if err != nil {
			return InvalidYamlError{Cause: err}
		}
		return nil
	})
}

// Json represents a Source where its underlying format is JSON.
type Json struct {
	r io.Reader
}

// FromJson returns a source which will apply its config
// from JSON values parsed from the given io.Reader.
func FromJson(r io.Reader) Json {
	return Json{r: r}
}

// InvalidJsonError occurs if the underlying io.Reader contains invalid JSON.
type InvalidJsonError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidJsonError) Error() string {
	return fmt.Sprintf("invalid json: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidJsonError) Unwrap() error {
	return e.Cause
}

// Apply implements the [Source] interface.
func (src Json) Apply(store Store) error {
	return decodeInto(store, src.r, func(b []byte, m *map[string]any) error {
		err := json.Unmarshal(b, m)
		if err != nil {
			return InvalidJsonError{Cause: err}
		}
		return nil
	})
}

// decodeInto reads all of r, closing it if possible, and applies the
// decoded document to store.
func decodeInto(store Store, r io.Reader, decode func([]byte, *map[string]any) error) (err error) {
	defer try.Close(&err, r)

	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m := make(map[string]any)
	err = decode(b, &m)
	if err != nil {
		return err
	}
	return Map(m).Apply(store)
}

// UnsupportedFormatError is returned by [FromFile] when the file
// extension is neither YAML nor JSON.
type UnsupportedFormatError struct {
	Ext string
}

// Error implements the [builtin.error] interface.
func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported config format: %q", e.Ext)
}

// FromFile returns a [Yaml] or [Json] source for fr based on its extension.
func FromFile(fr *FileReader) (Source, error) {
	switch fr.Ext() {
	case ".yaml", ".yml":
		return FromYaml(fr), nil
	case ".json":
		return FromJson(fr), nil
	default:
		return nil, UnsupportedFormatError{Ext: fr.Ext()}
	}
}
