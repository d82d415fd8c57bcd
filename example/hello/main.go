// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	_ "embed"

	"github.com/z5labs/wsgate"
	"github.com/z5labs/wsgate/example/hello/app"
)

//go:embed config.yaml
var configBytes []byte

func main() {
	wsgate.Main(
		wsgate.AppBuilderFunc[app.Config](app.Init),
		wsgate.Name("hello"),
		wsgate.DefaultConfig(bytes.NewReader(configBytes)),
	)
}
