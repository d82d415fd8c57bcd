// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package wsgate runs gateway applications built from typed config.
//
// An application is described by an [AppBuilder] which turns a config
// value, decoded from one or more [config.Source]s, into an [App]:
//
//	type Config struct {
//	    Wsgi wsgi.Config `config:"wsgi"`
//	}
//
//	func main() {
//	    wsgate.Main(wsgate.AppBuilderFunc[Config](func(ctx context.Context, cfg Config) (wsgate.App, error) {
//	        return wsgi.NewServer(cfg.Wsgi, myApp), nil
//	    }))
//	}
//
// [Main] exposes the config sources as command line flags: --config
// names a YAML or JSON file and --port overrides wsgi.port.
package wsgate
