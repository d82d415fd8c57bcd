// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"net"
	"strconv"

	"github.com/z5labs/wsgate/config"
	"github.com/z5labs/wsgate/config/key"
)

const (
	// DefaultPort is the port a [Config] decoded on top of [Defaults]
	// binds to when none is configured. An explicit 0 still requests
	// an ephemeral port.
	DefaultPort = 80

	// DefaultBacklog is the listen queue size used when none is configured.
	DefaultBacklog = 10
)

// Config describes where a [Server] listens.
type Config struct {
	// Host to bind. An empty host binds all interfaces.
	Host string `config:"host"`

	// Port to bind. Zero asks the OS for an ephemeral port.
	Port int `config:"port"`

	// Backlog is the size of the pending connection queue.
	Backlog int `config:"backlog"`
}

// DefaultConfig returns a Config bound to all interfaces on port 80.
func DefaultConfig() Config {
	return Config{
		Port:    DefaultPort,
		Backlog: DefaultBacklog,
	}
}

// Addr returns the host:port pair described by the Config.
func (cfg Config) Addr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

func (cfg Config) backlog() int {
	if cfg.Backlog <= 0 {
		return DefaultBacklog
	}
	return cfg.Backlog
}

// Defaults returns a [config.Source] holding [DefaultConfig]'s port and
// backlog under prefix, e.g. "wsgi". Apply it before any other source so
// omitted keys keep their defaults. An empty prefix sets the top level keys.
func Defaults(prefix string) config.Source {
	cfg := DefaultConfig()
	return config.SourceFunc(func(store config.Store) error {
		err := store.Set(prefixed(prefix, "port"), cfg.Port)
		if err != nil {
			return err
		}
		return store.Set(prefixed(prefix, "backlog"), cfg.Backlog)
	})
}

func prefixed(prefix, name string) key.Keyer {
	if prefix == "" {
		return key.Name(name)
	}
	return key.Parse(prefix + "." + name)
}
