// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package wsgi

import (
	"context"
	"net"
	"strconv"
)

// listen falls back to the net package. The OS default backlog applies.
func listen(ctx context.Context, cfg Config) (net.Listener, error) {
	err := validatePort(cfg.Port)
	if err != nil {
		return nil, BindError{Addr: cfg.Addr(), Cause: err}
	}
	ip, err := resolveBindIP(ctx, cfg.Host)
	if err != nil {
		return nil, BindError{Addr: cfg.Addr(), Cause: err}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp4", net.JoinHostPort(ip.String(), strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, BindError{Addr: cfg.Addr(), Cause: err}
	}
	return ln, nil
}
