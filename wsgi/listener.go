// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BindError is returned when the configured address cannot be bound,
// e.g. because it is already in use or cannot be resolved.
type BindError struct {
	Addr  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BindError) Unwrap() error {
	return e.Cause
}

// SocketError is returned for OS level socket failures other than bind.
type SocketError struct {
	Op    string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e SocketError) Error() string {
	return fmt.Sprintf("socket %s failed: %s", e.Op, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e SocketError) Unwrap() error {
	return e.Cause
}

// AcceptError is returned by [Listener.AcceptLoop] when accepting a
// connection fails for any reason other than shutdown or a temporary error.
type AcceptError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AcceptError) Error() string {
	return fmt.Sprintf("failed to accept connection: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AcceptError) Unwrap() error {
	return e.Cause
}

// Resolver performs the forward and reverse lookups needed to
// determine a server's canonical name. [net.Resolver] implements it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Identity is the name and port a [Listener] is reachable under.
type Identity struct {
	Name string
	Port int
}

// PortString returns the port in its decimal string form.
func (id Identity) PortString() string {
	return strconv.Itoa(id.Port)
}

type listenOptions struct {
	resolver Resolver
	hostname func() (string, error)
}

// ListenOption configures [Listen].
type ListenOption func(*listenOptions)

// WithResolver overrides the resolver used to compute the server name.
func WithResolver(r Resolver) ListenOption {
	return func(lo *listenOptions) {
		lo.resolver = r
	}
}

// WithHostname overrides how the local host name is determined when
// the listener is bound to all interfaces.
func WithHostname(f func() (string, error)) ListenOption {
	return func(lo *listenOptions) {
		lo.hostname = f
	}
}

// Listener owns a bound, listening TCP socket.
type Listener struct {
	ln net.Listener
	id Identity
}

// Listen binds cfg's address, begins listening and resolves the
// listener's [Identity]. Errors are either a [BindError] or a [SocketError].
func Listen(ctx context.Context, cfg Config, opts ...ListenOption) (*Listener, error) {
	lo := &listenOptions{
		resolver: net.DefaultResolver,
		hostname: os.Hostname,
	}
	for _, opt := range opts {
		opt(lo)
	}

	ln, err := listen(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		ln.Close()
		return nil, SocketError{Op: "getsockname", Cause: fmt.Errorf("unexpected address type: %T", ln.Addr())}
	}

	l := &Listener{
		ln: ln,
		id: Identity{
			Name: resolveServerName(ctx, lo, tcpAddr.IP),
			Port: tcpAddr.Port,
		},
	}
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Identity returns the server name and port resolved when the listener was opened.
func (l *Listener) Identity() Identity {
	return l.id
}

// Close stops the listener. Any blocked [Listener.AcceptLoop] returns.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Temporary accept failures, such as running out of file descriptors,
// are retried after an exponential delay.
const (
	acceptInitialDelay = 5 * time.Millisecond
	acceptMaxDelay     = time.Second
)

func newAcceptBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = acceptInitialDelay
	b.MaxInterval = acceptMaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}

// AcceptLoop accepts connections one at a time and calls handle for each
// before accepting the next. Temporary accept errors are retried with
// backoff. It returns nil once ctx is done and the listener has been
// closed, otherwise the first other accept failure as an [AcceptError].
func (l *Listener) AcceptLoop(ctx context.Context, handle func(context.Context, net.Conn)) error {
	delay := newAcceptBackOff()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
				return nil
			}
			if !isTemporary(err) {
				return AcceptError{Cause: err}
			}

			timer := time.NewTimer(delay.NextBackOff())
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}
		delay.Reset()
		handle(ctx, conn)
	}
}

// resolveServerName mirrors the usual fully qualified domain name lookup.
// The unspecified address stands for the local host name. The name is
// resolved to an address, which is reverse resolved and the first name
// containing a dot wins. Otherwise the primary reverse name is used, and
// if nothing resolves the original name is returned.
func resolveServerName(ctx context.Context, lo *listenOptions, ip net.IP) string {
	name := ip.String()
	if ip == nil || ip.IsUnspecified() {
		host, err := lo.hostname()
		if err != nil || host == "" {
			return name
		}
		name = host
	}

	addr := name
	if net.ParseIP(name) == nil {
		addrs, err := lo.resolver.LookupHost(ctx, name)
		if err != nil || len(addrs) == 0 {
			return name
		}
		addr = addrs[0]
	}

	names, err := lo.resolver.LookupAddr(ctx, addr)
	if err != nil || len(names) == 0 {
		return name
	}
	for _, n := range names {
		n = strings.TrimSuffix(n, ".")
		if strings.Contains(n, ".") {
			return n
		}
	}
	return strings.TrimSuffix(names[0], ".")
}

// resolveBindIP maps the configured host onto the IPv4 address to bind.
func resolveBindIP(ctx context.Context, host string) (net.IP, error) {
	if host == "" {
		return net.IPv4zero, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("not an IPv4 address: %s", host)
		}
		return ip4, nil
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IPv4 address found for host: %s", host)
	}
	return ips[0].To4(), nil
}

var errInvalidPort = errors.New("port must be between 0 and 65535")

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return errInvalidPort
	}
	return nil
}
