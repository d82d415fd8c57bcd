// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package wsgi

import (
	"context"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// listen builds the socket by hand so SO_REUSEADDR and the
// configured backlog are applied exactly as requested.
func listen(ctx context.Context, cfg Config) (net.Listener, error) {
	err := validatePort(cfg.Port)
	if err != nil {
		return nil, BindError{Addr: cfg.Addr(), Cause: err}
	}
	ip, err := resolveBindIP(ctx, cfg.Host)
	if err != nil {
		return nil, BindError{Addr: cfg.Addr(), Cause: err}
	}

	// socket(2) and the close-on-exec flag must not be split by a fork
	syscall.ForkLock.RLock()
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return nil, SocketError{Op: "socket", Cause: os.NewSyscallError("socket", err)}
	}

	err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err != nil {
		unix.Close(fd)
		return nil, SocketError{Op: "setsockopt", Cause: os.NewSyscallError("setsockopt", err)}
	}

	sa := &unix.SockaddrInet4{Port: cfg.Port}
	copy(sa.Addr[:], ip.To4())
	err = unix.Bind(fd, sa)
	if err != nil {
		unix.Close(fd)
		return nil, BindError{Addr: cfg.Addr(), Cause: os.NewSyscallError("bind", err)}
	}

	err = unix.Listen(fd, cfg.backlog())
	if err != nil {
		unix.Close(fd)
		return nil, SocketError{Op: "listen", Cause: os.NewSyscallError("listen", err)}
	}

	// net.FileListener dups the descriptor so the file is always closed here
	f := os.NewFile(uintptr(fd), "wsgi-listener")
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, SocketError{Op: "filelistener", Cause: err}
	}
	return ln, nil
}
