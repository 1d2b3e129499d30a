// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"net"
	"runtime"
	"strings"
)

// ErrNotSupported is returned for ipc://@name (abstract-namespace)
// endpoints on platforms other than Linux, which is the only OS whose
// net package honors the leading NUL convention (spec.md §6 "ipc://@name
// uses the Linux abstract socket namespace").
var ErrNotSupported = errors.New("transport: abstract ipc namespace not supported on this platform")

// ipcAddr maps an ipc:// Addr to the net package's unix socket path
// convention, supporting the abstract namespace (spec.md §6
// "ipc://@name uses the Linux abstract socket namespace").
func ipcAddr(addr string) string {
	if strings.HasPrefix(addr, "@") {
		return "@" + addr[1:]
	}
	return addr
}

// IPCListener binds ipc:// endpoints (Unix domain sockets).
type IPCListener struct{ ln net.Listener }

// ListenIPC binds a Unix domain socket at path, or an abstract-namespace
// socket if path starts with "@".
func ListenIPC(path string) (*IPCListener, error) {
	if strings.HasPrefix(path, "@") && runtime.GOOS != "linux" {
		return nil, ErrNotSupported
	}
	ln, err := net.Listen("unix", ipcAddr(path))
	if err != nil {
		return nil, err
	}
	return &IPCListener{ln: ln}, nil
}

func (l *IPCListener) Accept() (Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return &netConn{c: c, b: Stream}, nil
}

func (l *IPCListener) Addr() string { return l.ln.Addr().String() }
func (l *IPCListener) Close() error { return l.ln.Close() }

// IPCConnecter dials ipc:// endpoints.
type IPCConnecter struct{ path string }

// DialIPC prepares a connecter for a Unix domain socket path (or
// "@name" for the abstract namespace).
func DialIPC(path string) *IPCConnecter { return &IPCConnecter{path: path} }

func (d *IPCConnecter) Dial(ctx context.Context) (Conn, error) {
	if strings.HasPrefix(d.path, "@") && runtime.GOOS != "linux" {
		return nil, ErrNotSupported
	}
	var dialer net.Dialer
	c, err := dialer.DialContext(ctx, "unix", ipcAddr(d.path))
	if err != nil {
		return nil, err
	}
	return &netConn{c: c, b: Stream}, nil
}
