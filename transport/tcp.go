// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"net"
)

// TCPListener binds tcp:// endpoints.
type TCPListener struct{ ln net.Listener }

// ListenTCP binds addr ("host:port") for inbound tcp:// connections.
func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPListener{ln: ln}, nil
}

func (l *TCPListener) Accept() (Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &netConn{c: c, b: Stream}, nil
}

func (l *TCPListener) Addr() string { return l.ln.Addr().String() }
func (l *TCPListener) Close() error { return l.ln.Close() }

// TCPConnecter dials tcp:// endpoints.
type TCPConnecter struct{ addr string }

// DialTCP prepares a connecter for addr ("host:port").
func DialTCP(addr string) *TCPConnecter { return &TCPConnecter{addr: addr} }

func (d *TCPConnecter) Dial(ctx context.Context) (Conn, error) {
	var dialer net.Dialer
	c, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &netConn{c: c, b: Stream}, nil
}
