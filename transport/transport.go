// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport implements the uniform byte-stream (and,
// for WebSocket, datagram-boundary) abstraction spec.md §4/§6 requires:
// one Listener+Dialer pair per transport (inproc, ipc, tcp, tls, ws, wss)
// behind a single Conn interface the I/O engine drives identically.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"code.hybscloud.com/iox"
)

// Boundary describes whether a transport preserves message boundaries on
// read, generalizing the teacher's own Protocol enum in netopts.go from
// (framing strategy) to (does the decoder need its own reassembly
// buffer).
type Boundary uint8

const (
	// Stream transports (tcp, ipc, tls, inproc) do not preserve
	// boundaries; the ZMP decoder must reassemble frames itself.
	Stream Boundary = iota
	// Packet transports (ws, wss) carry data as WebSocket messages; a Read
	// returns bytes from at most one message and keeps any remainder for
	// the next Read, matching the teacher's netopts.go classification of
	// WebSocket as SeqPacket.
	Packet
)

// Scheme identifies an endpoint's transport.
type Scheme string

const (
	SchemeInproc Scheme = "inproc"
	SchemeIPC    Scheme = "ipc"
	SchemeTCP    Scheme = "tcp"
	SchemeTLS    Scheme = "tls"
	SchemeWS     Scheme = "ws"
	SchemeWSS    Scheme = "wss"
)

// BoundaryFor is the single source of truth for scheme -> boundary,
// following the teacher's netopts.go "Single source of truth" comment
// convention.
func BoundaryFor(s Scheme) Boundary {
	switch s {
	case SchemeWS, SchemeWSS:
		return Packet
	default:
		return Stream
	}
}

// Endpoint is a parsed bind/connect string (spec.md §6 "Endpoint
// syntax").
type Endpoint struct {
	Scheme Scheme
	Addr   string // host:port, path, or inproc name, scheme-dependent
	Path   string // ws(s) path component, if any
}

var ErrInvalidEndpoint = errors.New("transport: invalid endpoint")

// ParseEndpoint parses a bind/connect string per spec.md §6.
func ParseEndpoint(s string) (Endpoint, error) {
	i := strings.Index(s, "://")
	if i < 0 {
		return Endpoint{}, ErrInvalidEndpoint
	}
	scheme := Scheme(s[:i])
	rest := s[i+3:]
	switch scheme {
	case SchemeInproc:
		if rest == "" {
			return Endpoint{}, ErrInvalidEndpoint
		}
		return Endpoint{Scheme: scheme, Addr: rest}, nil
	case SchemeIPC:
		return Endpoint{Scheme: scheme, Addr: rest}, nil
	case SchemeTCP, SchemeTLS:
		return Endpoint{Scheme: scheme, Addr: rest}, nil
	case SchemeWS, SchemeWSS:
		addr, path := rest, "/"
		if j := strings.Index(rest, "/"); j >= 0 {
			addr, path = rest[:j], rest[j:]
		}
		return Endpoint{Scheme: scheme, Addr: addr, Path: path}, nil
	default:
		return Endpoint{}, ErrInvalidEndpoint
	}
}

func (e Endpoint) String() string {
	switch e.Scheme {
	case SchemeWS, SchemeWSS:
		return fmt.Sprintf("%s://%s%s", e.Scheme, e.Addr, e.Path)
	default:
		return fmt.Sprintf("%s://%s", e.Scheme, e.Addr)
	}
}

// Conn is the uniform byte-stream contract every transport's engine hook
// is driven through.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	LocalAddr() string
	RemoteAddr() string
	Boundary() Boundary
}

// Listener accepts inbound connections for one bound endpoint.
type Listener interface {
	Accept() (Conn, error)
	Addr() string // resolved address, used to populate last_endpoint
	Close() error
}

// Connecter dials one outbound connection.
type Connecter interface {
	Dial(ctx context.Context) (Conn, error)
}

// netConn adapts a net.Conn to transport.Conn for the stream transports
// (tcp, ipc, tls, inproc). localAddr/remoteAddr override net.Conn's own
// Addr() when a transport has a more useful logical address to report
// (inproc's correlation token); left empty, the net.Conn's own addresses
// are used.
type netConn struct {
	c                       net.Conn
	b                       Boundary
	localAddr, remoteAddr   string
}

func (n *netConn) Read(p []byte) (int, error)  { return n.c.Read(p) }
func (n *netConn) Write(p []byte) (int, error) { return n.c.Write(p) }
func (n *netConn) Close() error                { return n.c.Close() }
func (n *netConn) Boundary() Boundary          { return n.b }

func (n *netConn) LocalAddr() string {
	if n.localAddr != "" {
		return n.localAddr
	}
	return n.c.LocalAddr().String()
}

func (n *netConn) RemoteAddr() string {
	if n.remoteAddr != "" {
		return n.remoteAddr
	}
	return n.c.RemoteAddr().String()
}

// ErrWouldBlock is re-exported for transports built on non-blocking fds;
// the stdlib net package transports in this package are deadline-based
// rather than non-blocking, and ws.go blocks in gorilla/websocket, so no
// transport in this package returns it today.
var ErrWouldBlock = iox.ErrWouldBlock
