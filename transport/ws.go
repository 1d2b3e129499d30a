// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a *websocket.Conn to transport.Conn. WebSocket preserves
// message boundaries, so unlike netConn it buffers at most one partial
// frame between Read calls rather than reassembling a byte stream.
type wsConn struct {
	c        *websocket.Conn
	leftover []byte
}

func (w *wsConn) Read(p []byte) (int, error) {
	for len(w.leftover) == 0 {
		typ, data, err := w.c.ReadMessage()
		if err != nil {
			return 0, err
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		w.leftover = data
	}
	n := copy(p, w.leftover)
	w.leftover = w.leftover[n:]
	return n, nil
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error           { return w.c.Close() }
func (w *wsConn) LocalAddr() string      { return w.c.LocalAddr().String() }
func (w *wsConn) RemoteAddr() string     { return w.c.RemoteAddr().String() }
func (w *wsConn) Boundary() Boundary     { return Packet }

// WSListener binds ws:// or wss:// endpoints using gorilla/websocket's
// HTTP upgrader.
type WSListener struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader
	accepted chan *wsConn
	errs     chan error
}

// ListenWS binds addr/path for inbound ws:// connections. If tcfg is
// non-nil, the listener terminates TLS and serves wss://.
func ListenWS(addr, path string, tcfg *tls.Config) (*WSListener, error) {
	var ln net.Listener
	var err error
	if tcfg != nil {
		ln, err = tls.Listen("tcp", addr, tcfg)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	l := &WSListener{
		ln:       ln,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		accepted: make(chan *wsConn),
		errs:     make(chan error, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		c, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		l.accepted <- &wsConn{c: c}
	})
	l.srv = &http.Server{Handler: mux}
	go func() { l.errs <- l.srv.Serve(ln) }()
	return l, nil
}

func (l *WSListener) Accept() (Conn, error) {
	select {
	case c := <-l.accepted:
		return c, nil
	case err := <-l.errs:
		return nil, err
	}
}

func (l *WSListener) Addr() string { return l.ln.Addr().String() }
func (l *WSListener) Close() error { return l.srv.Close() }

// WSConnecter dials ws:// or wss:// endpoints.
type WSConnecter struct {
	url  string
	tcfg *tls.Config
}

// DialWS prepares a connecter for a ws(s):// URL. Pass tcfg for wss://
// peer verification, nil for plain ws://.
func DialWS(url string, tcfg *tls.Config) *WSConnecter { return &WSConnecter{url: url, tcfg: tcfg} }

func (d *WSConnecter) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		TLSClientConfig:  d.tcfg,
		HandshakeTimeout: 10 * time.Second,
	}
	c, resp, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: ws dial %s: %s: %w", d.url, resp.Status, err)
		}
		return nil, err
	}
	return &wsConn{c: c}, nil
}
