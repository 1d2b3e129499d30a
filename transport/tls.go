// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
)

// TLSConfig carries the subset of socket.Options the tls:// transport
// needs, passed in by the caller rather than importing the socket
// package (which would create an import cycle with socket -> transport
// wiring at the zctx layer).
type TLSConfig struct {
	CertFile, KeyFile, CAFile string
	Hostname                  string
	TrustSystem               bool
}

// Build constructs a *tls.Config from c; server selects whether CAFile
// (if set) populates ClientCAs (server-side mTLS) or RootCAs (client-side
// peer verification).
func (c TLSConfig) Build(server bool) (*tls.Config, error) {
	cfg := &tls.Config{ServerName: c.Hostname}
	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load tls keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	pool := (*x509.CertPool)(nil)
	if c.TrustSystem {
		p, err := x509.SystemCertPool()
		if err != nil {
			p = x509.NewCertPool()
		}
		pool = p
	}
	if c.CAFile != "" {
		if pool == nil {
			pool = x509.NewCertPool()
		}
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("transport: read tls ca: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("transport: no certificates found in %s", c.CAFile)
		}
	}
	if pool != nil {
		if server {
			cfg.ClientCAs = pool
			cfg.ClientAuth = tls.VerifyClientCertIfGiven
		} else {
			cfg.RootCAs = pool
		}
	}
	return cfg, nil
}

// TLSListener binds tls:// endpoints.
type TLSListener struct{ ln net.Listener }

// ListenTLS binds addr for inbound tls:// connections, terminating TLS
// using the server identity in cfg.
func ListenTLS(addr string, cfg TLSConfig) (*TLSListener, error) {
	tcfg, err := cfg.Build(true)
	if err != nil {
		return nil, err
	}
	ln, err := tls.Listen("tcp", addr, tcfg)
	if err != nil {
		return nil, err
	}
	return &TLSListener{ln: ln}, nil
}

func (l *TLSListener) Accept() (Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return &netConn{c: c, b: Stream}, nil
}

func (l *TLSListener) Addr() string { return l.ln.Addr().String() }
func (l *TLSListener) Close() error { return l.ln.Close() }

// TLSConnecter dials tls:// endpoints.
type TLSConnecter struct {
	addr string
	cfg  TLSConfig
}

// DialTLS prepares a connecter for addr, verifying the peer using cfg.
func DialTLS(addr string, cfg TLSConfig) *TLSConnecter { return &TLSConnecter{addr: addr, cfg: cfg} }

func (d *TLSConnecter) Dial(ctx context.Context) (Conn, error) {
	tcfg, err := d.cfg.Build(false)
	if err != nil {
		return nil, err
	}
	dialer := tls.Dialer{Config: tcfg}
	c, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, err
	}
	return &netConn{c: c, b: Stream}, nil
}
