// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zctx

import (
	"context"
	"fmt"
	"time"

	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/transport"
)

// Socket is the user-facing handle returned by Context.Socket: the
// socket-pattern state machine from the socket package plus the
// bind/connect surface that wires it to real transports (spec.md §6).
type Socket struct {
	ctx  *Context
	sock socket.Socket

	lastEndpoint string
}

// Kind returns the socket-pattern variant.
func (s *Socket) Kind() socket.Kind { return s.sock.Kind() }

// Options returns the socket's mutable option block.
func (s *Socket) Options() *socket.Options { return s.sock.Options() }

// LastEndpoint returns the most recently bound endpoint's resolved
// address (spec.md §6 "last_endpoint").
func (s *Socket) LastEndpoint() string { return s.lastEndpoint }

// Events reports whether a Recv/Send would currently proceed without
// blocking, for integration with an external poller that wants to watch
// several sockets at once rather than calling Recv/Send speculatively.
func (s *Socket) Events() (in, out bool) { return s.sock.XHasIn(), s.sock.XHasOut() }

// Send queues msg for delivery, blocking (bounded by
// socket.Options().Linger) rather than returning socket.ErrWouldBlock immediately,
// the way a synchronous send call is expected to behave (spec.md §6
// "send blocks until the message is queued or linger expires").
func (s *Socket) Send(msg *message.Message) error {
	deadline := s.sendDeadline()
	for {
		err := s.sock.XSend(msg)
		if err == nil {
			return nil
		}
		if err != socket.ErrWouldBlock {
			return err
		}
		if deadline != nil && time.Now().After(*deadline) {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}

// Recv blocks until a message is available or linger/timeout elapses.
func (s *Socket) Recv() (*message.Message, error) {
	deadline := s.sendDeadline()
	for {
		m, err := s.sock.XRecv()
		if err == nil {
			return m, nil
		}
		if err != socket.ErrWouldBlock {
			return nil, err
		}
		if deadline != nil && time.Now().After(*deadline) {
			return nil, err
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *Socket) sendDeadline() *time.Time {
	l := s.Options().Linger
	if l < 0 {
		return nil
	}
	t := time.Now().Add(l)
	return &t
}

// Close terminates every attached pipe and removes the socket from its
// context's registry.
func (s *Socket) Close() {
	for _, p := range s.sock.Pipes() {
		p.Terminate(true)
	}
	s.ctx.removeSocket(s)
}

// Bind starts accepting inbound connections on endpoint (spec.md §6
// "bind"), assigning the listener to one I/O thread round-robin.
func (s *Socket) Bind(endpoint string) error {
	ep, err := transport.ParseEndpoint(endpoint)
	if err != nil {
		return err
	}
	ln, err := listen(ep, s.Options())
	if err != nil {
		return fmt.Errorf("zctx: bind %s: %w", endpoint, err)
	}
	s.lastEndpoint = ln.Addr()
	s.Options().SetLastEndpoint(s.lastEndpoint)
	th := s.ctx.assignThread()
	s.ctx.bindOn(th, ln, s.sock)
	return nil
}

// Connect dials endpoint, retrying with backoff until it succeeds
// (spec.md §6 "connect").
func (s *Socket) Connect(endpoint string) error {
	ep, err := transport.ParseEndpoint(endpoint)
	if err != nil {
		return err
	}
	dial, err := connecter(ep, s.Options())
	if err != nil {
		return fmt.Errorf("zctx: connect %s: %w", endpoint, err)
	}
	local, remote := newPipePair(s.Options())
	s.sock.XAttachPipe(local)
	th := s.ctx.assignThread()
	th.Connect(context.Background(), dial, s.sock, remote)
	return nil
}

func listen(ep transport.Endpoint, opts *socket.Options) (transport.Listener, error) {
	switch ep.Scheme {
	case transport.SchemeTCP:
		return transport.ListenTCP(ep.Addr)
	case transport.SchemeIPC:
		return transport.ListenIPC(ep.Addr)
	case transport.SchemeInproc:
		return transport.ListenInproc(ep.Addr)
	case transport.SchemeTLS:
		return transport.ListenTLS(ep.Addr, tlsConfigFrom(opts))
	case transport.SchemeWS:
		return transport.ListenWS(ep.Addr, ep.Path, nil)
	case transport.SchemeWSS:
		tcfg, err := tlsConfigFrom(opts).Build(true)
		if err != nil {
			return nil, err
		}
		return transport.ListenWS(ep.Addr, ep.Path, tcfg)
	default:
		return nil, fmt.Errorf("zctx: unsupported scheme %q", ep.Scheme)
	}
}

func connecter(ep transport.Endpoint, opts *socket.Options) (transport.Connecter, error) {
	switch ep.Scheme {
	case transport.SchemeTCP:
		return transport.DialTCP(ep.Addr), nil
	case transport.SchemeIPC:
		return transport.DialIPC(ep.Addr), nil
	case transport.SchemeInproc:
		return transport.DialInproc(ep.Addr), nil
	case transport.SchemeTLS:
		return transport.DialTLS(ep.Addr, tlsConfigFrom(opts)), nil
	case transport.SchemeWS:
		return transport.DialWS(ep.String(), nil), nil
	case transport.SchemeWSS:
		tcfg, err := tlsConfigFrom(opts).Build(false)
		if err != nil {
			return nil, err
		}
		return transport.DialWS(ep.String(), tcfg), nil
	default:
		return nil, fmt.Errorf("zctx: unsupported scheme %q", ep.Scheme)
	}
}

func tlsConfigFrom(opts *socket.Options) transport.TLSConfig {
	return transport.TLSConfig{
		CertFile:    opts.TLSCert,
		KeyFile:     opts.TLSKey,
		CAFile:      opts.TLSCA,
		Hostname:    opts.TLSHostname,
		TrustSystem: opts.TLSTrustSystem,
	}
}
