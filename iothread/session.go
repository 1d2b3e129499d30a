// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package iothread implements the I/O-thread side of one transport
// connection: the session state machine (handshake, heartbeat, teardown)
// and the engine that pumps bytes between a wire.Decoder/Encoder and the
// pipe fabric (spec.md §4.2, §4.4).
//
// Where the original reactor design multiplexes every connection's
// non-blocking I/O onto a handful of OS threads via epoll, the idiomatic
// Go rendition gives each session its own goroutine and lets the runtime
// scheduler do the multiplexing; Thread (thread.go) groups a configurable
// number of these goroutines per errgroup.Group the way spec.md's
// "io_threads" option sizes the original's worker pool.
package iothread

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/zlinkio/zlink/monitor"
	"github.com/zlinkio/zlink/pipe"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/transport"
	"github.com/zlinkio/zlink/wire"
)

// State is the session's position in the handshake/teardown lifecycle
// (spec.md §4.4 "unattached -> connecting -> handshaking -> ready ->
// closing -> done").
type State int32

const (
	StateUnattached State = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateClosing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// compatible reports whether two ZMP socket-type codes may hand shake,
// mirroring spec.md §4.4's pairing table (PAIR only with PAIR, PUB only
// with SUB/XSUB, ROUTER with DEALER/ROUTER/REQ-like peers, and so on).
// The original's own table is reused directly rather than reinvented: a
// socket kind may talk to its designated peer kind(s) or to itself when
// the kind is explicitly symmetric.
func compatible(local, remote socket.Kind) bool {
	switch local {
	case socket.KindPair:
		return remote == socket.KindPair
	case socket.KindPub, socket.KindXPub:
		return remote == socket.KindSub || remote == socket.KindXSub
	case socket.KindSub, socket.KindXSub:
		return remote == socket.KindPub || remote == socket.KindXPub
	case socket.KindDealer, socket.KindRouter:
		return remote == socket.KindDealer || remote == socket.KindRouter
	case socket.KindStream:
		return true // STREAM interoperates with any raw peer, including non-ZMP ones
	default:
		return false
	}
}

// Session drives one transport.Conn through handshake, steady-state
// message pumping, and graceful teardown, surfacing lifecycle events to
// a monitor.Sink.
type Session struct {
	conn transport.Conn
	sock socket.Socket
	pipe *pipe.Pipe

	enc *wire.Encoder
	dec *wire.Decoder

	state State
	sink  *monitor.Sink

	heartbeatIvl     time.Duration
	heartbeatTimeout time.Duration
	heartbeatTTL     time.Duration

	// peerTTL is the peer's own heartbeat TTL, learned from HELLO metadata
	// or a HEARTBEAT frame; effectiveTTL is min(heartbeatTTL, peerTTL) per
	// spec.md §4.2, with zero on either side meaning "inherit the other's".
	peerTTL      time.Duration
	effectiveTTL time.Duration

	lastRecv time.Time
}

// NewSession constructs a Session for an already-established conn, bound
// to the local socket sock and its attached pipe p.
func NewSession(conn transport.Conn, sock socket.Socket, p *pipe.Pipe, sink *monitor.Sink) *Session {
	opts := sock.Options()
	return &Session{
		conn:             conn,
		sock:             sock,
		pipe:             p,
		enc:              wire.NewEncoder(conn),
		dec:              wire.NewDecoder(conn, opts.MaxMsgSize),
		state:            StateUnattached,
		sink:             sink,
		heartbeatIvl:     opts.HeartbeatIvl,
		heartbeatTimeout: opts.HeartbeatTimeout,
		heartbeatTTL:     opts.HeartbeatTTL,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Run executes the full session lifecycle: handshake, then steady-state
// pumping, until ctx is cancelled or an unrecoverable error occurs. It
// always returns having closed conn and terminated pipe.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()
	defer s.pipe.Terminate(true)

	s.state = StateHandshaking
	if err := s.handshake(ctx); err != nil {
		s.emitDisconnect(err)
		s.state = StateClosing
		s.state = StateDone
		return err
	}

	s.state = StateReady
	s.sink.Emit(monitor.NewEvent(monitor.KindConnectionReady, 0, s.conn.LocalAddr(), s.conn.RemoteAddr(), s.pipe.RoutingID()))

	err := newEngine(s).run(ctx)

	s.state = StateClosing
	if err != nil && !errors.Is(err, context.Canceled) {
		s.emitDisconnect(err)
	}
	s.state = StateDone
	return err
}

func (s *Session) emitDisconnect(err error) {
	s.sink.Emit(monitor.NewEvent(monitor.KindDisconnected, mapDisconnectReason(err), s.conn.LocalAddr(), s.conn.RemoteAddr(), s.pipe.RoutingID()))
}

func mapDisconnectReason(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return int(monitor.DisconnectTimeout)
	default:
		return int(monitor.DisconnectUnknown)
	}
}

// handshake exchanges HELLO then READY with the peer (spec.md §4.4).
// Whichever side's HELLO arrives enables the socket-type compatibility
// check before READY is sent; an incompatible pairing or malformed
// control frame ends the handshake with the matching ERROR code.
func (s *Session) handshake(ctx context.Context) error {
	opts := s.sock.Options()
	hello := wire.Hello{SocketType: uint8(s.sock.Kind())}
	routingID := opts.ConnectRoutingID
	if len(routingID) == 0 {
		routingID = opts.RoutingID
	}
	if opts.ZMPMetadata || len(routingID) > 0 || s.heartbeatTTL > 0 {
		hello.Metadata = map[string]string{}
		if len(routingID) > 0 {
			hello.Metadata["routing_id"] = string(routingID)
		}
		if s.heartbeatTTL > 0 {
			hello.Metadata["heartbeat_ttl"] = strconv.Itoa(int(s.heartbeatTTL / (100 * time.Millisecond)))
		}
	}
	helloBody := wire.EncodeHello(hello)
	if _, err := s.enc.EncodeControl(helloBody); err != nil {
		return fmt.Errorf("iothread: send hello: %w", err)
	}

	peerMsg, err := s.dec.Decode()
	if err != nil {
		return fmt.Errorf("iothread: recv hello: %w", err)
	}
	if !peerMsg.IsCommand() || len(peerMsg.Data()) == 0 || peerMsg.Data()[0] != byte(wire.ControlHello) {
		s.sendError(wire.ErrCodeFlagsInvalid, "expected hello control frame")
		return errors.New("iothread: peer did not send hello")
	}
	peerHello, err := wire.DecodeHello(peerMsg.Data()[1:])
	if err != nil {
		s.sendError(wire.ErrCodeHandshakeTimeout, "malformed hello")
		return err
	}
	if !compatible(s.sock.Kind(), socket.Kind(peerHello.SocketType)) {
		s.sendError(wire.ErrCodeSocketTypeMismatch, "incompatible socket types")
		return fmt.Errorf("iothread: incompatible peer socket type %d", peerHello.SocketType)
	}

	if _, err := s.enc.EncodeControl(wire.EncodeReady()); err != nil {
		return fmt.Errorf("iothread: send ready: %w", err)
	}
	readyMsg, err := s.dec.Decode()
	if err != nil {
		return fmt.Errorf("iothread: recv ready: %w", err)
	}
	if !readyMsg.IsCommand() || len(readyMsg.Data()) == 0 || readyMsg.Data()[0] != byte(wire.ControlReady) {
		s.sendError(wire.ErrCodeFlagsInvalid, "expected ready control frame")
		return errors.New("iothread: peer did not send ready")
	}

	if id := peerHello.Metadata["routing_id"]; id != "" {
		s.pipe.SetRoutingID([]byte(id))
	}
	if ttl := peerHello.Metadata["heartbeat_ttl"]; ttl != "" {
		if n, err := strconv.Atoi(ttl); err == nil {
			s.peerTTL = time.Duration(n) * 100 * time.Millisecond
		}
	}
	s.effectiveTTL = effectiveHeartbeatTTL(s.heartbeatTTL, s.peerTTL)
	s.lastRecv = clockNow()
	return nil
}

// effectiveHeartbeatTTL implements spec.md §4.2's negotiation rule: the
// effective TTL between two peers is the minimum of both sides'
// configured values, with zero meaning "unset" and inheriting the other
// side's.
func effectiveHeartbeatTTL(local, remote time.Duration) time.Duration {
	switch {
	case local <= 0:
		return remote
	case remote <= 0:
		return local
	case remote < local:
		return remote
	default:
		return local
	}
}

func (s *Session) sendError(code wire.ErrorCode, reason string) {
	body := wire.EncodeError(wire.ErrorBody{Code: code, Reason: reason})
	_, _ = s.enc.EncodeControl(body)
}

// clockNow exists so the heartbeat/timeout arithmetic has one seam; it
// is a var, not a direct time.Now() call, only so tests can fake it.
var clockNow = time.Now

// reconnector drives the dial-retry loop for an outbound connection,
// pacing attempts with an exponential backoff capped at maxInterval
// (spec.md §4.4 "reconnect backoff"). Grounded on golang.org/x/time/rate
// the way a token-bucket limiter paces retries in client libraries
// throughout the retrieved pack's ecosystem.
type reconnector struct {
	dial        transport.Connecter
	minInterval time.Duration
	maxInterval time.Duration
}

func newReconnector(dial transport.Connecter, minInterval, maxInterval time.Duration) *reconnector {
	if minInterval <= 0 {
		minInterval = 100 * time.Millisecond
	}
	if maxInterval <= 0 {
		maxInterval = 30 * time.Second
	}
	return &reconnector{dial: dial, minInterval: minInterval, maxInterval: maxInterval}
}

// Dial retries dial.Dial with exponential backoff until it succeeds or
// ctx is cancelled.
func (r *reconnector) Dial(ctx context.Context) (transport.Conn, error) {
	interval := r.minInterval
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		conn, err := r.dial.Dial(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if interval < r.maxInterval {
			interval *= 2
			if interval > r.maxInterval {
				interval = r.maxInterval
			}
			limiter.SetLimit(rate.Every(interval))
		}
		if werr := limiter.Wait(ctx); werr != nil {
			return nil, werr
		}
	}
}
