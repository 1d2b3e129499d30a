// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iothread

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
	"github.com/zlinkio/zlink/wire"
)

// engine pumps bytes between a ready session's wire codec and its pipe
// in both directions, applying backpressure in each direction
// independently: a full outbound pipe pauses the reader (it stops asking
// the transport for more data), and a peer that stops draining pauses
// the writer (it parks rather than spinning), per spec.md §4.4 "I/O
// engine: applies backpressure symmetrically".
//
// Each direction is its own goroutine, supervised by an errgroup.Group
// the way spec.md's thread pool groups its worker units; the first
// direction to fail cancels the other via the shared context.
type engine struct {
	s *Session
}

func newEngine(s *Session) *engine { return &engine{s: s} }

func (e *engine) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.pumpWireToPipe(gctx) })
	g.Go(func() error { return e.pumpPipeToWire(gctx) })
	g.Go(func() error { return e.heartbeatLoop(gctx) })
	return g.Wait()
}

// pumpWireToPipe decodes frames off the transport and writes them to the
// socket-side pipe, parking (via a short backoff) whenever the pipe is
// at its HWM rather than dropping or busy-spinning.
func (e *engine) pumpWireToPipe(ctx context.Context) error {
	backoff := time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := e.s.dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			var perr *wire.ProtocolError
			if errors.As(err, &perr) {
				e.s.sendError(perr.Code, perr.Reason)
			}
			return fmt.Errorf("iothread: decode: %w", err)
		}

		if msg.IsCommand() {
			if err := e.handleControl(msg); err != nil {
				return err
			}
			continue
		}

		for !e.s.pipe.Write(msg) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := e.s.pipe.Flush(); err != nil && !errors.Is(err, pipe.ErrWouldBlock) {
			return fmt.Errorf("iothread: pipe flush: %w", err)
		}
		e.s.sink.CountRecv(e.s.conn.RemoteAddr(), msg.Size())
	}
}

// pumpPipeToWire reads messages the local socket queued for this peer
// and encodes them onto the transport, parking when the pipe has
// nothing to send.
func (e *engine) pumpPipeToWire(ctx context.Context) error {
	backoff := time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := e.s.pipe.Read()
		if err != nil {
			if errors.Is(err, pipe.ErrClosed) {
				return io.EOF
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		if _, err := e.s.enc.Encode(msg); err != nil {
			return fmt.Errorf("iothread: encode: %w", err)
		}
		e.s.sink.CountSent(e.s.conn.RemoteAddr(), msg.Size())
		msg.Release()
	}
}

// handleControl processes an in-band control frame received outside the
// handshake: every control frame refreshes the liveness clock used by
// heartbeatLoop, and HEARTBEAT additionally gets an immediate
// HEARTBEAT_ACK.
func (e *engine) handleControl(msg *message.Message) error {
	body := msg.Data()
	if len(body) == 0 {
		return errors.New("iothread: empty control frame")
	}
	e.s.lastRecv = clockNow()
	switch wire.ControlType(body[0]) {
	case wire.ControlHeartbeat:
		hb, err := wire.DecodeHeartbeat(body[1:])
		if err != nil {
			return err
		}
		if hb.TTLDeciseconds > 0 {
			e.s.peerTTL = time.Duration(hb.TTLDeciseconds) * 100 * time.Millisecond
			e.s.effectiveTTL = effectiveHeartbeatTTL(e.s.heartbeatTTL, e.s.peerTTL)
		}
		_, err = e.s.enc.EncodeControl(wire.EncodeHeartbeatAck(hb.ID))
		return err
	case wire.ControlHeartbeatAck:
		return nil
	case wire.ControlError:
		eb, err := wire.DecodeError(body[1:])
		if err != nil {
			return err
		}
		return fmt.Errorf("iothread: peer sent error 0x%02x: %s", eb.Code, eb.Reason)
	default:
		return nil
	}
}

// heartbeatLoop sends HEARTBEAT probes at heartbeatIvl and fails the
// session if no control frame has been received within the negotiated
// effective TTL, or within heartbeatTimeout when no TTL was negotiated
// (spec.md §4.4 "heartbeat clock"). Data frames do not refresh that
// clock. A zero interval disables heartbeating
// entirely, matching the option's documented default.
func (e *engine) heartbeatLoop(ctx context.Context) error {
	if e.s.heartbeatIvl <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(e.s.heartbeatIvl)
	defer ticker.Stop()

	ttlDeci := uint16(e.s.heartbeatTTL / (100 * time.Millisecond))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			timeout := e.s.heartbeatTimeout
			if e.s.effectiveTTL > 0 {
				timeout = e.s.effectiveTTL
			}
			if timeout > 0 && clockNow().Sub(e.s.lastRecv) > timeout {
				return fmt.Errorf("iothread: heartbeat timeout after %s", timeout)
			}
			hb := wire.Heartbeat{TTLDeciseconds: ttlDeci}
			if _, err := e.s.enc.EncodeControl(wire.EncodeHeartbeat(hb)); err != nil {
				return fmt.Errorf("iothread: send heartbeat: %w", err)
			}
		}
	}
}
