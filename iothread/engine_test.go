// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iothread

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zlinkio/zlink/monitor"
	"github.com/zlinkio/zlink/pipe"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/transport"
)

// discardConn is a minimal transport.Conn whose Write always succeeds and
// whose Read blocks, sufficient for exercising heartbeatLoop in isolation
// since it never reads from the connection itself.
type discardConn struct{}

func (discardConn) Read(p []byte) (int, error)   { select {} }
func (discardConn) Write(p []byte) (int, error)  { return len(p), nil }
func (discardConn) Close() error                 { return nil }
func (discardConn) LocalAddr() string            { return "local" }
func (discardConn) RemoteAddr() string           { return "remote" }
func (discardConn) Boundary() transport.Boundary { return transport.Stream }

func newTestSession() *Session {
	p, _ := pipe.NewPair(0, 0)
	sink := monitor.NewSink(monitor.AllKinds, nil, nil)
	return NewSession(discardConn{}, socket.NewPair(), p, sink)
}

// TestHeartbeatLoopDetectsTimeout exercises spec.md §8 scenario 5: a
// session whose peer has gone silent past heartbeat_timeout must fail
// the session so Run emits a disconnected event.
func TestHeartbeatLoopDetectsTimeout(t *testing.T) {
	sess := newTestSession()
	sess.heartbeatIvl = 10 * time.Millisecond
	sess.heartbeatTimeout = 20 * time.Millisecond
	sess.lastRecv = time.Now().Add(-time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := newEngine(sess).heartbeatLoop(ctx)
	if err == nil || !strings.Contains(err.Error(), "heartbeat timeout") {
		t.Fatalf("heartbeatLoop = %v, want a heartbeat timeout error", err)
	}
}

func TestHeartbeatLoopDisabledWhenIntervalIsZero(t *testing.T) {
	sess := newTestSession()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := newEngine(sess).heartbeatLoop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("heartbeatLoop with ivl=0 = %v, want context.DeadlineExceeded", err)
	}
}
