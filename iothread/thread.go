// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iothread

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zlinkio/zlink/mailbox"
	"github.com/zlinkio/zlink/monitor"
	"github.com/zlinkio/zlink/pipe"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/transport"
)

// Thread is one member of the context's I/O thread pool (spec.md §4.4,
// §6 "io_threads"): it owns a mailbox for Bind/Attach/Stop commands from
// user threads and runs one goroutine group for every session and
// listener accept loop assigned to it.
type Thread struct {
	Mailbox *mailbox.Mailbox

	sink *monitor.Sink

	mu        sync.Mutex
	listeners map[string]transport.Listener
	g         *errgroup.Group
	gctx      context.Context
	cancel    context.CancelFunc
}

// NewThread constructs a Thread publishing lifecycle events to sink.
func NewThread(ctx context.Context, sink *monitor.Sink) *Thread {
	gctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(gctx)
	return &Thread{
		Mailbox:   mailbox.New(),
		sink:      sink,
		listeners: make(map[string]transport.Listener),
		g:         g,
		gctx:      gctx,
		cancel:    cancel,
	}
}

// Run processes mailbox commands until Stop is requested or ctx is
// cancelled, then waits for every session/listener goroutine to unwind.
func (t *Thread) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.shutdown()
			return t.g.Wait()
		case <-t.Mailbox.Closed():
			t.shutdown()
			return t.g.Wait()
		default:
		}

		cmd, err := t.Mailbox.Recv()
		if err != nil {
			t.shutdown()
			return t.g.Wait()
		}
		switch cmd.Type {
		case mailbox.Stop:
			t.shutdown()
			return t.g.Wait()
		case mailbox.Bind:
			t.handleBind(cmd)
		case mailbox.Attach:
			t.handleAttach(cmd)
		default:
			// Own/PipeTerm/Reap and the rest are consumed by the owning
			// object (socket/zctx), not by the thread itself.
		}
	}
}

func (t *Thread) shutdown() {
	t.mu.Lock()
	for addr, ln := range t.listeners {
		_ = ln.Close()
		delete(t.listeners, addr)
	}
	t.mu.Unlock()
	t.cancel()
}

// BindCommand is the Command.Payload shape for mailbox.Bind: newSock is
// called once per accepted connection to build the pipe-endpoint half
// that attaches to the user's socket.
type BindCommand struct {
	Listener transport.Listener
	NewSock  func() (socket.Socket, *pipe.Pipe)
}

// NewBindCommand wraps a BindCommand as a mailbox.Command.
func NewBindCommand(ln transport.Listener, newSock func() (socket.Socket, *pipe.Pipe)) mailbox.Command {
	return mailbox.Command{Type: mailbox.Bind, Payload: BindCommand{Listener: ln, NewSock: newSock}}
}

// AttachCommand is the Command.Payload shape for mailbox.Attach: an
// already-established outbound connection ready to run its session.
type AttachCommand struct {
	Conn transport.Conn
	Sock socket.Socket
	Pipe *pipe.Pipe
}

// NewAttachCommand wraps an AttachCommand as a mailbox.Command.
func NewAttachCommand(conn transport.Conn, sock socket.Socket, p *pipe.Pipe) mailbox.Command {
	return mailbox.Command{Type: mailbox.Attach, Payload: AttachCommand{Conn: conn, Sock: sock, Pipe: p}}
}

// StopCommand requests that a Thread stop accepting new work and join.
func StopCommand() mailbox.Command { return mailbox.Command{Type: mailbox.Stop} }

func (t *Thread) handleBind(cmd mailbox.Command) {
	bc, ok := cmd.Payload.(BindCommand)
	if !ok {
		return
	}
	t.mu.Lock()
	t.listeners[bc.Listener.Addr()] = bc.Listener
	t.mu.Unlock()
	t.sink.Emit(monitor.NewEvent(monitor.KindListening, 0, bc.Listener.Addr(), "", nil))

	t.g.Go(func() error {
		for {
			conn, err := bc.Listener.Accept()
			if err != nil {
				select {
				case <-t.gctx.Done():
					return nil
				default:
					return fmt.Errorf("iothread: accept on %s: %w", bc.Listener.Addr(), err)
				}
			}
			t.sink.Emit(monitor.NewEvent(monitor.KindAccepted, 0, bc.Listener.Addr(), conn.RemoteAddr(), nil))
			sock, p := bc.NewSock()
			t.spawnSession(conn, sock, p)
		}
	})
}

func (t *Thread) handleAttach(cmd mailbox.Command) {
	ac, ok := cmd.Payload.(AttachCommand)
	if !ok {
		return
	}
	t.spawnSession(ac.Conn, ac.Sock, ac.Pipe)
}

// spawnSession runs conn's session to completion on this thread's
// errgroup. p must already be attached to sock's socket-side pipe
// endpoint by the caller (the other end of the pair, handed to this
// session) — spawnSession only drives the wire, it never itself calls
// XAttachPipe.
func (t *Thread) spawnSession(conn transport.Conn, sock socket.Socket, p *pipe.Pipe) {
	sess := NewSession(conn, sock, p, t.sink)
	t.g.Go(func() error {
		_ = sess.Run(t.gctx)
		return nil
	})
}

// Connect dials addr via dial and runs the resulting connection's
// session on this thread, retrying with backoff until ctx is cancelled
// or the connection succeeds (spec.md §4.4 "connecting"). p must already
// be the session-side end of a pair whose socket-side end is attached to
// sock.
func (t *Thread) Connect(ctx context.Context, dial transport.Connecter, sock socket.Socket, p *pipe.Pipe) {
	t.g.Go(func() error {
		rc := newReconnector(dial, 0, 0)
		conn, err := rc.Dial(t.gctx)
		if err != nil {
			return nil
		}
		t.spawnSession(conn, sock, p)
		return nil
	})
}
