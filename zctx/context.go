// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zctx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/zlinkio/zlink/iothread"
	"github.com/zlinkio/zlink/monitor"
	"github.com/zlinkio/zlink/pipe"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/transport"
)

// State is the context's lifecycle state (spec.md §4.6 "init -> running
// -> shutting_down -> terminated").
type State int32

const (
	StateInit State = iota
	StateRunning
	StateShuttingDown
	StateTerminated
)

var (
	// ErrTerminated is returned by Context.Socket once Shutdown or Term
	// has begun.
	ErrTerminated = errors.New("zctx: context terminated")
	// ErrTooManySockets is returned by Socket once max_sockets sockets are
	// registered and still open.
	ErrTooManySockets = errors.New("zctx: max_sockets exceeded")
)

// Context owns the fixed I/O-thread pool, the socket registry, and the
// monitor sink every socket created from it publishes to (spec.md §4.6).
type Context struct {
	cfg Config
	log *logrus.Entry
	reg prometheus.Registerer

	mu      sync.Mutex
	state   atomic.Int32
	sockets map[*Socket]struct{}
	threads []*iothread.Thread
	next    atomic.Uint64

	sink   *monitor.Sink
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs and starts a Context: spins up cfg.IOThreads I/O
// threads (default 1, per spec.md §6) and a monitor sink accepting every
// event kind.
func New(cfg Config, log *logrus.Entry, reg prometheus.Registerer) *Context {
	if cfg.IOThreads <= 0 {
		cfg = DefaultConfig
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Context{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		sockets: make(map[*Socket]struct{}),
		sink:    monitor.NewSink(monitor.AllKinds, reg, log),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.state.Store(int32(StateRunning))

	var wg sync.WaitGroup
	for i := 0; i < cfg.IOThreads; i++ {
		th := iothread.NewThread(ctx, c.sink)
		c.threads = append(c.threads, th)
		wg.Add(1)
		go func(th *iothread.Thread) {
			defer wg.Done()
			if err := th.Run(ctx); err != nil {
				c.log.WithError(err).WithField("thread_prefix", cfg.ThreadNamePrefix).Warn("zctx: io thread exited")
			}
		}(th)
	}
	go func() {
		wg.Wait()
		close(c.done)
	}()
	return c
}

// State returns the context's current lifecycle state.
func (c *Context) State() State { return State(c.state.Load()) }

// Events returns the channel every socket's lifecycle event is published
// on (spec.md §6 "Monitor event stream").
func (c *Context) Events() <-chan monitor.Event { return c.sink.Events() }

// assignThread round-robins new sockets/connections across the I/O
// thread pool (spec.md §4.6 "socket(type): ... round-robin assignment").
func (c *Context) assignThread() *iothread.Thread {
	i := c.next.Add(1) - 1
	return c.threads[i%uint64(len(c.threads))]
}

// Socket creates a new socket of kind, registering it against this
// context's max_sockets limit.
func (c *Context) Socket(kind socket.Kind, opts ...socket.Option) (*Socket, error) {
	if State(c.state.Load()) != StateRunning {
		return nil, ErrTerminated
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sockets) >= c.cfg.MaxSockets {
		return nil, ErrTooManySockets
	}

	var sk socket.Socket
	switch kind {
	case socket.KindPair:
		sk = socket.NewPair(opts...)
	case socket.KindPub:
		sk = socket.NewPub(opts...)
	case socket.KindXPub:
		sk = socket.NewXPub(opts...)
	case socket.KindSub:
		sk = socket.NewSub(opts...)
	case socket.KindXSub:
		sk = socket.NewXSub(opts...)
	case socket.KindDealer:
		sk = socket.NewDealer(opts...)
	case socket.KindRouter:
		sk = socket.NewRouter(opts...)
	case socket.KindStream:
		sk = socket.NewStream(opts...)
	default:
		return nil, fmt.Errorf("zctx: unknown socket kind %d", kind)
	}

	sk.SetMonitor(c.sink)
	s := &Socket{ctx: c, sock: sk}
	c.sockets[s] = struct{}{}
	return s, nil
}

// removeSocket drops s from the registry; called from Socket.Close.
func (c *Context) removeSocket(s *Socket) {
	c.mu.Lock()
	delete(c.sockets, s)
	c.mu.Unlock()
}

// newPipePair builds a pipe pair sized from opts's HWM settings, used by
// both bind-side and connect-side attachment.
func newPipePair(opts *socket.Options) (local, remote *pipe.Pipe) {
	return pipe.NewPair(opts.SndHWM, opts.RcvHWM)
}

// bindOn asks an I/O thread to accept inbound connections on ln,
// constructing a fresh pipe pair per accepted connection and attaching
// one end to sock.
func (c *Context) bindOn(th *iothread.Thread, ln transport.Listener, sock socket.Socket) {
	newSock := func() (socket.Socket, *pipe.Pipe) {
		local, remote := newPipePair(sock.Options())
		sock.XAttachPipe(local)
		return sock, remote
	}
	_ = th.Mailbox.Send(iothread.NewBindCommand(ln, newSock))
}

// Shutdown begins graceful teardown: every I/O thread stops accepting
// new work and existing sessions drain per their linger setting (spec.md
// §4.6 "ctx_shutdown").
func (c *Context) Shutdown() {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown)) {
		return
	}
	for _, th := range c.threads {
		_ = th.Mailbox.Send(iothread.StopCommand())
	}
}

// Term blocks until every I/O thread has joined, then marks the context
// terminated (spec.md §4.6 "ctx_term").
func (c *Context) Term() {
	c.Shutdown()
	c.cancel()
	<-c.done
	c.sink.Close()
	c.state.Store(int32(StateTerminated))
}
