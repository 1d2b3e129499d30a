// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package socket implements the user-facing socket-pattern state
// machines of spec.md §4.3: PAIR, PUB/SUB, XPUB/XSUB, DEALER/ROUTER, and
// STREAM, over the capability set {xsend, xrecv, xhas_in, xhas_out,
// xattach_pipe, xpipe_terminated}.
package socket

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/monitor"
	"github.com/zlinkio/zlink/pipe"
)

// Kind tags which socket-pattern variant a Socket implements.
type Kind uint8

const (
	KindPair Kind = iota
	KindPub
	KindSub
	KindXPub
	KindXSub
	KindDealer
	KindRouter
	KindStream
)

var (
	// ErrWouldBlock is returned by XSend/XRecv when the operation cannot
	// make progress right now (HWM reached, no pipe has data).
	ErrWouldBlock = errors.New("socket: would block")
	// ErrHostUnreachable is returned by ROUTER.XSend under
	// router_mandatory when the addressed peer is not connected.
	ErrHostUnreachable = errors.New("socket: host unreachable")
	// ErrPairFull names a second pipe attached to a PAIR socket that
	// already owns one. Pair.XAttachPipe has no error result and
	// terminates such a pipe instead, so no function in this package
	// returns ErrPairFull.
	ErrPairFull = errors.New("socket: pair socket already has a pipe")
)

// Socket is the capability set every socket-pattern variant implements,
// dispatched once per call by the I/O glue rather than per message
// (spec.md §9 "Dynamic dispatch across socket variants").
type Socket interface {
	Kind() Kind
	Options() *Options

	XSend(msg *message.Message) error
	XRecv() (*message.Message, error)
	XHasIn() bool
	XHasOut() bool
	XAttachPipe(p *pipe.Pipe)
	XPipeTerminated(p *pipe.Pipe)

	// SetMonitor wires sink as this socket's metrics destination, labeling
	// its per-socket counters/gauges with a process-unique id. Called once
	// by the owning context after construction (spec.md §6 "per-socket
	// counters").
	SetMonitor(sink *monitor.Sink)

	// Pipes returns the socket's currently attached pipes, letting the
	// owning context terminate them gracefully on Close.
	Pipes() []*pipe.Pipe
}

// base holds the state shared by every variant: options, the pipe set,
// and the mutex that makes thread-safe sockets safe to call concurrently.
// Non-thread-safe sockets (the default) simply never take mu and rely on
// the caller for external synchronization, per spec.md §5.
type base struct {
	mu         sync.Mutex
	threadSafe bool

	opts  Options
	pipes []*pipe.Pipe

	// id identifies this socket in monitor.Sink's per-socket counters; sink
	// is nil until the owning context calls SetMonitor.
	id   string
	sink *monitor.Sink
}

func newBase(threadSafe bool, opts ...Option) base {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return base{threadSafe: threadSafe, opts: o, id: uuid.NewString()}
}

func (b *base) Options() *Options { return &b.opts }

func (b *base) lock() {
	if b.threadSafe {
		b.mu.Lock()
	}
}

func (b *base) unlock() {
	if b.threadSafe {
		b.mu.Unlock()
	}
}

func (b *base) SetMonitor(sink *monitor.Sink) { b.sink = sink }

func (b *base) Pipes() []*pipe.Pipe { return append([]*pipe.Pipe(nil), b.pipes...) }

func (b *base) addPipe(p *pipe.Pipe) {
	b.pipes = append(b.pipes, p)
	if b.sink != nil {
		b.sink.SetPipesOpen(b.id, len(b.pipes))
	}
}

func (b *base) removePipe(p *pipe.Pipe) {
	for i, q := range b.pipes {
		if q == p {
			b.pipes = append(b.pipes[:i], b.pipes[i+1:]...)
			break
		}
	}
	if b.sink != nil {
		b.sink.SetPipesOpen(b.id, len(b.pipes))
	}
}
