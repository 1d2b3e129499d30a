// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipe implements the lock-free SPSC message pipe joining one
// socket and one session (spec.md §4.1): message-counted high-water
// marks, credit-based backpressure, and a dual-delimiter termination
// handshake.
//
// The physical queue is code.hybscloud.com/lfq's SPSC ring buffer — the
// same building block the retrieved pack documents for exactly this
// "Stage 1 -> Queue -> Stage 2" pipeline shape. Pipe adds the
// message-counted HWM/credit accounting and termination protocol that
// the raw queue does not (and, per its own docs, intentionally does not
// track length).
package pipe

import (
	"errors"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"

	"github.com/zlinkio/zlink/message"
)

// ErrClosed is returned by Read, once, when it observes the peer's
// delimiter (spec.md §4.1 "Failure").
var ErrClosed = errors.New("pipe: closed")

// ErrWouldBlock mirrors iox's non-blocking signal, re-exported for
// callers that don't want to import iox directly.
var ErrWouldBlock = iox.ErrWouldBlock

// defaultRingCapacity bounds the physical SPSC ring regardless of the
// logical HWM (0 == unlimited HWM still needs a bounded ring).
const defaultRingCapacity = 4096

// State is the pipe's lifecycle state (spec.md §3 Invariants).
type State int32

const (
	Active State = iota
	WaitingForDelimiter
	Terminating
	Terminated
)

// delimiter is a sentinel Message compared by pointer identity: it never
// appears as user data, only as the termination marker traveling through
// the queue so ordering with data is preserved (spec.md §4.1
// "Termination").
var delimiter = message.NewEmpty()

// direction holds the physical queue and message-counted accounting for
// one traffic direction, shared between the two Pipe endpoints that
// write to and read from it.
type direction struct {
	q       *lfq.SPSC[message.Message]
	pending atomix.Int64 // messages enqueued but not yet dequeued
	hwm     atomix.Int64 // 0 = unlimited
	credit  atomix.Int64 // additional capacity signaled by the reader
	wake    chan struct{}
}

func newDirection(hwm int) *direction {
	d := &direction{
		q:    lfq.NewSPSC[message.Message](defaultRingCapacity),
		wake: make(chan struct{}, 1),
	}
	d.hwm.Store(int64(hwm))
	d.credit.Store(int64(hwm))
	return d
}

func (d *direction) notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pipe is one endpoint of a pipe pair: messages written here arrive on
// the peer's read side, and vice versa.
type Pipe struct {
	out  *direction // this endpoint writes here
	in   *direction // this endpoint reads here
	peer *Pipe

	state   atomix.Int32
	onTerm  func(*Pipe) // invoked once when a delimiter is observed on read
	batch   []*message.Message
	nodelay bool

	// routingID is the peer identity advertised at handshake time, set by
	// the session once the handshake completes, which may be after the
	// socket has already attached the pipe (spec.md §3 "Routing
	// identity"). nil until the owning transport knows it. A pipe
	// pair's two endpoints are distinct *Pipe values, so SetRoutingID
	// mirrors the id onto peer as well: the session-facing endpoint learns
	// the id from the wire handshake, while the socket-facing endpoint is
	// what a ROUTER's lookup table is actually keyed by.
	routingID []byte

	// onRoutingIDSet, if set, is invoked after this pipe's routingID is
	// updated, letting a ROUTER re-key its lookup table when an id arrives
	// after the pipe was already attached under an auto-generated one.
	onRoutingIDSet func(*Pipe)
}

// RoutingID returns the peer identity advertised at handshake time for
// this pipe, or nil if none has been set yet.
func (p *Pipe) RoutingID() []byte { return p.routingID }

// SetRoutingID records the peer identity for this pipe and mirrors it onto
// the paired endpoint, since the socket-facing and session-facing ends of
// a pipe pair are separate *Pipe values. Called by the session when a
// peer's routing id arrives over the wire, or by the connecting side to
// advertise its own connect_routing_id.
func (p *Pipe) SetRoutingID(id []byte) {
	cp := append([]byte(nil), id...)
	p.routingID = cp
	if p.peer != nil {
		p.peer.routingID = append([]byte(nil), cp...)
		if p.peer.onRoutingIDSet != nil {
			p.peer.onRoutingIDSet(p.peer)
		}
	}
	if p.onRoutingIDSet != nil {
		p.onRoutingIDSet(p)
	}
}

// OnRoutingIDSet registers fn to run after SetRoutingID changes this
// pipe's routing identity.
func (p *Pipe) OnRoutingIDSet(fn func(*Pipe)) { p.onRoutingIDSet = fn }

// NewPair constructs the two endpoints of a pipe, wired so that writes on
// one side are reads on the other. outHwm/inHwm are the first endpoint's
// send/receive high-water marks (messages, 0 = unlimited); the peer's are
// the mirror image.
func NewPair(outHwm, inHwm int) (a, b *Pipe) {
	d1 := newDirection(outHwm) // a writes, b reads
	d2 := newDirection(inHwm)  // b writes, a reads
	a = &Pipe{out: d1, in: d2}
	b = &Pipe{out: d2, in: d1}
	a.peer = b
	b.peer = a
	a.state.Store(int64(Active))
	b.state.Store(int64(Active))
	return a, b
}

// OnPipeTerminated registers the callback invoked (once) from Read when
// this pipe observes the peer's delimiter, i.e. the socket-side
// xpipe_terminated hook (spec.md §4.3).
func (p *Pipe) OnPipeTerminated(fn func(*Pipe)) { p.onTerm = fn }

func (p *Pipe) stateOf() State { return State(p.state.Load()) }

// Write appends msg to the outbound batch. It returns false if the HWM
// would be exceeded; the caller may retry later or drop, per socket
// policy (spec.md §4.1 "write(msg)").
func (p *Pipe) Write(msg *message.Message) bool {
	if p.stateOf() != Active {
		return false
	}
	hwm := p.out.hwm.Load()
	if hwm > 0 && p.out.credit.Load()-int64(len(p.batch)) <= 0 {
		return false
	}
	p.batch = append(p.batch, msg)
	if p.nodelay {
		_ = p.Flush()
	}
	return true
}

// Flush publishes batched writes to the physical queue and wakes the
// peer if it was parked waiting for data (spec.md §4.1 "flush()").
func (p *Pipe) Flush() error {
	if len(p.batch) == 0 {
		return nil
	}
	for i, m := range p.batch {
		if err := p.out.q.Enqueue(m); err != nil {
			// Physical ring momentarily full; stop and let the caller
			// retry the remaining batch on the next Flush.
			p.batch = append(p.batch[:0], p.batch[i:]...)
			return iox.ErrWouldBlock
		}
		p.out.pending.Add(1)
		p.out.credit.Add(-1)
	}
	p.batch = p.batch[:0]
	p.out.notify()
	return nil
}

// CheckRead is a side-effect-free predicate for poll (spec.md §4.1
// "check_read()").
func (p *Pipe) CheckRead() bool {
	return p.in.pending.Load() > 0
}

// CheckWrite reports whether a Write would currently succeed without
// exceeding HWM.
func (p *Pipe) CheckWrite() bool {
	if p.stateOf() != Active {
		return false
	}
	hwm := p.out.hwm.Load()
	return hwm == 0 || p.out.credit.Load()-int64(len(p.batch)) > 0
}

// Read pops the next available message. It returns (nil, ErrWouldBlock)
// when empty, (nil, ErrClosed) exactly once after the peer's delimiter is
// observed, and otherwise the message (spec.md §4.1 "read(msg)").
func (p *Pipe) Read() (*message.Message, error) {
	m, err := p.in.q.Dequeue()
	if err != nil {
		if lfq.IsWouldBlock(err) {
			return nil, iox.ErrWouldBlock
		}
		return nil, err
	}
	p.in.pending.Add(-1)

	if m == delimiter {
		p.onDelimiterObserved()
		return nil, ErrClosed
	}

	// Low-water reactivation: once consumption drops at/below half the
	// peer's HWM, restore the peer's credit to the room left below HWM so
	// it may resume writing (spec.md §4.1 "Flow control").
	hwm := p.in.hwm.Load()
	if pending := p.in.pending.Load(); hwm > 0 && pending <= hwm/2 {
		p.in.credit.Store(hwm - pending)
	}
	return m, nil
}

func (p *Pipe) onDelimiterObserved() {
	switch p.stateOf() {
	case WaitingForDelimiter:
		p.state.Store(int64(Terminated))
	default:
		p.state.Store(int64(Terminating))
	}
	if p.onTerm != nil {
		p.onTerm(p)
	}
}

// Terminate begins graceful close. If sendDelimiter, a delimiter is
// enqueued that the peer must observe before it tears down its half;
// otherwise this half enters Terminating immediately without notifying
// the peer through the queue (spec.md §4.1 "terminate(send_delimiter)").
func (p *Pipe) Terminate(sendDelimiter bool) {
	cur := p.stateOf()
	if cur == Terminated || cur == Terminating {
		return
	}
	if sendDelimiter {
		// Append to the batch and flush at once: the delimiter must be
		// observable promptly and must preserve ordering with
		// already-batched data.
		p.batch = append(p.batch, delimiter)
		_ = p.Flush()
		p.state.Store(int64(WaitingForDelimiter))
	} else {
		p.state.Store(int64(Terminating))
	}
}

// SetHWM reconfigures the message-count high-water marks for the outbound
// and inbound directions (spec.md §4.1 "set_hwm").
func (p *Pipe) SetHWM(outHwm, inHwm int) {
	p.out.hwm.Store(int64(outHwm))
	p.in.hwm.Store(int64(inHwm))
}

// SetNoDelay makes Write flush immediately instead of batching (spec.md
// §4.1 "set_nodelay()").
func (p *Pipe) SetNoDelay() { p.nodelay = true }
