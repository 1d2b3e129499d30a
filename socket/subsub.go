// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import (
	"bytes"

	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
)

// subset is SUB's own local subscription filter: a flat set of prefixes
// (not a trie, since SUB only ever matches against its own set, not a
// per-pipe one) used to decide whether an incoming message is delivered
// to the user (spec.md §4.3 "SUB / XSUB").
type subset struct {
	prefixes [][]byte
}

func (s *subset) add(p []byte) bool {
	for _, e := range s.prefixes {
		if bytes.Equal(e, p) {
			return false
		}
	}
	s.prefixes = append(s.prefixes, append([]byte(nil), p...))
	return true
}

func (s *subset) remove(p []byte) bool {
	for i, e := range s.prefixes {
		if bytes.Equal(e, p) {
			s.prefixes = append(s.prefixes[:i], s.prefixes[i+1:]...)
			return true
		}
	}
	return false
}

func (s *subset) matches(data []byte) bool {
	if len(s.prefixes) == 0 {
		return false
	}
	for _, p := range s.prefixes {
		if bytes.HasPrefix(data, p) {
			return true
		}
	}
	return false
}

// fairQueue round-robins across a socket's pipes, advancing the cursor
// after each completed message so no single peer starves the others
// (spec.md §5 "Ordering").
type fairQueue struct{ cursor int }

// next tries each pipe starting at the cursor, returning the first
// available message and advancing the cursor past the pipe it came from.
func (q *fairQueue) next(pipes []*pipe.Pipe) (*message.Message, error) {
	n := len(pipes)
	if n == 0 {
		return nil, ErrWouldBlock
	}
	for i := 0; i < n; i++ {
		idx := (q.cursor + i) % n
		m, err := pipes[idx].Read()
		if err == nil {
			q.cursor = (idx + 1) % n
			return m, nil
		}
	}
	return nil, ErrWouldBlock
}

// Sub implements SUB: a local subscription filter, subscribe/unsubscribe
// composed as control frames sent upstream, and fair-queued filtered
// delivery (spec.md §4.3 "SUB / XSUB").
type Sub struct {
	base
	local subset
	fq    fairQueue
}

// NewSub constructs a SUB socket.
func NewSub(opts ...Option) *Sub { return &Sub{base: newBase(false, opts...)} }

func (s *Sub) Kind() Kind { return KindSub }

func (s *Sub) XAttachPipe(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	p.SetHWM(s.opts.SndHWM, s.opts.RcvHWM)
	p.OnPipeTerminated(func(pp *pipe.Pipe) { s.XPipeTerminated(pp) })
	s.addPipe(p)
}

func (s *Sub) XPipeTerminated(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	s.removePipe(p)
}

// Subscribe adds prefix to the local filter and forwards a SUBSCRIBE
// control frame upstream through every outbound pipe (spec.md §6
// "subscribe").
func (s *Sub) Subscribe(prefix []byte) {
	s.lock()
	defer s.unlock()
	s.local.add(prefix)
	s.broadcastControl(prefix, message.FlagSubscribe)
}

// Unsubscribe removes prefix from the local filter and forwards a
// CANCEL control frame upstream (spec.md §6 "unsubscribe").
func (s *Sub) Unsubscribe(prefix []byte) {
	s.lock()
	defer s.unlock()
	s.local.remove(prefix)
	s.broadcastControl(prefix, message.FlagCancel)
}

func (s *Sub) broadcastControl(prefix []byte, flag message.Flag) {
	for _, p := range s.pipes {
		m := message.New(prefix)
		m.SetFlags(flag | message.FlagCommand)
		if p.Write(m) {
			_ = p.Flush()
		}
	}
}

func (s *Sub) XSend(*message.Message) error { return ErrWouldBlock }

func (s *Sub) XRecv() (*message.Message, error) {
	s.lock()
	defer s.unlock()
	for {
		m, err := s.fq.next(s.pipes)
		if err != nil {
			return nil, ErrWouldBlock
		}
		matched := s.local.matches(m.Data())
		if s.opts.InvertMatching {
			matched = !matched
		}
		if matched {
			return m, nil
		}
		// Filtered out: loop to try the next available message.
	}
}

func (s *Sub) XHasIn() bool {
	s.lock()
	defer s.unlock()
	for _, p := range s.pipes {
		if p.CheckRead() {
			return true
		}
	}
	return false
}

func (s *Sub) XHasOut() bool { return false }

// XSub implements XSUB: no local filter (filtering is false); clients
// forward raw subscription frames themselves via XSend (spec.md §4.3
// "xsub has no local filter").
type XSub struct {
	base
	fq fairQueue
}

// NewXSub constructs an XSUB socket.
func NewXSub(opts ...Option) *XSub { return &XSub{base: newBase(false, opts...)} }

func (s *XSub) Kind() Kind { return KindXSub }

func (s *XSub) XAttachPipe(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	p.SetHWM(s.opts.SndHWM, s.opts.RcvHWM)
	p.OnPipeTerminated(func(pp *pipe.Pipe) { s.XPipeTerminated(pp) })
	s.addPipe(p)
}

func (s *XSub) XPipeTerminated(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	s.removePipe(p)
}

// XSend forwards msg as-is upstream to every pipe; callers construct the
// SUBSCRIBE/CANCEL control frames themselves.
func (s *XSub) XSend(msg *message.Message) error {
	s.lock()
	defer s.unlock()
	ok := false
	for _, p := range s.pipes {
		if p.Write(msg.Clone()) {
			_ = p.Flush()
			ok = true
		}
	}
	if !ok {
		return ErrWouldBlock
	}
	return nil
}

func (s *XSub) XRecv() (*message.Message, error) {
	s.lock()
	defer s.unlock()
	m, err := s.fq.next(s.pipes)
	if err != nil {
		return nil, ErrWouldBlock
	}
	return m, nil
}

func (s *XSub) XHasIn() bool {
	s.lock()
	defer s.unlock()
	for _, p := range s.pipes {
		if p.CheckRead() {
			return true
		}
	}
	return false
}

func (s *XSub) XHasOut() bool { return len(s.pipes) > 0 }
