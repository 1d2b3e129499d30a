// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import (
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
)

// Pair implements the PAIR socket: exactly one pipe, no framing beyond
// ZMP MORE, forwarded directly (spec.md §4.3 "PAIR").
type Pair struct {
	base
	p *pipe.Pipe
}

// NewPair constructs a PAIR socket.
func NewPair(opts ...Option) *Pair {
	return &Pair{base: newBase(false, opts...)}
}

func (s *Pair) Kind() Kind { return KindPair }

func (s *Pair) XAttachPipe(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	if s.p != nil {
		// Extra xattach_pipe requests terminate the new pipe (spec.md
		// §4.3 "PAIR").
		p.Terminate(false)
		return
	}
	p.SetHWM(s.opts.SndHWM, s.opts.RcvHWM)
	p.OnPipeTerminated(func(pp *pipe.Pipe) { s.XPipeTerminated(pp) })
	s.p = p
	s.addPipe(p)
}

func (s *Pair) XPipeTerminated(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	if s.p == p {
		s.p = nil
		s.removePipe(p)
	}
}

func (s *Pair) XSend(msg *message.Message) error {
	s.lock()
	defer s.unlock()
	if s.p == nil || !s.p.Write(msg) {
		return ErrWouldBlock
	}
	return s.p.Flush()
}

func (s *Pair) XRecv() (*message.Message, error) {
	s.lock()
	defer s.unlock()
	if s.p == nil {
		return nil, ErrWouldBlock
	}
	m, err := s.p.Read()
	if err != nil {
		if err == pipe.ErrClosed {
			return nil, ErrWouldBlock
		}
		return nil, ErrWouldBlock
	}
	return m, nil
}

func (s *Pair) XHasIn() bool {
	s.lock()
	defer s.unlock()
	return s.p != nil && s.p.CheckRead()
}

func (s *Pair) XHasOut() bool {
	s.lock()
	defer s.unlock()
	return s.p != nil && s.p.CheckWrite()
}
