// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import (
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
)

// Dealer implements DEALER: fair-queued inbound, round-robin
// load-balanced outbound (spec.md §4.3 "DEALER").
type Dealer struct {
	base
	fq     fairQueue
	lbCur  int
}

// NewDealer constructs a DEALER socket.
func NewDealer(opts ...Option) *Dealer { return &Dealer{base: newBase(false, opts...)} }

func (s *Dealer) Kind() Kind { return KindDealer }

func (s *Dealer) XAttachPipe(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	p.SetHWM(s.opts.SndHWM, s.opts.RcvHWM)
	p.OnPipeTerminated(func(pp *pipe.Pipe) { s.XPipeTerminated(pp) })
	s.addPipe(p)
	if s.opts.ProbeRouter {
		// Elicit a routing-id handshake from a ROUTER peer (spec.md §4.3
		// "probe_router").
		p.Write(message.NewEmpty())
		_ = p.Flush()
	}
}

func (s *Dealer) XPipeTerminated(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	s.removePipe(p)
}

// XSend load-balances msg round-robin over pipes that currently accept
// writes.
func (s *Dealer) XSend(msg *message.Message) error {
	s.lock()
	defer s.unlock()
	n := len(s.pipes)
	for i := 0; i < n; i++ {
		idx := (s.lbCur + i) % n
		p := s.pipes[idx]
		if p.CheckWrite() && p.Write(msg) {
			s.lbCur = (idx + 1) % n
			return p.Flush()
		}
	}
	return ErrWouldBlock
}

func (s *Dealer) XRecv() (*message.Message, error) {
	s.lock()
	defer s.unlock()
	m, err := s.fq.next(s.pipes)
	if err != nil {
		return nil, ErrWouldBlock
	}
	return m, nil
}

func (s *Dealer) XHasIn() bool {
	s.lock()
	defer s.unlock()
	for _, p := range s.pipes {
		if p.CheckRead() {
			return true
		}
	}
	return false
}

// XHasOut is true iff at least one pipe has credit (spec.md §4.3 "DEALER
// xhas_out").
func (s *Dealer) XHasOut() bool {
	s.lock()
	defer s.unlock()
	for _, p := range s.pipes {
		if p.CheckWrite() {
			return true
		}
	}
	return false
}
