// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import (
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
)

// Stream implements STREAM: a raw byte pipe with per-peer routing
// identification, surfacing connect/disconnect as two-frame events and
// data as [routing_id][payload] (spec.md §4.3 "STREAM").
type Stream struct {
	base
	byID map[string]*pipe.Pipe
	fq   fairQueue

	events []*message.Message // queued [id][0x01]/[id][0x00] event frames

	outTarget  *pipe.Pipe
	outStarted bool

	pendingBody *message.Message
}

// NewStream constructs a STREAM socket.
func NewStream(opts ...Option) *Stream {
	return &Stream{base: newBase(false, opts...), byID: make(map[string]*pipe.Pipe)}
}

func (s *Stream) Kind() Kind { return KindStream }

func (s *Stream) XAttachPipe(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	p.SetHWM(s.opts.SndHWM, s.opts.RcvHWM)
	id := p.RoutingID()
	if len(id) == 0 {
		id = NewAutoRoutingID()
		p.SetRoutingID(id)
	}
	p.OnPipeTerminated(func(pp *pipe.Pipe) { s.XPipeTerminated(pp) })
	s.byID[string(id)] = p
	s.addPipe(p)
	s.queueEvent(id, 0x01)
}

func (s *Stream) XPipeTerminated(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	id := p.RoutingID()
	if cur, ok := s.byID[string(id)]; ok && cur == p {
		delete(s.byID, string(id))
	}
	s.removePipe(p)
	s.queueEvent(id, 0x00)
}

func (s *Stream) queueEvent(id []byte, kind byte) {
	idFrame := message.New(id)
	idFrame.SetFlags(message.FlagMore)
	body := message.New([]byte{kind})
	s.events = append(s.events, idFrame, body)
}

// XSend expects [routing_id][payload] across two XSend calls, mirroring
// ROUTER's framing convention.
func (s *Stream) XSend(msg *message.Message) error {
	s.lock()
	defer s.unlock()

	if !s.outStarted {
		p, ok := s.byID[string(msg.Data())]
		s.outStarted = true
		if !ok {
			s.outTarget = nil
			return nil
		}
		s.outTarget = p
		return nil
	}

	s.outStarted = false
	target := s.outTarget
	s.outTarget = nil
	if target == nil {
		return nil
	}
	if !target.Write(msg) {
		return ErrWouldBlock
	}
	return target.Flush()
}

func (s *Stream) XRecv() (*message.Message, error) {
	s.lock()
	defer s.unlock()

	if len(s.events) > 0 {
		m := s.events[0]
		s.events = s.events[1:]
		return m, nil
	}
	if s.pendingBody != nil {
		m := s.pendingBody
		s.pendingBody = nil
		return m, nil
	}

	n := len(s.pipes)
	for i := 0; i < n; i++ {
		idx := (s.fq.cursor + i) % n
		p := s.pipes[idx]
		m, err := p.Read()
		if err != nil {
			continue
		}
		s.fq.cursor = (idx + 1) % n
		if s.opts.MaxMsgSize >= 0 && int64(m.Size()) > s.opts.MaxMsgSize {
			// Per-peer violation: disconnect only this peer, others are
			// unaffected (spec.md §4.3 "maxmsgsize applies per payload").
			p.Terminate(true)
			return nil, ErrWouldBlock
		}
		idFrame := message.New(p.RoutingID())
		idFrame.SetFlags(message.FlagMore)
		s.pendingBody = m
		return idFrame, nil
	}
	return nil, ErrWouldBlock
}

func (s *Stream) XHasIn() bool {
	s.lock()
	defer s.unlock()
	if len(s.events) > 0 || s.pendingBody != nil {
		return true
	}
	for _, p := range s.pipes {
		if p.CheckRead() {
			return true
		}
	}
	return false
}

func (s *Stream) XHasOut() bool {
	s.lock()
	defer s.unlock()
	return len(s.byID) > 0
}
