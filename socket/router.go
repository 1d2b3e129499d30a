// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import (
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
)

// Router implements ROUTER: a peer_routing_id -> pipe map, prepending the
// sender's routing id to every received message and routing outbound
// sends by an explicit leading routing-id frame (spec.md §4.3 "ROUTER").
type Router struct {
	base
	byID map[string]*pipe.Pipe
	fq   fairQueue

	// outbound multipart state: the caller must send [routing_id] then
	// the body frame(s) as separate XSend calls.
	outTarget  *pipe.Pipe
	outDropped bool
	outStarted bool

	// inbound: the routing-id frame for a pending body is queued here
	// until the next XRecv call delivers it, then the body.
	pendingBody *message.Message
	pendingFrom []byte
}

// NewRouter constructs a ROUTER socket.
func NewRouter(opts ...Option) *Router {
	return &Router{base: newBase(false, opts...), byID: make(map[string]*pipe.Pipe)}
}

func (s *Router) Kind() Kind { return KindRouter }

func (s *Router) XAttachPipe(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	p.SetHWM(s.opts.SndHWM, s.opts.RcvHWM)
	id := p.RoutingID()
	if len(id) == 0 {
		id = NewAutoRoutingID()
		p.SetRoutingID(id)
	}
	if old, ok := s.byID[string(id)]; ok && old != p {
		if s.opts.RouterHandover {
			old.Terminate(false)
			s.removePipe(old)
		} else {
			// No handover configured: reject the new peer's claimed id by
			// terminating its pipe instead of silently shadowing the map.
			p.Terminate(false)
			return
		}
	}
	p.OnPipeTerminated(func(pp *pipe.Pipe) { s.XPipeTerminated(pp) })
	p.OnRoutingIDSet(func(pp *pipe.Pipe) { s.rekey(pp) })
	s.byID[string(id)] = p
	s.addPipe(p)
}

func (s *Router) XPipeTerminated(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	if id := p.RoutingID(); len(id) > 0 {
		if cur, ok := s.byID[string(id)]; ok && cur == p {
			delete(s.byID, string(id))
		}
	}
	s.removePipe(p)
}

// rekey re-indexes p in byID after its routing identity changes post
// attach, e.g. when a peer's connect_routing_id arrives over the
// handshake after ROUTER already keyed the pipe under an auto-generated
// id (spec.md §4.3 "ROUTER routing identity").
func (s *Router) rekey(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	for id, cur := range s.byID {
		if cur == p {
			delete(s.byID, id)
			break
		}
	}
	if id := p.RoutingID(); len(id) > 0 {
		s.byID[string(id)] = p
	}
}

// XSend expects [routing_id][body...] across successive calls: the first
// call (no MORE required) names the destination; subsequent calls
// deliver the body, ending when a call arrives without MORE set.
func (s *Router) XSend(msg *message.Message) error {
	s.lock()
	defer s.unlock()

	if !s.outStarted {
		id := msg.Data()
		p, ok := s.byID[string(id)]
		s.outStarted = true
		if !ok {
			s.outDropped = true
			s.outTarget = nil
			if s.opts.RouterMandatory {
				s.outStarted = false
				s.outDropped = false
				return ErrHostUnreachable
			}
			return nil
		}
		s.outDropped = false
		s.outTarget = p
		return nil
	}

	defer func() {
		if !msg.More() {
			s.outStarted = false
			s.outTarget = nil
			s.outDropped = false
		}
	}()

	if s.outDropped || s.outTarget == nil {
		return nil
	}
	if !s.outTarget.Write(msg) {
		return ErrWouldBlock
	}
	return s.outTarget.Flush()
}

// XRecv prepends the sender's routing id (spec.md §4.3 "ROUTER xrecv").
func (s *Router) XRecv() (*message.Message, error) {
	s.lock()
	defer s.unlock()

	if s.pendingBody != nil {
		m := s.pendingBody
		s.pendingBody = nil
		return m, nil
	}

	m, err := s.fqNext()
	if err != nil {
		return nil, ErrWouldBlock
	}
	return m, nil
}

func (s *Router) fqNext() (*message.Message, error) {
	n := len(s.pipes)
	if n == 0 {
		return nil, ErrWouldBlock
	}
	for i := 0; i < n; i++ {
		idx := (s.fq.cursor + i) % n
		p := s.pipes[idx]
		m, err := p.Read()
		if err == nil {
			s.fq.cursor = (idx + 1) % n
			idFrame := message.New(p.RoutingID())
			idFrame.SetFlags(message.FlagMore)
			s.pendingBody = m
			return idFrame, nil
		}
	}
	return nil, ErrWouldBlock
}

func (s *Router) XHasIn() bool {
	s.lock()
	defer s.unlock()
	if s.pendingBody != nil {
		return true
	}
	for _, p := range s.pipes {
		if p.CheckRead() {
			return true
		}
	}
	return false
}

func (s *Router) XHasOut() bool {
	s.lock()
	defer s.unlock()
	for _, p := range s.pipes {
		if p.CheckWrite() {
			return true
		}
	}
	return false
}
