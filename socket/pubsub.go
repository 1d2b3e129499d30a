// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import (
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
)

// XPub implements XPUB: a subscription trie plus a distributor, and
// surfaces subscription notifications to the user via XRecv according to
// the configured verbosity (spec.md §4.3 "PUB / XPUB").
type XPub struct {
	base
	sub   *trie
	first map[string]bool // XPubVerboseFirstUnique bookkeeping: prefix -> seen
	notes []*message.Message
}

// NewXPub constructs an XPUB socket.
func NewXPub(opts ...Option) *XPub {
	return &XPub{base: newBase(false, opts...), sub: newTrie(), first: map[string]bool{}}
}

func (s *XPub) Kind() Kind { return KindXPub }

func (s *XPub) XAttachPipe(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	p.SetHWM(s.opts.SndHWM, s.opts.RcvHWM)
	p.OnPipeTerminated(func(pp *pipe.Pipe) { s.XPipeTerminated(pp) })
	s.addPipe(p)
	if len(s.opts.XPubWelcomeMsg) > 0 {
		p.Write(message.New(s.opts.XPubWelcomeMsg))
		_ = p.Flush()
	}
}

func (s *XPub) XPipeTerminated(p *pipe.Pipe) {
	s.lock()
	defer s.unlock()
	s.sub.RemoveAll(p)
	s.removePipe(p)
}

// drainSubscriptions pulls pending SUBSCRIBE/CANCEL control frames off
// every attached pipe, updates the trie, and (per verbosity) queues a
// user-visible notification.
func (s *XPub) drainSubscriptions() {
	for _, p := range s.pipes {
		for {
			m, err := p.Read()
			if err != nil {
				break
			}
			if m.Flags()&(message.FlagSubscribe|message.FlagCancel) == 0 {
				// Not a subscription control frame on an XPUB socket's
				// inbound side; nothing else is expected here, so drop it.
				continue
			}
			s.applySubscription(p, m)
		}
	}
}

func (s *XPub) applySubscription(p *pipe.Pipe, m *message.Message) {
	cancel := m.Flags()&message.FlagCancel != 0
	prefix := m.Data()
	var changed bool
	if cancel {
		changed = s.sub.Remove(prefix, p)
	} else {
		changed = s.sub.Add(prefix, p)
	}
	switch s.opts.XPubVerbose {
	case XPubVerboseAll:
		s.notes = append(s.notes, m)
	case XPubVerboseFirstUnique:
		key := string(prefix)
		if cancel {
			if changed {
				delete(s.first, key)
				s.notes = append(s.notes, m)
			}
		} else if changed && !s.first[key] {
			s.first[key] = true
			s.notes = append(s.notes, m)
		}
	case XPubVerboseNone:
	}
}

// XSend matches data's first bytes against the subscription trie and
// broadcasts to every matched pipe, or (spec.md §6 "invert_matching") to
// every pipe that does NOT match when inversion is enabled (spec.md §4.3
// "xsend").
func (s *XPub) XSend(msg *message.Message) error {
	s.lock()
	defer s.unlock()
	s.drainSubscriptions()

	if s.opts.InvertMatching {
		matched := make(map[*pipe.Pipe]bool)
		s.sub.Match(msg.Data(), func(p *pipe.Pipe) { matched[p] = true })
		for _, p := range s.pipes {
			if matched[p] {
				continue
			}
			s.deliver(p, msg)
		}
		return nil
	}

	s.sub.Match(msg.Data(), func(p *pipe.Pipe) { s.deliver(p, msg) })
	return nil
}

func (s *XPub) deliver(p *pipe.Pipe, msg *message.Message) {
	m := msg.Clone()
	if !p.Write(m) {
		// Drop silently on HWM: spec.md §9 resolves the PUB-at-HWM open
		// question in favor of fan-out liveness.
		if s.sink != nil {
			s.sink.CountHWMDrop(s.id)
		}
		return
	}
	_ = p.Flush()
}

// XRecv returns the next queued subscription notification (spec.md §4.3
// "XPUB additionally surfaces subscription notifications").
func (s *XPub) XRecv() (*message.Message, error) {
	s.lock()
	defer s.unlock()
	s.drainSubscriptions()
	if len(s.notes) == 0 {
		return nil, ErrWouldBlock
	}
	m := s.notes[0]
	s.notes = s.notes[1:]
	return m, nil
}

func (s *XPub) XHasIn() bool {
	s.lock()
	defer s.unlock()
	s.drainSubscriptions()
	return len(s.notes) > 0
}

func (s *XPub) XHasOut() bool {
	s.lock()
	defer s.unlock()
	return s.sub.HasSubscribers()
}

// Pub implements PUB: XPUB with XRecv disabled (spec.md §4.3 "pub is
// xpub with xrecv disabled").
type Pub struct {
	*XPub
}

// NewPub constructs a PUB socket.
func NewPub(opts ...Option) *Pub { return &Pub{XPub: NewXPub(opts...)} }

func (s *Pub) Kind() Kind { return KindPub }

func (s *Pub) XRecv() (*message.Message, error) {
	s.lock()
	defer s.unlock()
	// Still drain to keep the trie current; never surface notifications.
	s.drainSubscriptions()
	s.notes = nil
	return nil, ErrWouldBlock
}

func (s *Pub) XHasIn() bool { return false }
