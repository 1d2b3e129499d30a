// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mailbox

import (
	"sync"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"code.hybscloud.com/spin"
)

// capacity bounds the physical queue. Spec.md §4.5 calls for an
// "unbounded" queue; like most real lock-free implementations we
// approximate that with a generous fixed bound rather than an
// unbounded allocation-per-push design.
const capacity = 16384

// Mailbox is the non-thread-safe variant: exactly one goroutine (the
// owning I/O thread) ever calls Recv, any number of goroutines call Send.
// Recv blocks by spinning briefly (code.hybscloud.com/spin) and then
// backing off (code.hybscloud.com/iox.Backoff) until Close.
type Mailbox struct {
	q      lfq.Queue[Command]
	signal chan struct{}
	closed chan struct{}
	once   sync.Once
}

// New returns a ready Mailbox.
func New() *Mailbox {
	return &Mailbox{
		q:      lfq.NewMPMC[Command](capacity),
		signal: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Send enqueues cmd and wakes the owning thread if it is parked.
func (m *Mailbox) Send(cmd Command) error {
	if err := m.q.Enqueue(&cmd); err != nil {
		return err
	}
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// TryRecv returns the next command without blocking, or iox.ErrWouldBlock
// if the mailbox is currently empty.
func (m *Mailbox) TryRecv() (Command, error) {
	c, err := m.q.Dequeue()
	if err != nil {
		if lfq.IsWouldBlock(err) {
			return Command{}, iox.ErrWouldBlock
		}
		return Command{}, err
	}
	return *c, nil
}

// Recv blocks (spin, then cooperative backoff) until a command is
// available or Close is called, in which case it returns an empty Command
// and iox.ErrWouldBlock (Close sends no command of its own; callers
// should select on Closed() instead when they need prompt cancellation).
func (m *Mailbox) Recv() (Command, error) {
	const spinIters = 64
	backoff := iox.Backoff{}
	for {
		if c, err := m.TryRecv(); err == nil {
			backoff.Reset()
			return c, nil
		}
		for i := 0; i < spinIters; i++ {
			spin.Pause()
			if c, err := m.TryRecv(); err == nil {
				return c, nil
			}
		}
		select {
		case <-m.signal:
			continue
		case <-m.closed:
			return Command{}, iox.ErrWouldBlock
		default:
			backoff.Wait()
		}
	}
}

// Closed returns a channel closed once Close has been called, for
// cancellation-aware selects in the owning reactor loop.
func (m *Mailbox) Closed() <-chan struct{} { return m.closed }

// Close marks the mailbox closed and wakes any parked Recv.
func (m *Mailbox) Close() {
	m.once.Do(func() {
		close(m.closed)
	})
}

// SafeMailbox is the thread-safe variant used by thread-safe sockets: it
// coordinates through a condition variable so multiple user threads can
// block in Recv concurrently (spec.md §4.5 "mailbox_safe").
type SafeMailbox struct {
	mu   sync.Mutex
	cond *sync.Cond
	mb   *Mailbox
}

// NewSafe returns a ready SafeMailbox.
func NewSafe() *SafeMailbox {
	s := &SafeMailbox{mb: New()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Send enqueues cmd and wakes every blocked Recv caller.
func (s *SafeMailbox) Send(cmd Command) error {
	if err := s.mb.Send(cmd); err != nil {
		return err
	}
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	return nil
}

// Recv blocks on the condition variable until a command is available or
// Close is called.
func (s *SafeMailbox) Recv() (Command, error) {
	for {
		if c, err := s.mb.TryRecv(); err == nil {
			return c, nil
		}
		select {
		case <-s.mb.Closed():
			return Command{}, iox.ErrWouldBlock
		default:
		}
		s.mu.Lock()
		if c, err := s.mb.TryRecv(); err == nil {
			s.mu.Unlock()
			return c, nil
		}
		s.cond.Wait()
		s.mu.Unlock()
	}
}

// Close marks the underlying mailbox closed and wakes every blocked Recv.
func (s *SafeMailbox) Close() {
	s.mb.Close()
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}
