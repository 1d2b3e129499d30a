// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package message defines the wire-level unit exchanged between sockets:
// an opaque byte body plus ZMP flags and an optional metadata map.
//
// Small bodies are stored inline inside the Message descriptor to avoid a
// heap allocation on the hot path; larger bodies are held in a refcounted
// buffer that is shared, not copied, between the producer and the I/O
// thread that eventually frames it onto the wire.
package message

import "sync/atomic"

// inlineCap is the largest body length stored inline in the descriptor
// rather than in a refcounted heap buffer. Matches spec.md §5's "up to
// ~32 bytes" inline threshold.
const inlineCap = 32

// Flag bits, mirroring the ZMP header flags byte (wire/wire.go) one for
// one so a Message's Flags() can be written straight into a frame.
type Flag uint8

const (
	FlagMore      Flag = 1 << 0
	FlagCommand   Flag = 1 << 1
	FlagIdentity  Flag = 1 << 2
	FlagSubscribe Flag = 1 << 3
	FlagCancel    Flag = 1 << 4
)

// body is the refcounted heap buffer used once a message body exceeds
// inlineCap. Shared between producer and consumer; freed once the last
// holder releases it.
type body struct {
	buf  []byte
	refs int32
}

func newBody(b []byte) *body {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &body{buf: cp, refs: 1}
}

func (b *body) retain() *body {
	atomic.AddInt32(&b.refs, 1)
	return b
}

func (b *body) release() {
	if atomic.AddInt32(&b.refs, -1) == 0 {
		b.buf = nil
	}
}

// Message is the in-memory representation of one ZMP frame's payload.
type Message struct {
	flags Flag

	inline    [inlineCap]byte
	inlineLen int
	heap      *body

	meta map[string]string
}

// New constructs a Message copying b into inline or refcounted storage
// depending on its size.
func New(b []byte) *Message {
	m := &Message{}
	m.setBody(b)
	return m
}

// NewEmpty returns a zero-length Message, typically used as a control or
// probe frame.
func NewEmpty() *Message { return &Message{} }

func (m *Message) setBody(b []byte) {
	if len(b) <= inlineCap {
		m.inlineLen = copy(m.inline[:], b)
		m.heap = nil
		return
	}
	m.inlineLen = 0
	m.heap = newBody(b)
}

// Size returns the body length in bytes.
func (m *Message) Size() int {
	if m.heap != nil {
		return len(m.heap.buf)
	}
	return m.inlineLen
}

// Data returns the body bytes. The returned slice is only valid for as
// long as the Message (or a Clone sharing its heap buffer) is alive; the
// caller must copy if it needs to retain bytes beyond that.
func (m *Message) Data() []byte {
	if m.heap != nil {
		return m.heap.buf
	}
	return m.inline[:m.inlineLen]
}

// Clone returns a new Message sharing the same underlying storage. Heap
// bodies are retained (refcount incremented, no copy); inline bodies are
// copied since they live inside the descriptor itself.
func (m *Message) Clone() *Message {
	c := &Message{flags: m.flags}
	if m.heap != nil {
		c.heap = m.heap.retain()
	} else {
		c.inlineLen = copy(c.inline[:], m.inline[:m.inlineLen])
	}
	if m.meta != nil {
		c.meta = make(map[string]string, len(m.meta))
		for k, v := range m.meta {
			c.meta[k] = v
		}
	}
	return c
}

// Release drops this Message's reference to its heap buffer, if any.
// Safe to call on inline messages (no-op).
func (m *Message) Release() {
	if m.heap != nil {
		m.heap.release()
		m.heap = nil
	}
}

// Flags returns the current flag bits.
func (m *Message) Flags() Flag { return m.flags }

// SetFlags replaces the flag bits.
func (m *Message) SetFlags(f Flag) { m.flags = f }

// More reports whether another part follows this one in the same
// multipart message.
func (m *Message) More() bool { return m.flags&FlagMore != 0 }

// SetMore sets or clears the MORE flag.
func (m *Message) SetMore(v bool) { m.setFlag(FlagMore, v) }

// IsCommand reports whether this is a control frame, not user data.
func (m *Message) IsCommand() bool { return m.flags&FlagCommand != 0 }

func (m *Message) setFlag(f Flag, v bool) {
	if v {
		m.flags |= f
	} else {
		m.flags &^= f
	}
}

// Metadata returns the key/value pairs delivered with this message at
// handshake time (HELLO TLVs), or nil if none were exchanged.
func (m *Message) Metadata() map[string]string { return m.meta }

// SetMetadata attaches a metadata map to the message, replacing any
// previous one.
func (m *Message) SetMetadata(md map[string]string) { m.meta = md }
