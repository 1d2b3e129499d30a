// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/zlinkio/zlink/message"
)

// Encoder frames messages onto an io.Writer. Like the teacher's
// writeStream, it is resumable: if the underlying writer only accepts
// part of the header or body, the next Encode call (passed the same
// message) continues from where it left off.
type Encoder struct {
	wr io.Writer

	header  [HeaderLen]byte
	hdrOff  int
	hdrDone bool
	bodyOff int
	cur     *message.Message
}

// NewEncoder returns an Encoder writing ZMP frames to wr.
func NewEncoder(wr io.Writer) *Encoder { return &Encoder{wr: wr} }

// Encode writes msg as one ZMP frame. On a partial write it returns the
// number of body bytes written so far in this call together with the
// writer's error; the caller must call Encode again with the SAME
// message to resume (mirrors the teacher's writeStream "same buffer"
// contract in internal.go).
func (e *Encoder) Encode(msg *message.Message) (int, error) {
	if e.cur != msg {
		e.cur = msg
		e.hdrOff = 0
		e.hdrDone = false
		e.bodyOff = 0
		h := Header{Flags: Flag(msg.Flags()), BodyLength: uint32(msg.Size())}
		h.Encode(e.header[:])
	}

	for !e.hdrDone {
		n, err := e.wr.Write(e.header[e.hdrOff:HeaderLen])
		e.hdrOff += n
		if e.hdrOff == HeaderLen {
			e.hdrDone = true
		}
		if err != nil {
			return 0, err
		}
	}

	body := msg.Data()
	written := 0
	for e.bodyOff < len(body) {
		n, err := e.wr.Write(body[e.bodyOff:])
		e.bodyOff += n
		written += n
		if err != nil {
			return written, err
		}
	}

	e.cur = nil
	return written, nil
}

// EncodeControl writes a raw control-frame body (already including its
// leading control-type byte, as produced by EncodeHello/EncodeReady/
// EncodeHeartbeat/EncodeHeartbeatAck/EncodeError) as one ZMP frame with
// the CONTROL flag set.
func (e *Encoder) EncodeControl(body []byte) (int, error) {
	m := message.New(body)
	m.SetFlags(message.FlagCommand)
	return e.Encode(m)
}
