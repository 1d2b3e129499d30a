// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/zlinkio/zlink/message"
)

// Decoder consumes a streaming byte source and emits whole messages,
// resuming across partial reads exactly like the teacher's readStream:
// an offset into (header, body) survives across calls so a short read
// (or iox.ErrWouldBlock) never loses or duplicates bytes.
//
// State machine: read_header -> validate -> read_body -> deliver, per
// spec.md §4.2.
type Decoder struct {
	rd io.Reader

	maxMsgSize int64 // 0 = unlimited

	header   [HeaderLen]byte
	hdrOff   int
	body     []byte // allocated once Header.BodyLength is known
	bodyOff  int
	curFlags Flag

	// delivered is set once a full message has been parsed and is waiting
	// to be picked up by Decode; it is cleared on the next call.
	delivered bool
}

// NewDecoder returns a Decoder reading ZMP frames from rd. maxMsgSize
// caps the accepted body length (0 means unlimited), enforced as
// ErrCodeBodyTooLarge per spec.md §4.2.
func NewDecoder(rd io.Reader, maxMsgSize int64) *Decoder {
	return &Decoder{rd: rd, maxMsgSize: maxMsgSize}
}

func (d *Decoder) reset() {
	d.hdrOff = 0
	d.bodyOff = 0
	d.body = nil
	d.delivered = false
}

// Decode returns the next whole message. It returns (nil, iox.ErrWouldBlock)
// or (nil, iox.ErrMore) when the underlying reader could not make
// progress right now; the caller must call Decode again later on the
// same Decoder to resume.
//
// On a protocol violation it returns a *ProtocolError; the caller (the
// session state machine) is responsible for emitting the matching ERROR
// control frame and closing the connection (spec.md §4.2, §7).
func (d *Decoder) Decode() (*message.Message, error) {
	for d.hdrOff < HeaderLen {
		n, err := readOnce(d.rd, d.header[d.hdrOff:HeaderLen])
		d.hdrOff += n
		if err != nil {
			if err == io.EOF && d.hdrOff == 0 {
				return nil, io.EOF
			}
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}

	if d.body == nil {
		hdr, err := Decode(d.header[:])
		if err != nil {
			return nil, err
		}
		if d.maxMsgSize > 0 && int64(hdr.BodyLength) > d.maxMsgSize {
			return nil, protoErr(ErrCodeBodyTooLarge, "body exceeds configured max message size")
		}
		d.curFlags = hdr.Flags
		d.body = make([]byte, hdr.BodyLength)
	}

	for d.bodyOff < len(d.body) {
		n, err := readOnce(d.rd, d.body[d.bodyOff:])
		d.bodyOff += n
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}

	msg := message.New(d.body)
	msg.SetFlags(message.Flag(d.curFlags))
	d.reset()
	return msg, nil
}

func readOnce(r io.Reader, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := r.Read(p)
	if n == 0 && err == nil {
		return 0, io.ErrNoProgress
	}
	return n, err
}
