// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/zlinkio/zlink/message"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Flags: FlagMore | FlagSubscribe, BodyLength: 1234}
	var buf [HeaderLen]byte
	h.Encode(buf[:])

	got, err := Decode(buf[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != h {
		t.Fatalf("Decode(Encode(h)) = %+v, want %+v", got, h)
	}
}

func TestDecodeRejectsInvalidMagic(t *testing.T) {
	var buf [HeaderLen]byte
	Header{}.Encode(buf[:])
	buf[0] = 0xFF

	_, err := Decode(buf[:])
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeInvalidMagic {
		t.Fatalf("Decode with bad magic = %v, want ErrCodeInvalidMagic", err)
	}
}

func TestDecodeRejectsReservedBits(t *testing.T) {
	var buf [HeaderLen]byte
	Header{}.Encode(buf[:])
	buf[2] |= 0x80

	_, err := Decode(buf[:])
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeFlagsInvalid {
		t.Fatalf("Decode with reserved bit set = %v, want ErrCodeFlagsInvalid", err)
	}
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	msg := message.New([]byte("hello zlink"))
	msg.SetMore(true)
	if _, err := enc.Encode(msg); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	dec := NewDecoder(&buf, 0)
	got, err := dec.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte("hello zlink")) {
		t.Fatalf("Data() = %q, want %q", got.Data(), "hello zlink")
	}
	if !got.More() {
		t.Fatalf("expected MORE flag to survive the round trip")
	}
}

func TestDecoderResumesAcrossShortReads(t *testing.T) {
	var full bytes.Buffer
	enc := NewEncoder(&full)
	msg := message.New([]byte("partial delivery"))
	if _, err := enc.Encode(msg); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	raw := full.Bytes()
	r := &chunkedReader{data: raw, chunk: 3}
	dec := NewDecoder(r, 0)

	got, err := dec.Decode()
	if err != nil {
		t.Fatalf("Decode over a reader delivering 3 bytes at a time: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte("partial delivery")) {
		t.Fatalf("Data() = %q after resumed decode, want %q", got.Data(), "partial delivery")
	}
}

func TestDecoderBodyTooLarge(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if _, err := enc.Encode(message.New(bytes.Repeat([]byte{0x01}, 64))); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	dec := NewDecoder(&buf, 8)
	_, err := dec.Decode()
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeBodyTooLarge {
		t.Fatalf("Decode over max size = %v, want ErrCodeBodyTooLarge", err)
	}
}

func TestHelloEncodeDecodeWithMetadata(t *testing.T) {
	h := Hello{SocketType: 5, Metadata: map[string]string{"routing_id": "peer-9"}}
	encoded := EncodeHello(h)
	if ControlType(encoded[0]) != ControlHello {
		t.Fatalf("EncodeHello did not lead with ControlHello")
	}

	got, err := DecodeHello(encoded[1:])
	if err != nil {
		t.Fatalf("DecodeHello: %v", err)
	}
	if got.SocketType != 5 || got.Metadata["routing_id"] != "peer-9" {
		t.Fatalf("DecodeHello round trip = %+v", got)
	}
}

func TestHelloEncodeDecodeWithoutMetadata(t *testing.T) {
	h := Hello{SocketType: 2}
	encoded := EncodeHello(h)
	got, err := DecodeHello(encoded[1:])
	if err != nil {
		t.Fatalf("DecodeHello: %v", err)
	}
	if got.Metadata != nil {
		t.Fatalf("Metadata = %v, want nil when none was sent", got.Metadata)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	hb := Heartbeat{TTLDeciseconds: 300, ID: []byte("abc")}
	encoded := EncodeHeartbeat(hb)
	if ControlType(encoded[0]) != ControlHeartbeat {
		t.Fatalf("EncodeHeartbeat did not lead with ControlHeartbeat")
	}

	got, err := DecodeHeartbeat(encoded[1:])
	if err != nil {
		t.Fatalf("DecodeHeartbeat: %v", err)
	}
	if got.TTLDeciseconds != 300 || string(got.ID) != "abc" {
		t.Fatalf("DecodeHeartbeat round trip = %+v", got)
	}

	ack := EncodeHeartbeatAck(got.ID)
	if ControlType(ack[0]) != ControlHeartbeatAck {
		t.Fatalf("EncodeHeartbeatAck did not lead with ControlHeartbeatAck")
	}
	if string(DecodeHeartbeatAck(ack[1:])) != "abc" {
		t.Fatalf("DecodeHeartbeatAck did not echo the id")
	}
}

func TestErrorRoundTrip(t *testing.T) {
	encoded := EncodeError(ErrorBody{Code: ErrCodeSocketTypeMismatch, Reason: "incompatible"})
	got, err := DecodeError(encoded[1:])
	if err != nil {
		t.Fatalf("DecodeError: %v", err)
	}
	if got.Code != ErrCodeSocketTypeMismatch || got.Reason != "incompatible" {
		t.Fatalf("DecodeError round trip = %+v", got)
	}
}

// chunkedReader returns at most chunk bytes per Read call, exercising the
// decoder's offset-resumable state machine the way a real non-blocking
// socket would deliver a message across several partial reads.
type chunkedReader struct {
	data  []byte
	chunk int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}
