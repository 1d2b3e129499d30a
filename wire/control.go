// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
)

// Hello is the HELLO control message body (spec.md §4.2).
type Hello struct {
	SocketType uint8
	Options    uint8 // bit0: metadata TLVs follow
	Metadata   map[string]string
}

const helloMetadataFlag = 1 << 0

// EncodeHello serializes a Hello control body (control type byte included).
func EncodeHello(h Hello) []byte {
	out := []byte{byte(ControlHello), h.SocketType, h.Options}
	if len(h.Metadata) == 0 {
		return out
	}
	out[2] |= helloMetadataFlag
	for k, v := range h.Metadata {
		if len(k) > 255 || len(v) > 0xFFFFFFFF {
			continue
		}
		out = append(out, byte(len(k)))
		out = append(out, k...)
		var vl [4]byte
		binary.BigEndian.PutUint32(vl[:], uint32(len(v)))
		out = append(out, vl[:]...)
		out = append(out, v...)
	}
	return out
}

// DecodeHello parses a HELLO control body (excluding the leading control
// type byte, already consumed by the caller).
func DecodeHello(body []byte) (Hello, error) {
	var h Hello
	if len(body) < 2 {
		return h, protoErr(ErrCodeInternal, "short HELLO body")
	}
	h.SocketType = body[0]
	h.Options = body[1]
	off := 2
	if h.Options&helloMetadataFlag == 0 {
		return h, nil
	}
	h.Metadata = map[string]string{}
	for off < len(body) {
		if off+1 > len(body) {
			return h, protoErr(ErrCodeInternal, "truncated HELLO metadata key length")
		}
		kl := int(body[off])
		off++
		if off+kl > len(body) {
			return h, protoErr(ErrCodeInternal, "truncated HELLO metadata key")
		}
		key := string(body[off : off+kl])
		off += kl
		if off+4 > len(body) {
			return h, protoErr(ErrCodeInternal, "truncated HELLO metadata value length")
		}
		vl := int(binary.BigEndian.Uint32(body[off : off+4]))
		off += 4
		if off+vl > len(body) {
			return h, protoErr(ErrCodeInternal, "truncated HELLO metadata value")
		}
		h.Metadata[key] = string(body[off : off+vl])
		off += vl
	}
	return h, nil
}

// EncodeReady serializes a READY control body; READY carries no fields
// beyond the control type.
func EncodeReady() []byte { return []byte{byte(ControlReady)} }

// Heartbeat is the HEARTBEAT control message body.
type Heartbeat struct {
	TTLDeciseconds uint16
	ID             []byte // 1..255 bytes
}

// EncodeHeartbeat serializes a HEARTBEAT control body.
func EncodeHeartbeat(hb Heartbeat) []byte {
	out := make([]byte, 0, 1+2+1+len(hb.ID))
	out = append(out, byte(ControlHeartbeat))
	var ttl [2]byte
	binary.BigEndian.PutUint16(ttl[:], hb.TTLDeciseconds)
	out = append(out, ttl[:]...)
	out = append(out, byte(len(hb.ID)))
	out = append(out, hb.ID...)
	return out
}

// DecodeHeartbeat parses a HEARTBEAT control body (control type already
// consumed).
func DecodeHeartbeat(body []byte) (Heartbeat, error) {
	var hb Heartbeat
	if len(body) < 3 {
		return hb, protoErr(ErrCodeInternal, "short HEARTBEAT body")
	}
	hb.TTLDeciseconds = binary.BigEndian.Uint16(body[0:2])
	idLen := int(body[2])
	if 3+idLen > len(body) {
		return hb, protoErr(ErrCodeInternal, "truncated HEARTBEAT id")
	}
	hb.ID = append([]byte(nil), body[3:3+idLen]...)
	return hb, nil
}

// EncodeHeartbeatAck serializes a HEARTBEAT_ACK control body echoing id.
func EncodeHeartbeatAck(id []byte) []byte {
	out := make([]byte, 0, 1+len(id))
	out = append(out, byte(ControlHeartbeatAck))
	out = append(out, id...)
	return out
}

// DecodeHeartbeatAck parses a HEARTBEAT_ACK control body (control type
// already consumed); the entire remainder is the echoed id.
func DecodeHeartbeatAck(body []byte) []byte {
	return append([]byte(nil), body...)
}

// ErrorBody is the ERROR control message body.
type ErrorBody struct {
	Code   ErrorCode
	Reason string
}

// EncodeError serializes an ERROR control body.
func EncodeError(e ErrorBody) []byte {
	reason := e.Reason
	if len(reason) > 255 {
		reason = reason[:255]
	}
	out := make([]byte, 0, 1+1+1+len(reason))
	out = append(out, byte(ControlError), byte(e.Code), byte(len(reason)))
	out = append(out, reason...)
	return out
}

// DecodeError parses an ERROR control body (control type already
// consumed).
func DecodeError(body []byte) (ErrorBody, error) {
	var e ErrorBody
	if len(body) < 2 {
		return e, protoErr(ErrCodeInternal, "short ERROR body")
	}
	e.Code = ErrorCode(body[0])
	rl := int(body[1])
	if 2+rl > len(body) {
		return e, protoErr(ErrCodeInternal, "truncated ERROR reason")
	}
	e.Reason = string(body[2 : 2+rl])
	return e, nil
}

// String implements fmt.Stringer for readable log fields.
func (c ControlType) String() string {
	switch c {
	case ControlHello:
		return "HELLO"
	case ControlHeartbeat:
		return "HEARTBEAT"
	case ControlHeartbeatAck:
		return "HEARTBEAT_ACK"
	case ControlReady:
		return "READY"
	case ControlError:
		return "ERROR"
	default:
		return fmt.Sprintf("ControlType(0x%02x)", uint8(c))
	}
}
