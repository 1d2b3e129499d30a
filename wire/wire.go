// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the ZMP framing protocol: an 8-byte header
// (magic, version, flags, reserved, big-endian body length) followed by
// an opaque body, plus the control-message layouts exchanged during
// handshake and heartbeating.
//
// The codec's state-machine shape — offset-resumable header-then-body
// parsing, a scratch buffer reused across messages, non-blocking
// control-flow signaled via iox.ErrWouldBlock/iox.ErrMore — follows
// code.hybscloud.com/framer's internal framer type, regrounded on ZMP's
// fixed 8-byte header instead of a variable-length prefix.
package wire

import (
	"encoding/binary"
	"errors"

	"code.hybscloud.com/iox"
)

const (
	// HeaderLen is the fixed ZMP header size in bytes.
	HeaderLen = 8

	magicByte   byte = 0x5A
	versionByte byte = 0x02

	reservedFlagsMask = 0xE0 // bits 5-7
)

// Flag bitmap, byte 2 of the header.
type Flag uint8

const (
	FlagMore      Flag = 1 << 0
	FlagControl   Flag = 1 << 1
	FlagIdentity  Flag = 1 << 2
	FlagSubscribe Flag = 1 << 3
	FlagCancel    Flag = 1 << 4
)

// ControlType identifies the control body's first byte.
type ControlType uint8

const (
	ControlHello        ControlType = 0x01
	ControlHeartbeat    ControlType = 0x02
	ControlHeartbeatAck ControlType = 0x03
	ControlReady        ControlType = 0x04
	ControlError        ControlType = 0x05
)

// ErrorCode enumerates ZMP-level protocol error codes (ERROR control body
// byte 0).
type ErrorCode uint8

const (
	ErrCodeInvalidMagic        ErrorCode = 0x01
	ErrCodeVersionMismatch     ErrorCode = 0x02
	ErrCodeFlagsInvalid        ErrorCode = 0x03
	ErrCodeBodyTooLarge        ErrorCode = 0x04
	ErrCodeSocketTypeMismatch  ErrorCode = 0x05
	ErrCodeHandshakeTimeout    ErrorCode = 0x06
	ErrCodeInternal            ErrorCode = 0x7F
)

var (
	// ErrWouldBlock and ErrMore are re-exported so callers need not import
	// iox directly, mirroring code.hybscloud.com/framer's own package-level
	// aliases.
	ErrWouldBlock = iox.ErrWouldBlock
	ErrMore       = iox.ErrMore

	// ErrProtocol is the sentinel every *ProtocolError unwraps to, so
	// errors.Is(err, ErrProtocol) matches any protocol-level validation
	// failure; errors.As recovers the ErrorCode-carrying *ProtocolError.
	ErrProtocol = errors.New("wire: protocol error")
)

// ProtocolError carries the ZMP error code that a validation failure maps
// to, so the session state machine can emit the matching ERROR control
// frame (spec.md §4.2, §7).
type ProtocolError struct {
	Code   ErrorCode
	Reason string
}

func (e *ProtocolError) Error() string { return "wire: " + e.Reason }
func (e *ProtocolError) Unwrap() error { return ErrProtocol }

func protoErr(code ErrorCode, reason string) error {
	return &ProtocolError{Code: code, Reason: reason}
}

// Header is the decoded/encoded form of the fixed 8-byte ZMP header.
type Header struct {
	Flags      Flag
	BodyLength uint32
}

// Encode writes h into buf[:HeaderLen]. buf must be at least HeaderLen
// bytes.
func (h Header) Encode(buf []byte) {
	buf[0] = magicByte
	buf[1] = versionByte
	buf[2] = byte(h.Flags)
	buf[3] = 0
	binary.BigEndian.PutUint32(buf[4:8], h.BodyLength)
}

// Decode parses buf[:HeaderLen] into h, validating magic/version/reserved
// bits per spec.md §4.2. On failure it returns a *ProtocolError whose Code
// identifies which ZMP ERROR to emit.
func Decode(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderLen {
		return h, protoErr(ErrCodeInternal, "short header buffer")
	}
	if buf[0] != magicByte {
		return h, protoErr(ErrCodeInvalidMagic, "invalid magic byte")
	}
	if buf[1] != versionByte {
		return h, protoErr(ErrCodeVersionMismatch, "unsupported version")
	}
	flags := Flag(buf[2])
	if buf[2]&reservedFlagsMask != 0 {
		return h, protoErr(ErrCodeFlagsInvalid, "reserved flag bits set")
	}
	if buf[3] != 0 {
		return h, protoErr(ErrCodeFlagsInvalid, "reserved byte non-zero")
	}
	h.Flags = flags
	h.BodyLength = binary.BigEndian.Uint32(buf[4:8])
	return h, nil
}
