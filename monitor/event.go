// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package monitor implements the event stream and per-socket counters of
// spec.md §4.6 and §6: a structured record published for every
// connection/handshake lifecycle transition, plus Prometheus counters
// for message/byte throughput and HWM drops, following rclone's and
// aistore's own use of github.com/prometheus/client_golang.
package monitor

import (
	"github.com/google/uuid"
)

// Kind enumerates the monitor event types of spec.md §6.
type Kind uint32

const (
	KindConnectionReady Kind = 1 << iota
	KindConnected
	KindDisconnected
	KindHandshakeFailedNoDetail
	KindHandshakeFailedProtocol
	KindHandshakeFailedAuth
	KindAccepted
	KindListening
	KindCloseFailed
	KindMonitorStopped
)

// AllKinds is the OR of every event kind, usable as a subscription mask
// that receives everything.
const AllKinds = KindConnectionReady | KindConnected | KindDisconnected |
	KindHandshakeFailedNoDetail | KindHandshakeFailedProtocol | KindHandshakeFailedAuth |
	KindAccepted | KindListening | KindCloseFailed | KindMonitorStopped

func (k Kind) String() string {
	switch k {
	case KindConnectionReady:
		return "connection_ready"
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindHandshakeFailedNoDetail:
		return "handshake_failed_no_detail"
	case KindHandshakeFailedProtocol:
		return "handshake_failed_protocol"
	case KindHandshakeFailedAuth:
		return "handshake_failed_auth"
	case KindAccepted:
		return "accepted"
	case KindListening:
		return "listening"
	case KindCloseFailed:
		return "close_failed"
	case KindMonitorStopped:
		return "monitor_stopped"
	default:
		return "unknown"
	}
}

// Event is one structured record on the monitor stream (spec.md §6
// "Monitor event stream").
type Event struct {
	ID         uuid.UUID
	Kind       Kind
	Value      int // e.g. mapped errno/disconnect reason
	LocalAddr  string
	RemoteAddr string
	RoutingID  []byte
}

// NewEvent stamps an Event with a fresh correlation id.
func NewEvent(kind Kind, value int, local, remote string, routingID []byte) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		Value:      value,
		LocalAddr:  local,
		RemoteAddr: remote,
		RoutingID:  append([]byte(nil), routingID...),
	}
}

// DisconnectReason maps a transport error to the monitor's disconnect
// reason code (spec.md §7 "Transport errors").
type DisconnectReason int

const (
	DisconnectUnknown DisconnectReason = iota
	DisconnectReset
	DisconnectBrokenPipe
	DisconnectTimeout
	DisconnectClosedByPeer
)
