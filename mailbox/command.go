// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mailbox implements the lock-free command queue used to pass
// control messages between user threads, I/O threads, and the objects
// living on them (spec.md §4.5).
package mailbox

// Type tags a Command's payload, one per entry in spec.md §4.5.
type Type uint8

const (
	Stop Type = iota
	Plug
	Own
	Attach
	Bind
	ActivateRead
	ActivateWrite
	Hiccup
	PipeTerm
	PipeTermAck
	TermReq
	Term
	TermAck
	Reap
	Reaped
	InprocConnected
	Done
)

func (t Type) String() string {
	switch t {
	case Stop:
		return "stop"
	case Plug:
		return "plug"
	case Own:
		return "own"
	case Attach:
		return "attach"
	case Bind:
		return "bind"
	case ActivateRead:
		return "activate_read"
	case ActivateWrite:
		return "activate_write"
	case Hiccup:
		return "hiccup"
	case PipeTerm:
		return "pipe_term"
	case PipeTermAck:
		return "pipe_term_ack"
	case TermReq:
		return "term_req"
	case Term:
		return "term"
	case TermAck:
		return "term_ack"
	case Reap:
		return "reap"
	case Reaped:
		return "reaped"
	case InprocConnected:
		return "inproc_connected"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Command is a tagged variant carrying a pointer to its target object and
// a small untyped payload, per spec.md §4.5.
type Command struct {
	Type    Type
	Target  any
	Payload any
}
