// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/zlinkio/zlink/internal/bo"
)

// registry is the process-wide inproc:// namespace (spec.md §6
// "inproc connects are resolved against in-process binds only").
var registry = struct {
	mu    sync.Mutex
	binds map[string]*inprocBinding
	seq   uint64
}{binds: make(map[string]*inprocBinding)}

type inprocBinding struct {
	ch chan inprocHandoff
}

// inprocHandoff carries the accepted net.Pipe end together with the
// dialer's connection-sequence token, so both sides of the pair can
// report a matching, human-readable logical address instead of
// net.Pipe's opaque "pipe" addresses.
type inprocHandoff struct {
	conn  net.Conn
	token [8]byte
}

var ErrNoSuchInprocBind = errors.New("transport: no inproc bind for this name")
var ErrInprocNameInUse = errors.New("transport: inproc name already bound")

// localToken stamps a connection-sequence counter in native byte order;
// inproc connections never leave the process so wire-endianness is
// irrelevant, matching the teacher's internal/bo rationale for
// local-only fast paths.
func localToken(seq uint64) [8]byte {
	var b [8]byte
	bo.Native().PutUint64(b[:], seq)
	return b
}

// InprocListener accepts inproc:// connects targeting a bound name.
type InprocListener struct {
	name string
	b    *inprocBinding
}

// ListenInproc registers name in the process-wide inproc namespace.
func ListenInproc(name string) (*InprocListener, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.binds[name]; exists {
		return nil, ErrInprocNameInUse
	}
	b := &inprocBinding{ch: make(chan inprocHandoff)}
	registry.binds[name] = b
	return &InprocListener{name: name, b: b}, nil
}

func (l *InprocListener) Accept() (Conn, error) {
	h, ok := <-l.b.ch
	if !ok {
		return nil, fmt.Errorf("transport: inproc listener %q closed", l.name)
	}
	addr := fmt.Sprintf("inproc://%s#%x", l.name, h.token)
	return &netConn{c: h.conn, b: Stream, localAddr: addr}, nil
}

func (l *InprocListener) Addr() string { return "inproc://" + l.name }

func (l *InprocListener) Close() error {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if cur, ok := registry.binds[l.name]; ok && cur == l.b {
		delete(registry.binds, l.name)
		close(l.b.ch)
	}
	return nil
}

// InprocConnecter dials a bound inproc:// name.
type InprocConnecter struct{ name string }

// DialInproc prepares a connecter for a bound inproc name. Per spec.md
// §6 "inproc connects fail immediately if no matching bind exists" (no
// connect-before-bind queuing, unlike tcp/ipc).
func DialInproc(name string) *InprocConnecter { return &InprocConnecter{name: name} }

func (d *InprocConnecter) Dial(ctx context.Context) (Conn, error) {
	registry.mu.Lock()
	b, ok := registry.binds[d.name]
	var seq uint64
	if ok {
		registry.seq++
		seq = registry.seq
	}
	registry.mu.Unlock()
	if !ok {
		return nil, ErrNoSuchInprocBind
	}

	token := localToken(seq)
	local, remote := net.Pipe()
	select {
	case b.ch <- inprocHandoff{conn: remote, token: token}:
		addr := fmt.Sprintf("inproc://%s#%x", d.name, token)
		return &netConn{c: local, b: Stream, remoteAddr: addr}, nil
	case <-ctx.Done():
		_ = local.Close()
		_ = remote.Close()
		return nil, ctx.Err()
	}
}
