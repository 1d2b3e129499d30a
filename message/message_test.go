// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package message

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewInlineVsHeap(t *testing.T) {
	small := New([]byte("hello"))
	if small.heap != nil {
		t.Fatalf("expected inline storage for small body")
	}
	if got := small.Data(); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("Data() = %q, want %q", got, "hello")
	}

	big := New([]byte(strings.Repeat("x", inlineCap+1)))
	if big.heap == nil {
		t.Fatalf("expected heap storage for body over inlineCap")
	}
	if big.Size() != inlineCap+1 {
		t.Fatalf("Size() = %d, want %d", big.Size(), inlineCap+1)
	}
}

func TestCloneSharesHeapNotInline(t *testing.T) {
	big := New([]byte(strings.Repeat("y", inlineCap+4)))
	clone := big.Clone()
	if clone.heap != big.heap {
		t.Fatalf("Clone of a heap-backed message should share the same buffer")
	}
	if clone.heap.refs != 2 {
		t.Fatalf("refs = %d, want 2 after Clone", clone.heap.refs)
	}

	small := New([]byte("abc"))
	smallClone := small.Clone()
	smallClone.inline[0] = 'z'
	if small.inline[0] == 'z' {
		t.Fatalf("inline Clone must copy, not alias, the descriptor's array")
	}
}

func TestReleaseDropsHeapOnce(t *testing.T) {
	m := New([]byte(strings.Repeat("z", inlineCap+1)))
	clone := m.Clone()
	b := m.heap

	m.Release()
	if b.refs != 1 {
		t.Fatalf("refs = %d after first Release, want 1", b.refs)
	}
	clone.Release()
	if b.refs != 0 {
		t.Fatalf("refs = %d after second Release, want 0", b.refs)
	}
}

func TestFlagsRoundTrip(t *testing.T) {
	m := NewEmpty()
	if m.More() || m.IsCommand() {
		t.Fatalf("new empty message should have no flags set")
	}
	m.SetMore(true)
	if !m.More() {
		t.Fatalf("SetMore(true) did not set MORE")
	}
	m.SetFlags(FlagCommand | FlagSubscribe)
	if m.More() {
		t.Fatalf("SetFlags should replace, not OR into, existing flags")
	}
	if !m.IsCommand() {
		t.Fatalf("expected IsCommand after SetFlags(FlagCommand|...)")
	}
}

func TestMetadata(t *testing.T) {
	m := NewEmpty()
	if m.Metadata() != nil {
		t.Fatalf("expected nil metadata on a fresh message")
	}
	md := map[string]string{"routing_id": "peer-1"}
	m.SetMetadata(md)
	if m.Metadata()["routing_id"] != "peer-1" {
		t.Fatalf("Metadata() did not round-trip")
	}
}
