// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import (
	"bytes"
	"testing"

	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
)

func TestStreamAttachQueuesConnectEvent(t *testing.T) {
	s := NewStream()
	a, _ := pipe.NewPair(0, 0)
	s.XAttachPipe(a)

	idFrame, err := s.XRecv()
	if err != nil {
		t.Fatalf("XRecv id frame: %v", err)
	}
	if !idFrame.More() {
		t.Fatalf("connect event's id frame must carry MORE")
	}
	if !IsAutoRoutingID(idFrame.Data()) {
		t.Fatalf("expected an auto-generated routing id, got % x", idFrame.Data())
	}

	kind, err := s.XRecv()
	if err != nil {
		t.Fatalf("XRecv event body: %v", err)
	}
	if !bytes.Equal(kind.Data(), []byte{0x01}) {
		t.Fatalf("connect event body = % x, want 0x01", kind.Data())
	}
}

func TestStreamDeliversIDThenPayload(t *testing.T) {
	s := NewStream()
	a, peer := pipe.NewPair(0, 0)
	s.XAttachPipe(a)

	// Drain the connect event before exercising data delivery.
	if _, err := s.XRecv(); err != nil {
		t.Fatalf("drain id frame: %v", err)
	}
	if _, err := s.XRecv(); err != nil {
		t.Fatalf("drain event body: %v", err)
	}

	if !peer.Write(message.New([]byte("payload"))) {
		t.Fatalf("peer.Write failed")
	}
	if err := peer.Flush(); err != nil {
		t.Fatalf("peer.Flush: %v", err)
	}

	idFrame, err := s.XRecv()
	if err != nil {
		t.Fatalf("XRecv id frame: %v", err)
	}
	if !idFrame.More() {
		t.Fatalf("data id frame must carry MORE")
	}
	if !bytes.Equal(idFrame.Data(), a.RoutingID()) {
		t.Fatalf("id frame = % x, want peer's routing id % x", idFrame.Data(), a.RoutingID())
	}

	body, err := s.XRecv()
	if err != nil {
		t.Fatalf("XRecv body: %v", err)
	}
	if !bytes.Equal(body.Data(), []byte("payload")) {
		t.Fatalf("body = %q, want payload", body.Data())
	}
}

func TestStreamXSendRoutesByID(t *testing.T) {
	s := NewStream()
	a, peer := pipe.NewPair(0, 0)
	s.XAttachPipe(a)

	id := a.RoutingID()
	idMsg := message.New(id)
	idMsg.SetMore(true)
	if err := s.XSend(idMsg); err != nil {
		t.Fatalf("XSend id frame: %v", err)
	}
	if err := s.XSend(message.New([]byte("reply"))); err != nil {
		t.Fatalf("XSend body: %v", err)
	}

	got, err := peer.Read()
	if err != nil {
		t.Fatalf("peer.Read: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte("reply")) {
		t.Fatalf("peer got %q, want reply", got.Data())
	}
}

func TestStreamXSendToUnknownIDIsSilentlyDropped(t *testing.T) {
	s := NewStream()
	idMsg := message.New([]byte("no-such-peer"))
	idMsg.SetMore(true)
	if err := s.XSend(idMsg); err != nil {
		t.Fatalf("XSend id frame: %v", err)
	}
	if err := s.XSend(message.New([]byte("lost"))); err != nil {
		t.Fatalf("XSend body for an unknown id must not error: %v", err)
	}
}

func TestStreamDetachQueuesDisconnectEvent(t *testing.T) {
	s := NewStream()
	a, _ := pipe.NewPair(0, 0)
	s.XAttachPipe(a)
	// Drain the connect event.
	_, _ = s.XRecv()
	_, _ = s.XRecv()

	s.XPipeTerminated(a)

	idFrame, err := s.XRecv()
	if err != nil {
		t.Fatalf("XRecv id frame: %v", err)
	}
	kind, err := s.XRecv()
	if err != nil {
		t.Fatalf("XRecv event body: %v", err)
	}
	if !bytes.Equal(kind.Data(), []byte{0x00}) {
		t.Fatalf("disconnect event body = % x, want 0x00", kind.Data())
	}
	if !bytes.Equal(idFrame.Data(), a.RoutingID()) {
		t.Fatalf("disconnect id frame = % x, want % x", idFrame.Data(), a.RoutingID())
	}
	if s.XHasOut() {
		t.Fatalf("XHasOut after the only peer detached should be false")
	}
}
