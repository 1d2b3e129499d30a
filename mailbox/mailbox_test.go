// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mailbox

import (
	"testing"
	"time"

	"code.hybscloud.com/iox"
)

func TestSendTryRecv(t *testing.T) {
	m := New()
	if err := m.Send(Command{Type: Bind, Payload: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	cmd, err := m.TryRecv()
	if err != nil {
		t.Fatalf("TryRecv: %v", err)
	}
	if cmd.Type != Bind || cmd.Payload != "x" {
		t.Fatalf("TryRecv = %+v, want Bind/x", cmd)
	}
}

func TestTryRecvEmptyWouldBlock(t *testing.T) {
	m := New()
	if _, err := m.TryRecv(); err != iox.ErrWouldBlock {
		t.Fatalf("TryRecv on empty mailbox = %v, want ErrWouldBlock", err)
	}
}

func TestRecvWakesOnSend(t *testing.T) {
	m := New()
	done := make(chan Command, 1)
	go func() {
		cmd, err := m.Recv()
		if err != nil {
			return
		}
		done <- cmd
	}()

	time.Sleep(5 * time.Millisecond)
	if err := m.Send(Command{Type: Stop}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case cmd := <-done:
		if cmd.Type != Stop {
			t.Fatalf("cmd.Type = %v, want Stop", cmd.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv did not wake up after Send")
	}
}

func TestRecvUnblocksOnClose(t *testing.T) {
	m := New()
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Recv()
		errCh <- err
	}()

	time.Sleep(5 * time.Millisecond)
	m.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("Recv after Close should return an error")
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv did not unblock after Close")
	}
}

func TestSafeMailboxBroadcastsToAllWaiters(t *testing.T) {
	s := NewSafe()
	const waiters = 4
	got := make(chan Command, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			cmd, err := s.Recv()
			if err == nil {
				got <- cmd
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	for i := 0; i < waiters; i++ {
		if err := s.Send(Command{Type: ActivateRead}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	for i := 0; i < waiters; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatalf("only %d/%d waiters were served", i, waiters)
		}
	}
}
