// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSinkDeliversMatchingKind(t *testing.T) {
	s := NewSink(KindAccepted, prometheus.NewRegistry(), nil)
	s.Emit(NewEvent(KindAccepted, 0, "tcp://127.0.0.1:5555", "tcp://10.0.0.1:9", nil))
	s.Emit(NewEvent(KindDisconnected, int(DisconnectReset), "", "", nil))

	select {
	case ev := <-s.Events():
		if ev.Kind != KindAccepted {
			t.Fatalf("Kind = %v, want KindAccepted", ev.Kind)
		}
	default:
		t.Fatalf("expected a buffered KindAccepted event")
	}

	select {
	case ev := <-s.Events():
		t.Fatalf("KindDisconnected leaked past a KindAccepted-only mask: %+v", ev)
	default:
	}
}

func TestSinkCloseEmitsMonitorStopped(t *testing.T) {
	s := NewSink(AllKinds, prometheus.NewRegistry(), nil)
	s.Close()

	ev, ok := <-s.Events()
	if !ok || ev.Kind != KindMonitorStopped {
		t.Fatalf("Events() after Close = (%+v, %v), want a KindMonitorStopped event", ev, ok)
	}
	if _, ok := <-s.Events(); ok {
		t.Fatalf("Events() channel should be closed after draining the final event")
	}
}

func TestSinkEmitAfterCloseIsNoop(t *testing.T) {
	s := NewSink(AllKinds, prometheus.NewRegistry(), nil)
	s.Close()
	<-s.Events() // drain KindMonitorStopped

	s.Emit(NewEvent(KindAccepted, 0, "", "", nil))
	if _, ok := <-s.Events(); ok {
		t.Fatalf("Emit after Close should not deliver, channel should stay closed-empty")
	}
}

func TestNewEventCopiesRoutingID(t *testing.T) {
	id := []byte{0x00, 0x01, 0x02}
	ev := NewEvent(KindConnectionReady, 0, "a", "b", id)
	id[0] = 0xFF
	if ev.RoutingID[0] != 0x00 {
		t.Fatalf("NewEvent must copy routingID, not alias the caller's slice")
	}
}
