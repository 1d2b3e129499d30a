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

func TestPairEchoRoundTrip(t *testing.T) {
	left := NewPair()
	right := NewPair()
	a, b := pipe.NewPair(0, 0)
	left.XAttachPipe(a)
	right.XAttachPipe(b)

	if err := left.XSend(message.New([]byte("ping"))); err != nil {
		t.Fatalf("XSend: %v", err)
	}
	got, err := right.XRecv()
	if err != nil {
		t.Fatalf("XRecv: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte("ping")) {
		t.Fatalf("Data() = %q, want %q", got.Data(), "ping")
	}
}

func TestPairRejectsSecondPipe(t *testing.T) {
	s := NewPair()
	a, _ := pipe.NewPair(0, 0)
	c, _ := pipe.NewPair(0, 0)
	s.XAttachPipe(a)
	s.XAttachPipe(c)

	if c.Write(message.New([]byte("x"))) {
		t.Fatalf("a pipe rejected by PAIR's second xattach_pipe should already be inactive")
	}
}

func TestPubSubPrefixFilter(t *testing.T) {
	pub := NewPub()
	subA := NewSub()
	subB := NewSub()

	pa, sa := pipe.NewPair(0, 0)
	pb, sb := pipe.NewPair(0, 0)
	pub.XAttachPipe(pa)
	pub.XAttachPipe(pb)
	subA.XAttachPipe(sa)
	subB.XAttachPipe(sb)

	subA.Subscribe([]byte("weather"))
	subB.Subscribe([]byte("sports"))

	if err := pub.XSend(message.New([]byte("weather.rain"))); err != nil {
		t.Fatalf("XSend: %v", err)
	}

	got, err := subA.XRecv()
	if err != nil {
		t.Fatalf("subA.XRecv: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte("weather.rain")) {
		t.Fatalf("subA got %q, want weather.rain", got.Data())
	}
	if _, err := subB.XRecv(); err != ErrWouldBlock {
		t.Fatalf("subB.XRecv = %v, want ErrWouldBlock (no matching subscription)", err)
	}
}

func TestPubSubUnsubscribeStopsDelivery(t *testing.T) {
	pub := NewPub()
	sub := NewSub()
	pp, sp := pipe.NewPair(0, 0)
	pub.XAttachPipe(pp)
	sub.XAttachPipe(sp)

	sub.Subscribe([]byte("a"))
	if err := pub.XSend(message.New([]byte("a1"))); err != nil {
		t.Fatalf("XSend: %v", err)
	}
	if _, err := sub.XRecv(); err != nil {
		t.Fatalf("expected delivery before Unsubscribe: %v", err)
	}

	sub.Unsubscribe([]byte("a"))
	if err := pub.XSend(message.New([]byte("a2"))); err != nil {
		t.Fatalf("XSend: %v", err)
	}
	if _, err := sub.XRecv(); err != ErrWouldBlock {
		t.Fatalf("XRecv after Unsubscribe = %v, want ErrWouldBlock", err)
	}
}

// TestPubInvertMatching mirrors
// original_source/core/tests/test_pub_invert_matching.cpp: with
// invert_matching enabled on both ends, a message matching sub1's
// subscription is delivered to sub2 instead, and vice versa.
func TestPubInvertMatching(t *testing.T) {
	pub := NewPub(WithInvertMatching())
	sub1 := NewSub(WithInvertMatching())
	sub2 := NewSub(WithInvertMatching())

	p1, s1 := pipe.NewPair(0, 0)
	p2, s2 := pipe.NewPair(0, 0)
	pub.XAttachPipe(p1)
	pub.XAttachPipe(p2)
	sub1.XAttachPipe(s1)
	sub2.XAttachPipe(s2)

	sub1.Subscribe([]byte("prefix1"))
	sub2.Subscribe([]byte("p2"))

	if err := pub.XSend(message.New([]byte("prefix1"))); err != nil {
		t.Fatalf("XSend: %v", err)
	}
	got, err := sub2.XRecv()
	if err != nil {
		t.Fatalf("sub2.XRecv: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte("prefix1")) {
		t.Fatalf("sub2 got %q, want prefix1", got.Data())
	}
	if _, err := sub1.XRecv(); err != ErrWouldBlock {
		t.Fatalf("sub1.XRecv = %v, want ErrWouldBlock (matched prefix is excluded under inversion)", err)
	}

	if err := pub.XSend(message.New([]byte("p2"))); err != nil {
		t.Fatalf("XSend: %v", err)
	}
	got, err = sub1.XRecv()
	if err != nil {
		t.Fatalf("sub1.XRecv: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte("p2")) {
		t.Fatalf("sub1 got %q, want p2", got.Data())
	}
	if _, err := sub2.XRecv(); err != ErrWouldBlock {
		t.Fatalf("sub2.XRecv = %v, want ErrWouldBlock (matched prefix is excluded under inversion)", err)
	}
}

func TestDealerRouterRoundTripWithAutoID(t *testing.T) {
	dealer := NewDealer()
	router := NewRouter()
	dp, rp := pipe.NewPair(0, 0)
	dealer.XAttachPipe(dp)
	router.XAttachPipe(rp)

	if err := dealer.XSend(message.New([]byte("hello"))); err != nil {
		t.Fatalf("dealer.XSend: %v", err)
	}

	idFrame, err := router.XRecv()
	if err != nil {
		t.Fatalf("router.XRecv id frame: %v", err)
	}
	if !idFrame.More() {
		t.Fatalf("routing-id frame must carry MORE")
	}
	if !IsAutoRoutingID(idFrame.Data()) {
		t.Fatalf("expected an auto-generated routing id, got % x", idFrame.Data())
	}

	body, err := router.XRecv()
	if err != nil {
		t.Fatalf("router.XRecv body: %v", err)
	}
	if !bytes.Equal(body.Data(), []byte("hello")) {
		t.Fatalf("body = %q, want hello", body.Data())
	}

	reply := message.New(idFrame.Data())
	reply.SetMore(true)
	if err := router.XSend(reply); err != nil {
		t.Fatalf("router.XSend routing id: %v", err)
	}
	if err := router.XSend(message.New([]byte("world"))); err != nil {
		t.Fatalf("router.XSend body: %v", err)
	}

	got, err := dealer.XRecv()
	if err != nil {
		t.Fatalf("dealer.XRecv: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte("world")) {
		t.Fatalf("dealer got %q, want world", got.Data())
	}
}

func TestDealerHWMBlocksAfterLimitWithoutDropping(t *testing.T) {
	dealer := NewDealer(WithSndHWM(10))
	router := NewRouter()
	dp, rp := pipe.NewPair(10, 0)
	dealer.XAttachPipe(dp)
	router.XAttachPipe(rp)

	// The router never reads: its pipe fills and the dealer must observe
	// would_block on the 11th send, not drop silently.
	for i := 0; i < 10; i++ {
		if err := dealer.XSend(message.New([]byte{byte(i)})); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := dealer.XSend(message.New([]byte("overflow"))); err != ErrWouldBlock {
		t.Fatalf("11th send = %v, want ErrWouldBlock", err)
	}
}

func TestRouterFairDispatchAcrossManyDealers(t *testing.T) {
	router := NewRouter()
	dealers := make([]*Dealer, 4)
	for i := range dealers {
		d := NewDealer()
		dp, rp := pipe.NewPair(0, 0)
		d.XAttachPipe(dp)
		router.XAttachPipe(rp)
		dealers[i] = d
	}

	// Every dealer sends one message; the router must read exactly one
	// [id][body] pair from each, none starved, none duplicated.
	for i, d := range dealers {
		if err := d.XSend(message.New([]byte{byte(i)})); err != nil {
			t.Fatalf("dealer[%d].XSend: %v", i, err)
		}
	}

	seen := make(map[byte]int)
	for range dealers {
		idFrame, err := router.XRecv()
		if err != nil {
			t.Fatalf("router.XRecv id frame: %v", err)
		}
		body, err := router.XRecv()
		if err != nil {
			t.Fatalf("router.XRecv body: %v", err)
		}
		if !IsAutoRoutingID(idFrame.Data()) {
			t.Fatalf("expected an auto-generated routing id, got % x", idFrame.Data())
		}
		if len(body.Data()) != 1 {
			t.Fatalf("body = % x, want a single byte", body.Data())
		}
		seen[body.Data()[0]]++
	}
	for i := range dealers {
		if seen[byte(i)] != 1 {
			t.Fatalf("dealer[%d]'s message was delivered %d times, want exactly 1", i, seen[byte(i)])
		}
	}
}

func TestRouterMandatoryUnreachable(t *testing.T) {
	router := NewRouter(WithRouterMandatory())
	err := router.XSend(message.New([]byte{0x00, 0x01, 0x02, 0x03, 0x04}))
	if err != ErrHostUnreachable {
		t.Fatalf("XSend to unknown id with router_mandatory = %v, want ErrHostUnreachable", err)
	}
}

func TestNewAutoRoutingIDIsUniqueAndTagged(t *testing.T) {
	a := NewAutoRoutingID()
	b := NewAutoRoutingID()
	if bytes.Equal(a, b) {
		t.Fatalf("two calls to NewAutoRoutingID produced the same id")
	}
	if !IsAutoRoutingID(a) || !IsAutoRoutingID(b) {
		t.Fatalf("auto-generated ids must satisfy IsAutoRoutingID")
	}
	if IsAutoRoutingID([]byte("user-chosen")) {
		t.Fatalf("a user-supplied id must not be mistaken for an auto id")
	}
}
