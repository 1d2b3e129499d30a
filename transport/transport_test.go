// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"testing"
)

func TestParseEndpointTCP(t *testing.T) {
	ep, err := ParseEndpoint("tcp://127.0.0.1:5555")
	if err != nil {
		t.Fatalf("ParseEndpoint: %v", err)
	}
	if ep.Scheme != SchemeTCP || ep.Addr != "127.0.0.1:5555" {
		t.Fatalf("ParseEndpoint = %+v", ep)
	}
	if got := ep.String(); got != "tcp://127.0.0.1:5555" {
		t.Fatalf("String() = %q", got)
	}
}

func TestParseEndpointWSWithPath(t *testing.T) {
	ep, err := ParseEndpoint("ws://example.com:8080/feed")
	if err != nil {
		t.Fatalf("ParseEndpoint: %v", err)
	}
	if ep.Addr != "example.com:8080" || ep.Path != "/feed" {
		t.Fatalf("ParseEndpoint = %+v", ep)
	}
}

func TestParseEndpointWSDefaultPath(t *testing.T) {
	ep, err := ParseEndpoint("ws://example.com:8080")
	if err != nil {
		t.Fatalf("ParseEndpoint: %v", err)
	}
	if ep.Path != "/" {
		t.Fatalf("Path = %q, want default /", ep.Path)
	}
}

func TestParseEndpointRejectsMissingScheme(t *testing.T) {
	if _, err := ParseEndpoint("127.0.0.1:5555"); err != ErrInvalidEndpoint {
		t.Fatalf("ParseEndpoint without scheme = %v, want ErrInvalidEndpoint", err)
	}
}

func TestParseEndpointRejectsEmptyInprocName(t *testing.T) {
	if _, err := ParseEndpoint("inproc://"); err != ErrInvalidEndpoint {
		t.Fatalf("ParseEndpoint(inproc://) = %v, want ErrInvalidEndpoint", err)
	}
}

func TestBoundaryForScheme(t *testing.T) {
	cases := map[Scheme]Boundary{
		SchemeTCP:    Stream,
		SchemeIPC:    Stream,
		SchemeTLS:    Stream,
		SchemeInproc: Stream,
		SchemeWS:     Packet,
		SchemeWSS:    Packet,
	}
	for scheme, want := range cases {
		if got := BoundaryFor(scheme); got != want {
			t.Errorf("BoundaryFor(%s) = %v, want %v", scheme, got, want)
		}
	}
}

func TestInprocRoundTrip(t *testing.T) {
	ln, err := ListenInproc("test-rt")
	if err != nil {
		t.Fatalf("ListenInproc: %v", err)
	}
	defer ln.Close()

	dialer := DialInproc("test-rt")
	done := make(chan Conn, 1)
	go func() {
		c, err := dialer.Dial(context.Background())
		if err != nil {
			t.Errorf("Dial: %v", err)
			return
		}
		done <- c
	}()

	server, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	client := <-done

	if server.Boundary() != Stream || client.Boundary() != Stream {
		t.Fatalf("inproc connections must report Stream boundary")
	}

	payload := []byte("hello inproc")
	go func() { _, _ = client.Write(payload) }()

	buf := make([]byte, len(payload))
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != string(payload) {
		t.Fatalf("Read() = %q, want %q", buf[:n], payload)
	}

	_ = server.Close()
	_ = client.Close()
}

func TestInprocDialWithoutBindFails(t *testing.T) {
	dialer := DialInproc("no-such-bind")
	if _, err := dialer.Dial(context.Background()); err != ErrNoSuchInprocBind {
		t.Fatalf("Dial against an unbound name = %v, want ErrNoSuchInprocBind", err)
	}
}

func TestListenInprocRejectsDuplicateName(t *testing.T) {
	ln, err := ListenInproc("dup-name")
	if err != nil {
		t.Fatalf("ListenInproc: %v", err)
	}
	defer ln.Close()

	if _, err := ListenInproc("dup-name"); err != ErrInprocNameInUse {
		t.Fatalf("second ListenInproc with the same name = %v, want ErrInprocNameInUse", err)
	}
}
