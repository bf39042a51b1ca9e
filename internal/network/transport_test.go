package network

import (
	"testing"
	"time"
)

func TestUDPTransportSendRecvRoundTrip(t *testing.T) {
	a := NewUDPTransport(1000, 100)
	if err := a.Open("127.0.0.1:0"); err != nil {
		t.Fatalf("a.Open: %v", err)
	}
	defer a.Close()

	b := NewUDPTransport(1000, 100)
	if err := b.Open("127.0.0.1:0"); err != nil {
		t.Fatalf("b.Open: %v", err)
	}
	defer b.Close()

	connAtoB, err := a.Dial(b.conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("a.Dial: %v", err)
	}
	connBtoA, err := b.Dial(a.conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("b.Dial: %v", err)
	}

	go a.Serve()
	go b.Serve()

	if err := connAtoB.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	connBtoA.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := connBtoA.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(msg) != "ping" {
		t.Fatalf("Recv() = %q, want %q", msg, "ping")
	}
}

func TestUDPConnectionSendRejectsOversizedDatagram(t *testing.T) {
	a := NewUDPTransport(1000, 100)
	if err := a.Open("127.0.0.1:0"); err != nil {
		t.Fatalf("a.Open: %v", err)
	}
	defer a.Close()

	conn, err := a.Dial("127.0.0.1:9") // discard port, never actually reached
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	oversized := make([]byte, MaxDatagramSize+1)
	if err := conn.Send(oversized); err == nil {
		t.Fatalf("Send of an oversized datagram should fail")
	}
}

func TestUDPConnectionRecvRespectsReadDeadline(t *testing.T) {
	a := NewUDPTransport(1000, 100)
	if err := a.Open("127.0.0.1:0"); err != nil {
		t.Fatalf("a.Open: %v", err)
	}
	defer a.Close()

	conn, err := a.Dial("127.0.0.1:9")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))

	start := time.Now()
	if _, err := conn.Recv(); err == nil {
		t.Fatalf("Recv with no inbound traffic should time out")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Recv took %v to time out, want well under a second", elapsed)
	}
}
