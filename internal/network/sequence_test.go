package network

import (
	"net"
	"testing"
	"time"
)

// fakeConn is an in-memory Connection: Send appends to outbox, Recv pops
// from a pre-loaded inbox, for exercising SequencedConnection without a
// real socket.
type fakeConn struct {
	outbox [][]byte
	inbox  [][]byte
}

func (f *fakeConn) Send(data []byte) error {
	cp := append([]byte(nil), data...)
	f.outbox = append(f.outbox, cp)
	return nil
}

func (f *fakeConn) Recv() ([]byte, error) {
	msg := f.inbox[0]
	f.inbox = f.inbox[1:]
	return msg, nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) RemoteAddr() net.Addr            { return &net.UDPAddr{} }
func (f *fakeConn) Close() error                    { return nil }

func TestSequencedConnectionSendPrependsIncrementingSequence(t *testing.T) {
	base := &fakeConn{}
	c := NewSequencedConnection(base)

	c.Send([]byte("first"))
	c.Send([]byte("second"))

	if len(base.outbox) != 2 {
		t.Fatalf("expected 2 sent datagrams, got %d", len(base.outbox))
	}
	if string(base.outbox[0][seqHeaderSize:]) != "first" {
		t.Fatalf("first payload = %q, want %q", base.outbox[0][seqHeaderSize:], "first")
	}
	if string(base.outbox[1][seqHeaderSize:]) != "second" {
		t.Fatalf("second payload = %q, want %q", base.outbox[1][seqHeaderSize:], "second")
	}
}

// encodeSeq builds a raw datagram with the given sequence number prefix,
// the wire shape SequencedConnection.Send produces.
func encodeSeq(seq uint32, payload string) []byte {
	base := &fakeConn{}
	c := NewSequencedConnection(base)
	c.sendSeq = seq - 1
	c.Send([]byte(payload))
	return base.outbox[0]
}

func TestSequencedConnectionDropsStaleAndDuplicateDatagrams(t *testing.T) {
	base := &fakeConn{inbox: [][]byte{
		encodeSeq(5, "five"),
		encodeSeq(3, "stale-three"),
		encodeSeq(5, "dup-five"),
		encodeSeq(7, "seven"),
	}}
	c := NewSequencedConnection(base)

	msg, err := c.Recv()
	if err != nil || string(msg) != "five" {
		t.Fatalf("Recv() = (%q, %v), want (\"five\", nil)", msg, err)
	}
	msg, err = c.Recv()
	if err != nil || string(msg) != "seven" {
		t.Fatalf("Recv() after stale/duplicate datagrams = (%q, %v), want (\"seven\", nil), should skip seq 3 and dup seq 5", msg, err)
	}
}

func TestSequencedConnectionDropsShortDatagrams(t *testing.T) {
	base := &fakeConn{inbox: [][]byte{
		{0x01, 0x02}, // shorter than seqHeaderSize
		encodeSeq(1, "ok"),
	}}
	c := NewSequencedConnection(base)

	msg, err := c.Recv()
	if err != nil || string(msg) != "ok" {
		t.Fatalf("Recv() = (%q, %v), want (\"ok\", nil)", msg, err)
	}
}
