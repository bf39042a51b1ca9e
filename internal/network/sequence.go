package network

import (
	"encoding/binary"
	"fmt"
)

// seqHeaderSize is the 4-byte monotonic sequence number prefixed to
// every datagram sent through a SequencedConnection.
const seqHeaderSize = 4

// SequencedConnection wraps a Connection with a per-peer monotonic
// send sequence number and drops any inbound datagram whose sequence
// number is not newer than the last one accepted — an
// unreliable-ordered discipline: out-of-order arrivals are discarded
// rather than buffered and reordered, since a stale input frame is
// superseded by prediction anyway.
type SequencedConnection struct {
	Connection
	sendSeq uint32
	recvSeq uint32
	hasRecv bool
}

// NewSequencedConnection wraps an existing Connection.
func NewSequencedConnection(c Connection) *SequencedConnection {
	return &SequencedConnection{Connection: c}
}

// Send prefixes data with the next send sequence number and forwards it.
func (c *SequencedConnection) Send(data []byte) error {
	c.sendSeq++
	out := make([]byte, seqHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[:seqHeaderSize], c.sendSeq)
	copy(out[seqHeaderSize:], data)
	return c.Connection.Send(out)
}

// Recv reads datagrams until one arrives with a sequence number newer
// than the last accepted, or an error occurs.
func (c *SequencedConnection) Recv() ([]byte, error) {
	for {
		raw, err := c.Connection.Recv()
		if err != nil {
			return nil, err
		}
		if len(raw) < seqHeaderSize {
			continue
		}
		seq := binary.LittleEndian.Uint32(raw[:seqHeaderSize])
		if c.hasRecv && seq <= c.recvSeq {
			continue // stale or duplicate, drop
		}
		c.recvSeq = seq
		c.hasRecv = true
		return raw[seqHeaderSize:], nil
	}
}

func (c *SequencedConnection) String() string {
	return fmt.Sprintf("SequencedConnection(%s)", c.RemoteAddr())
}
