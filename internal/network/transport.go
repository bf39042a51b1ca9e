// Package network implements peer-to-peer datagram transport for the
// Rollback Session: unreliable, unordered delivery is acceptable and
// even preferred to a reliable, ordered stream, since a late input is
// more useful dropped-and-predicted-around than queued behind an
// earlier one. TCP's head-of-line blocking is exactly wrong for this
// traffic pattern, so peers exchange fixed-size datagrams over UDP
// behind a small Transport/Connection interface shape.
package network

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// Transport abstracts a set of peer datagram sockets.
type Transport interface {
	// Open binds the local UDP socket.
	Open(localAddr string) error
	// Dial registers a remote peer reachable at addr, returning a
	// Connection for sending to and receiving from it.
	Dial(addr string) (Connection, error)
	// Close releases the local socket.
	Close() error
}

// Connection represents one peer-to-peer datagram path.
type Connection interface {
	// Send transmits one datagram. Silent loss is possible and expected.
	Send(data []byte) error
	// Recv blocks for the next datagram from this peer, or returns an
	// error if the deadline set by SetReadDeadline elapses.
	Recv() ([]byte, error)
	// SetReadDeadline bounds how long Recv may block.
	SetReadDeadline(t time.Time) error
	// RemoteAddr returns the peer's address.
	RemoteAddr() net.Addr
	// Close releases this connection's resources. The underlying socket
	// is shared and is closed by the owning Transport, not here.
	Close() error
}

// MaxDatagramSize bounds a single UDP payload, keeping every message
// (handshake, input frame, checksum) well under a typical path MTU so
// fragmentation never silently reorders pieces of one message.
const MaxDatagramSize = 1200

// UDPTransport implements Transport over a single shared UDP socket,
// demultiplexing inbound datagrams to per-peer Connections by source
// address.
type UDPTransport struct {
	conn *net.UDPConn

	limiter *rate.Limiter

	peers map[string]*udpConnection
}

// NewUDPTransport builds a transport whose inbound-datagram rate is
// capped at ratePerSecond with the given burst, guarding against a
// misbehaving or malicious peer flooding the read loop. Grounded on the
// example pack's golang.org/x/time/rate usage for inbound event
// throttling (kick-game-stream's ratelimit.go).
func NewUDPTransport(ratePerSecond float64, burst int) *UDPTransport {
	return &UDPTransport{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		peers:   make(map[string]*udpConnection),
	}
}

// Open binds the local UDP socket.
func (t *UDPTransport) Open(localAddr string) error {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return fmt.Errorf("network: resolving local address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("network: binding local socket: %w", err)
	}
	t.conn = conn
	return nil
}

// Dial registers a remote peer. Since UDP has no handshake at the
// socket layer, this never blocks or fails on an unreachable peer; the
// protocol-level Handshake message is what actually confirms liveness.
func (t *UDPTransport) Dial(addr string) (Connection, error) {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("network: resolving peer address: %w", err)
	}
	c := &udpConnection{socket: t.conn, remote: remote, inbox: make(chan []byte, 64)}
	t.peers[remote.String()] = c
	return c, nil
}

// Serve reads inbound datagrams until the socket closes, demultiplexing
// each to its peer's inbox by source address. Run this in its own
// goroutine; datagrams from unregistered sources are dropped.
func (t *UDPTransport) Serve() error {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, src, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		if !t.limiter.Allow() {
			continue
		}
		peer, ok := t.peers[src.String()]
		if !ok {
			continue
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		select {
		case peer.inbox <- msg:
		default:
			// Peer's inbox is full; drop rather than block the shared
			// read loop for every other peer.
		}
	}
}

// Close releases the shared socket.
func (t *UDPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// udpConnection is one peer's send/receive path over the transport's
// shared socket.
type udpConnection struct {
	socket   *net.UDPConn
	remote   *net.UDPAddr
	inbox    chan []byte
	deadline time.Time
}

func (c *udpConnection) Send(data []byte) error {
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("network: datagram of %d bytes exceeds MaxDatagramSize", len(data))
	}
	_, err := c.socket.WriteToUDP(data, c.remote)
	return err
}

func (c *udpConnection) Recv() ([]byte, error) {
	if c.deadline.IsZero() {
		return <-c.inbox, nil
	}
	timer := time.NewTimer(time.Until(c.deadline))
	defer timer.Stop()
	select {
	case msg := <-c.inbox:
		return msg, nil
	case <-timer.C:
		return nil, fmt.Errorf("network: Recv from %s timed out", c.remote)
	}
}

func (c *udpConnection) SetReadDeadline(t time.Time) error {
	c.deadline = t
	return nil
}

func (c *udpConnection) RemoteAddr() net.Addr { return c.remote }

func (c *udpConnection) Close() error { return nil }
