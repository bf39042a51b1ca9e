// Package protocol defines the wire types shared between every peer's
// Rollback Session: input frames, checksum messages, and the session
// handshake. Byte layouts here are part of the ABI — little-endian,
// fixed-size, identical on every peer.
package protocol

// Version constants for handshake compatibility checking.
const (
	ProtocolVersion = 1
	MinVersion      = 1
)

// Compatible checks if two versions can communicate
func Compatible(local, remote int) bool {
	return remote >= MinVersion && local >= MinVersion
}
