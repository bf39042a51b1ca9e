// Package session generates the session nonce carried in
// protocol.Handshake and exchanged between peers when a session starts.
// This is deliberately NOT matchmaking or room discovery — peers already
// know each other's addresses by the time a session is created. Each
// peer generates its own nonce independently rather than agreeing on one
// in advance, so the nonce is not itself compared for equality; its job
// is to give operators a short, log-correlatable id for one run of a
// session across every peer's output. The constants the handshake
// actually validates for agreement before a tick is simulated — tick
// rate, player count, input delay, max prediction — travel alongside it
// in the same Handshake message.
//
// The code-generation shape here is narrowed from a typical
// globally-unique, looked-up-by-store room code to one that is locally
// random, never looked up, just logged.
package session

import (
	"crypto/rand"
	"fmt"
)

// nonceCharset avoids visually ambiguous characters.
const nonceCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NonceLength is the fixed length of a generated session nonce.
const NonceLength = 8

// NewNonce generates a random session nonce in format XXXX-XXXX, drawn
// from crypto/rand rather than math/rand so that it is not predictable
// from a process-start-time seed.
func NewNonce() (string, error) {
	raw := make([]byte, NonceLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("session: generating nonce: %w", err)
	}
	code := make([]byte, NonceLength)
	for i, b := range raw {
		code[i] = nonceCharset[int(b)%len(nonceCharset)]
	}
	out := make([]byte, 0, NonceLength+1)
	out = append(out, code[:NonceLength/2]...)
	out = append(out, '-')
	out = append(out, code[NonceLength/2:]...)
	return string(out), nil
}
