// Package rng implements the host-owned deterministic PRNG exposed to
// the guest through the capability surface's random() call. It is the
// only source of randomness a guest may observe, and it MUST restore
// exactly on rollback.
package rng

// State is a SplitMix64-derived counter-based generator. Unlike the
// corpus's usual xorshift scratch generators (see the xorshift64
// variants benchmarked in the example pack's rand-benchmark tool), a
// counter-based design has no feedback state to desync across peers
// beyond a single uint64 — restoring it on rollback is one field copy,
// and its next-value sequence depends only on that field, never on
// call history recorded anywhere else.
type State struct {
	seed    uint64
	counter uint64
}

// New seeds a generator from the session-wide constant negotiated at
// session start (protocol.Handshake.Seed).
func New(seed uint64) *State {
	return &State{seed: seed}
}

// Next advances the generator and returns the next 32-bit value. This is
// what the capability surface's random() call returns to the guest.
func (s *State) Next() uint32 {
	s.counter++
	z := s.seed + s.counter*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return uint32(z >> 32)
}

// Counter returns the number of values drawn so far. Part of the host
// mirror that the Snapshot Manager persists.
func (s *State) Counter() uint64 {
	return s.counter
}

// Seed returns the session seed this generator was created with.
func (s *State) Seed() uint64 {
	return s.seed
}

// Snapshot returns the (seed, counter) pair needed to restore this
// generator byte-for-byte.
func (s *State) Snapshot() (seed, counter uint64) {
	return s.seed, s.counter
}

// Restore resets the generator to a previously snapshotted (seed,
// counter) pair. After Restore, Next() reproduces exactly the sequence
// that followed that point originally — required by the RNG-reset-on-
// rollback property.
func (s *State) Restore(seed, counter uint64) {
	s.seed = seed
	s.counter = counter
}
