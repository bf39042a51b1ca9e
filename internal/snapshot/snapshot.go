// Package snapshot implements the Snapshot Manager: a pool of
// pre-allocated byte buffers sized to the console's declared RAM cap,
// used to capture and restore a Game Instance's linear memory plus its
// host-side deterministic mirror (RNG state, tick, input-state pairs,
// save slots) in O(one frame).
//
// The checksum routine hashes each piece of state incrementally into a
// running FNV-1a/64 digest: linear memory first, then the host mirror
// field by field, widened to 64 bits for a lower collision rate across
// long multi-peer sessions.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
)

// SaveSlotCount is the number of fixed save slots per Game Instance.
const SaveSlotCount = 8

// SaveSlotMax is the maximum byte size of a single save slot.
const SaveSlotMax = 64 * 1024

// HostMirror is the host-side deterministic state that, together with
// the guest's linear memory, makes up a complete snapshot. None of this
// is visible to the guest except through capability calls that read it
// back (random, load, tick_count, input queries).
type HostMirror struct {
	Tick uint64

	RNGSeed    uint64
	RNGCounter uint64

	// Previous and current input frame per player slot. Index is the
	// player slot (0..3), unused slots carry the zero InputFrame.
	InputPrev [4]protocol.InputFrame
	InputCur  [4]protocol.InputFrame

	// SaveSlots holds a snapshot-local copy of each save slot's bytes.
	// A nil entry means the slot is empty (load returns 0 bytes read).
	SaveSlots [SaveSlotCount][]byte
}

// Clone returns a deep copy, since SaveSlots holds slices that must not
// be aliased between two live snapshots in the pool.
func (m HostMirror) Clone() HostMirror {
	out := m
	for i, s := range m.SaveSlots {
		if s == nil {
			continue
		}
		out.SaveSlots[i] = append([]byte(nil), s...)
	}
	return out
}

// Source is implemented by the Game Instance. The Snapshot Manager only
// ever talks to this interface, never to instance internals, so the two
// packages have no import cycle.
type Source interface {
	// MemorySize returns the current size of the guest's linear memory,
	// in bytes.
	MemorySize() uint32
	// ReadMemoryInto copies the entire linear memory into dst. len(dst)
	// must equal MemorySize().
	ReadMemoryInto(dst []byte) error
	// WriteMemoryFrom replaces the entire linear memory with src.
	// len(src) must equal the instance's current MemorySize(); growth or
	// shrinkage across a restore is a SnapshotError.
	WriteMemoryFrom(src []byte) error
	// Mirror returns a copy of the current host mirror.
	Mirror() HostMirror
	// SetMirror restores the host mirror exactly.
	SetMirror(HostMirror)
}

// Buffer is one pooled snapshot: a copy of the linear memory and a copy
// of the host mirror, plus the checksum computed over both.
type Buffer struct {
	Tick     uint64
	Memory   []byte
	Mirror   HostMirror
	Checksum uint64

	pooled bool // true if acquired from a Manager's ring and must be released there
}

// ErrSizeMismatch is a SnapshotError: the buffer being restored does not
// match the instance's current linear memory size. Terminal, Desync-
// equivalent per spec.
type ErrSizeMismatch struct {
	Want, Got uint32
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("snapshot: size mismatch: instance memory is %d bytes, buffer holds %d", e.Want, e.Got)
}

// ErrPoolExhausted is a SnapshotError describing a pool that has run out
// of buffers. Acquire does not return it: it allocates a fresh buffer
// and reports the growth through the warn callback instead.
type ErrPoolExhausted struct{ Capacity int }

func (e *ErrPoolExhausted) Error() string {
	return fmt.Sprintf("snapshot: pool exhausted (capacity %d)", e.Capacity)
}

// Manager owns the pool of pre-allocated snapshot buffers. Its lifetime
// equals the owning Game Instance's lifetime; it is pre-sized from the
// console's declared RAM cap and from max_prediction — the pool must
// hold at least max_prediction + 2 concurrently live snapshots.
type Manager struct {
	ramCap   uint32 // console RAM cap in bytes; new buffers are allocated at this size
	capacity int    // target pool size (max_prediction + 2)

	free []*Buffer // recycled buffers, ready for reuse
	live int       // buffers currently checked out, for diagnostics
	warn func(string)
}

// NewManager pre-allocates `capacity` buffers of `ramCapBytes` each. warn
// receives non-fatal diagnostics (pool growth, release of an oversized
// buffer) for the caller's logging sink; it may be nil.
func NewManager(ramCapBytes uint32, capacity int, warn func(string)) *Manager {
	if capacity < 1 {
		capacity = 1
	}
	m := &Manager{
		ramCap:   ramCapBytes,
		capacity: capacity,
		free:     make([]*Buffer, 0, capacity),
		warn:     warn,
	}
	for i := 0; i < capacity; i++ {
		m.free = append(m.free, &Buffer{Memory: make([]byte, 0, ramCapBytes), pooled: true})
	}
	return m
}

// Acquire returns a recycled buffer, or allocates and warns if the pool
// is currently empty.
func (m *Manager) Acquire() *Buffer {
	if n := len(m.free); n > 0 {
		b := m.free[n-1]
		m.free = m.free[:n-1]
		m.live++
		return b
	}
	if m.warn != nil {
		m.warn("snapshot pool exhausted, allocating new buffer")
	}
	m.live++
	return &Buffer{Memory: make([]byte, 0, m.ramCap), pooled: true}
}

// Release returns a buffer to the pool if its backing array is within
// the pool's sizing; otherwise the buffer is dropped (left for the GC).
func (m *Manager) Release(b *Buffer) {
	if b == nil || !b.pooled {
		return
	}
	m.live--
	if uint32(cap(b.Memory)) > m.ramCap*2 {
		if m.warn != nil {
			m.warn("snapshot buffer oversized, dropping instead of pooling")
		}
		return
	}
	if len(m.free) < m.capacity {
		b.Memory = b.Memory[:0]
		m.free = append(m.free, b)
	}
}

// Live returns the number of buffers currently checked out.
func (m *Manager) Live() int { return m.live }

// Snapshot serializes src's linear memory and host mirror into a pooled
// buffer and computes its checksum.
func (m *Manager) Snapshot(src Source) (*Buffer, uint64) {
	b := m.Acquire()
	size := src.MemorySize()
	if uint32(cap(b.Memory)) < size {
		b.Memory = make([]byte, size)
	} else {
		b.Memory = b.Memory[:size]
	}
	if err := src.ReadMemoryInto(b.Memory); err != nil {
		// A Source implementation that reports its own size wrong is a
		// host bug, not a guest-triggerable condition; panic surfaces it
		// immediately during development rather than silently desyncing.
		panic(fmt.Sprintf("snapshot: ReadMemoryInto: %v", err))
	}
	mirror := src.Mirror()
	b.Tick = mirror.Tick
	b.Mirror = mirror
	b.Checksum = checksum(b.Memory, mirror)
	return b, b.Checksum
}

// Restore validates size and copies a buffer's contents back into dst,
// restoring the host mirror exactly. Returns ErrSizeMismatch (terminal)
// if the linear memory sizes disagree.
func (m *Manager) Restore(dst Source, b *Buffer) error {
	want := dst.MemorySize()
	got := uint32(len(b.Memory))
	if want != got {
		return &ErrSizeMismatch{Want: want, Got: got}
	}
	if err := dst.WriteMemoryFrom(b.Memory); err != nil {
		return err
	}
	dst.SetMirror(b.Mirror.Clone())
	return nil
}

// checksum hashes linear memory followed by the host mirror with
// FNV-1a/64, writing tick, RNG state, input pairs, and save slots into a
// single running digest.
func checksum(memory []byte, mirror HostMirror) uint64 {
	h := fnv.New64a()
	h.Write(memory)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], mirror.Tick)
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], mirror.RNGSeed)
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], mirror.RNGCounter)
	h.Write(buf[:])

	for _, frame := range mirror.InputPrev {
		enc := frame.Encode()
		h.Write(enc[:])
	}
	for _, frame := range mirror.InputCur {
		enc := frame.Encode()
		h.Write(enc[:])
	}
	for _, slot := range mirror.SaveSlots {
		h.Write(slot)
	}
	return h.Sum64()
}

// StatesMatch compares two buffers' checksums. A true result is a fast
// path; a false result means the peers have desynced and the caller
// should emit Desync(tick).
func StatesMatch(a, b *Buffer) bool {
	return a.Checksum == b.Checksum
}
