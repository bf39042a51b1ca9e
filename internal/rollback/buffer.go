// Package rollback implements the Rollback Session: the same
// prediction/reconciliation pair runs symmetrically on every peer,
// instead of an authoritative server reconciling trusting clients.
// Every peer predicts every OTHER peer's input by repeating its last
// confirmed frame, and rolls back to the earliest tick where a
// later-arriving confirmed frame disagrees with what was predicted.
//
// The ring-buffer-of-recent-ticks structure and the rollback-then-replay
// flow generalize the familiar client-side prediction/reconciler pair
// from "one predicted local player vs. one authoritative server" to
// "every player slot, confirmed or predicted, on every peer".
package rollback

import "github.com/nethercore-systems/nethercore-sub005/internal/protocol"

// MaxPlayers is the console's fixed player-slot ceiling.
const MaxPlayers = 4

// TickInputs holds one tick's input frame for every player slot, plus
// which slots are confirmed (received directly or locally authored) as
// opposed to predicted (repeated from the last confirmed frame).
type TickInputs struct {
	Tick      uint64
	Frames    [MaxPlayers]protocol.InputFrame
	Confirmed [MaxPlayers]bool
}

// AllConfirmed reports whether every active player slot is confirmed.
func (t *TickInputs) AllConfirmed(playerCount int) bool {
	for i := 0; i < playerCount; i++ {
		if !t.Confirmed[i] {
			return false
		}
	}
	return true
}

// History is a ring buffer of recent per-tick input records, indexed by
// tick. The Session sizes it to twice max_prediction plus four so a late
// confirmation can still land on an entry still held in the buffer.
type History struct {
	entries  []TickInputs
	capacity int
}

// NewHistory creates a history sized for capacity ticks.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{entries: make([]TickInputs, 0, capacity), capacity: capacity}
}

// Record appends or overwrites this tick's entry, preserving ascending
// tick order.
func (h *History) Record(t TickInputs) {
	for i := range h.entries {
		if h.entries[i].Tick == t.Tick {
			h.entries[i] = t
			return
		}
	}
	if len(h.entries) >= h.capacity {
		h.entries = h.entries[1:]
	}
	i := len(h.entries)
	for i > 0 && h.entries[i-1].Tick > t.Tick {
		i--
	}
	h.entries = append(h.entries, TickInputs{})
	copy(h.entries[i+1:], h.entries[i:])
	h.entries[i] = t
}

// Get returns a pointer to the entry for tick, or nil if it has been
// pruned or never recorded.
func (h *History) Get(tick uint64) *TickInputs {
	for i := range h.entries {
		if h.entries[i].Tick == tick {
			return &h.entries[i]
		}
	}
	return nil
}

// ConfirmInput overwrites player's frame at tick with a confirmed value,
// returning true if that changed a previously predicted frame (meaning
// a rollback to tick is required).
func (h *History) ConfirmInput(tick uint64, player int, frame protocol.InputFrame) (changed bool) {
	entry := h.Get(tick)
	if entry == nil {
		return false
	}
	wasConfirmed := entry.Confirmed[player]
	prev := entry.Frames[player]
	entry.Frames[player] = frame
	entry.Confirmed[player] = true
	return !wasConfirmed && prev != frame
}

// OldestTick returns the earliest tick still held, and true if the
// history is non-empty.
func (h *History) OldestTick() (uint64, bool) {
	if len(h.entries) == 0 {
		return 0, false
	}
	return h.entries[0].Tick, true
}

// PruneBefore drops every entry older than tick. The Session calls it
// with a floor max_prediction ticks below the oldest last-confirmed
// input tick of any player.
func (h *History) PruneBefore(tick uint64) {
	i := 0
	for i < len(h.entries) && h.entries[i].Tick < tick {
		i++
	}
	if i > 0 {
		h.entries = h.entries[i:]
	}
}

// Len returns the number of entries currently held.
func (h *History) Len() int { return len(h.entries) }
