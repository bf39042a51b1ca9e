package rollback

import (
	"testing"

	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
)

func TestHistoryRecordAndGet(t *testing.T) {
	h := NewHistory(4)
	h.Record(TickInputs{Tick: 5})
	h.Record(TickInputs{Tick: 6})

	if got := h.Get(5); got == nil || got.Tick != 5 {
		t.Fatalf("Get(5) = %v, want tick 5", got)
	}
	if got := h.Get(99); got != nil {
		t.Fatalf("Get(99) = %v, want nil", got)
	}
}

func TestHistoryRecordOverwritesSameTick(t *testing.T) {
	h := NewHistory(4)
	h.Record(TickInputs{Tick: 1, Confirmed: [MaxPlayers]bool{true}})
	h.Record(TickInputs{Tick: 1, Confirmed: [MaxPlayers]bool{true, true}})

	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after overwriting tick 1", h.Len())
	}
	if entry := h.Get(1); !entry.Confirmed[1] {
		t.Fatalf("expected overwritten entry to keep player 1 confirmed")
	}
}

func TestHistoryEvictsOldestAtCapacity(t *testing.T) {
	h := NewHistory(2)
	h.Record(TickInputs{Tick: 1})
	h.Record(TickInputs{Tick: 2})
	h.Record(TickInputs{Tick: 3})

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	if h.Get(1) != nil {
		t.Fatalf("expected tick 1 to have been evicted")
	}
	if h.Get(3) == nil {
		t.Fatalf("expected tick 3 to be retained")
	}
}

func TestConfirmInputReportsChangeOnlyWhenValueDiffers(t *testing.T) {
	h := NewHistory(4)
	predicted := protocol.InputFrame{Buttons: protocol.ButtonA}
	h.Record(TickInputs{Tick: 10, Frames: [MaxPlayers]protocol.InputFrame{1: predicted}})

	if changed := h.ConfirmInput(10, 1, predicted); changed {
		t.Fatalf("confirming an identical frame must not report a change")
	}
	if changed := h.ConfirmInput(10, 1, protocol.InputFrame{Buttons: protocol.ButtonB}); changed {
		t.Fatalf("re-confirming an already-confirmed slot must not report a change")
	}
}

func TestConfirmInputOnUnknownTickIsNoop(t *testing.T) {
	h := NewHistory(4)
	if changed := h.ConfirmInput(42, 0, protocol.InputFrame{}); changed {
		t.Fatalf("confirming a never-recorded tick must not report a change")
	}
}

func TestPruneBeforeDropsOnlyOlderEntries(t *testing.T) {
	h := NewHistory(8)
	for tick := uint64(1); tick <= 5; tick++ {
		h.Record(TickInputs{Tick: tick})
	}
	h.PruneBefore(3)

	if h.Get(2) != nil {
		t.Fatalf("expected tick 2 to be pruned")
	}
	if h.Get(3) == nil {
		t.Fatalf("expected tick 3 to survive PruneBefore(3)")
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
}

func TestAllConfirmed(t *testing.T) {
	entry := TickInputs{Confirmed: [MaxPlayers]bool{true, true, false, false}}
	if !entry.AllConfirmed(2) {
		t.Fatalf("AllConfirmed(2) should be true when slots 0 and 1 are both confirmed")
	}
	if entry.AllConfirmed(3) {
		t.Fatalf("AllConfirmed(3) should be false when slot 2 is unconfirmed")
	}
}

func TestOldestTick(t *testing.T) {
	h := NewHistory(4)
	if _, ok := h.OldestTick(); ok {
		t.Fatalf("OldestTick on empty history should report ok=false")
	}
	h.Record(TickInputs{Tick: 7})
	h.Record(TickInputs{Tick: 8})
	tick, ok := h.OldestTick()
	if !ok || tick != 7 {
		t.Fatalf("OldestTick() = (%d, %v), want (7, true)", tick, ok)
	}
}
