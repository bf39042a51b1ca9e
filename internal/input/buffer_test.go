package input

import (
	"testing"

	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
)

func TestBufferLatestReportsEmptyBuffer(t *testing.T) {
	b := NewBuffer(4)
	if _, ok := b.Latest(); ok {
		t.Fatalf("Latest() on an empty buffer should report ok=false")
	}
}

func TestBufferPushAndLatest(t *testing.T) {
	b := NewBuffer(4)
	b.Push(protocol.InputFrame{Tick: 1})
	b.Push(protocol.InputFrame{Tick: 2})

	latest, ok := b.Latest()
	if !ok || latest.Tick != 2 {
		t.Fatalf("Latest() = (%+v, %v), want (tick 2, true)", latest, ok)
	}
}

func TestBufferEvictsOldestAtCapacity(t *testing.T) {
	b := NewBuffer(2)
	b.Push(protocol.InputFrame{Tick: 1})
	b.Push(protocol.InputFrame{Tick: 2})
	b.Push(protocol.InputFrame{Tick: 3})

	recent := b.Recent(2)
	if len(recent) != 2 || recent[0].Tick != 2 || recent[1].Tick != 3 {
		t.Fatalf("Recent(2) = %+v, want ticks [2, 3] (tick 1 evicted)", recent)
	}
}

func TestBufferRecentClampsToAvailable(t *testing.T) {
	b := NewBuffer(4)
	b.Push(protocol.InputFrame{Tick: 1})

	recent := b.Recent(10)
	if len(recent) != 1 {
		t.Fatalf("Recent(10) with only one frame pushed = %d entries, want 1", len(recent))
	}
}

func TestNewBufferClampsCapacity(t *testing.T) {
	b := NewBuffer(0)
	b.Push(protocol.InputFrame{Tick: 1})
	b.Push(protocol.InputFrame{Tick: 2})
	if recent := b.Recent(10); len(recent) != 1 {
		t.Fatalf("a non-positive capacity should be clamped to 1, got %d retained entries", len(recent))
	}
}
