package input

import (
	"testing"

	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
)

func TestKeyStateSetAndIsPressed(t *testing.T) {
	s := NewKeyState()
	if s.IsPressed(KeyA) {
		t.Fatalf("KeyA should start unpressed")
	}
	s.SetPressed(KeyA, true)
	if !s.IsPressed(KeyA) {
		t.Fatalf("KeyA should be pressed after SetPressed(true)")
	}
	s.SetPressed(KeyA, false)
	if s.IsPressed(KeyA) {
		t.Fatalf("KeyA should be unpressed after SetPressed(false)")
	}
}

func TestKeyStateIgnoresOutOfRangeKey(t *testing.T) {
	s := NewKeyState()
	s.SetPressed(KeyCount, true)
	if s.IsPressed(KeyCount) {
		t.Fatalf("KeyCount is a sentinel, not a real key, and must never report pressed")
	}
}

func TestToButtonsCombinesPressedKeys(t *testing.T) {
	s := NewKeyState()
	s.SetPressed(KeyUp, true)
	s.SetPressed(KeyA, true)

	want := protocol.ButtonUp | protocol.ButtonA
	if got := s.ToButtons(); got != want {
		t.Fatalf("ToButtons() = %v, want %v", got, want)
	}
}

func TestKeyStateCloneIsIndependent(t *testing.T) {
	s := NewKeyState()
	s.SetPressed(KeyB, true)
	clone := s.Clone()
	s.SetPressed(KeyB, false)

	if !clone.IsPressed(KeyB) {
		t.Fatalf("Clone() should snapshot state at call time, unaffected by later mutation")
	}
}

func TestKeyStateReset(t *testing.T) {
	s := NewKeyState()
	s.SetPressed(KeyX, true)
	s.SetPressed(KeyY, true)
	s.Reset()
	if s.IsPressed(KeyX) || s.IsPressed(KeyY) {
		t.Fatalf("Reset() should clear every key")
	}
}
