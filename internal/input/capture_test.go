package input

import (
	"testing"

	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
)

func TestHandlerDefaultBindingsPressAndRelease(t *testing.T) {
	h := NewHandler()
	h.OnKeyPress('w')
	h.OnKeyPress('j')

	frame := h.Frame(10)
	want := protocol.ButtonUp | protocol.ButtonA
	if frame.Buttons != want {
		t.Fatalf("Buttons = %v, want %v", frame.Buttons, want)
	}
	if frame.Tick != 10 {
		t.Fatalf("Tick = %d, want 10", frame.Tick)
	}

	h.OnKeyRelease('w')
	frame = h.Frame(11)
	if frame.Buttons != protocol.ButtonA {
		t.Fatalf("Buttons after release = %v, want only ButtonA", frame.Buttons)
	}
}

func TestHandlerUnboundKeyIsIgnored(t *testing.T) {
	h := NewHandler()
	h.OnKeyPress('z')
	if frame := h.Frame(0); frame.Buttons != 0 {
		t.Fatalf("an unbound key press should leave Buttons at zero, got %v", frame.Buttons)
	}
}

func TestHandlerBindOverridesMapping(t *testing.T) {
	h := NewHandler()
	h.Bind('z', KeyStart)
	h.OnKeyPress('z')
	if frame := h.Frame(0); frame.Buttons != protocol.ButtonStart {
		t.Fatalf("Buttons after custom binding = %v, want ButtonStart", frame.Buttons)
	}
}

func TestHandlerClearResetsState(t *testing.T) {
	h := NewHandler()
	h.OnKeyPress('w')
	h.Clear()
	if frame := h.Frame(0); frame.Buttons != 0 {
		t.Fatalf("Buttons after Clear() = %v, want zero", frame.Buttons)
	}
}

func TestHandlerFrameAnalogAxesRestAtZero(t *testing.T) {
	h := NewHandler()
	frame := h.Frame(0)
	if frame.StickLX != 0 || frame.StickLY != 0 || frame.StickRX != 0 || frame.StickRY != 0 {
		t.Fatalf("keyboard-sourced frame should have rest analog sticks, got %+v", frame)
	}
}
