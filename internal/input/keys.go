package input

import "github.com/nethercore-systems/nethercore-sub005/internal/protocol"

// GameKey represents a logical game key (backend-agnostic), mapped by
// Handler onto one of the capability surface's 14 digital buttons.
type GameKey uint8

const (
	KeyUp GameKey = iota
	KeyDown
	KeyLeft
	KeyRight
	KeyA
	KeyB
	KeyX
	KeyY
	KeyL1
	KeyR1
	KeyStart
	KeySelect
	KeyCount // sentinel for array sizing
)

var keyToButton = [KeyCount]protocol.Button{
	KeyUp:     protocol.ButtonUp,
	KeyDown:   protocol.ButtonDown,
	KeyLeft:   protocol.ButtonLeft,
	KeyRight:  protocol.ButtonRight,
	KeyA:      protocol.ButtonA,
	KeyB:      protocol.ButtonB,
	KeyX:      protocol.ButtonX,
	KeyY:      protocol.ButtonY,
	KeyL1:     protocol.ButtonL1,
	KeyR1:     protocol.ButtonR1,
	KeyStart:  protocol.ButtonStart,
	KeySelect: protocol.ButtonSelect,
}

// KeyEventType indicates press or release.
type KeyEventType uint8

const (
	KeyDownEvent KeyEventType = iota
	KeyUpEvent
)

// KeyEvent represents a key state transition.
type KeyEvent struct {
	Type KeyEventType
	Key  GameKey
}

// KeyState tracks pressed state of all keys using a fixed-size array,
// so state capture never allocates per tick.
type KeyState struct {
	pressed [KeyCount]bool
}

// NewKeyState creates a new key state tracker.
func NewKeyState() *KeyState {
	return &KeyState{}
}

// IsPressed returns whether a key is currently pressed.
func (s *KeyState) IsPressed(key GameKey) bool {
	if key >= KeyCount {
		return false
	}
	return s.pressed[key]
}

// SetPressed updates a key's pressed state.
func (s *KeyState) SetPressed(key GameKey, pressed bool) {
	if key >= KeyCount {
		return
	}
	s.pressed[key] = pressed
}

// ToButtons converts key state to the capability surface's digital
// button bitmask.
func (s *KeyState) ToButtons() protocol.Button {
	var buttons protocol.Button
	for k, down := range s.pressed {
		if down {
			buttons |= keyToButton[k]
		}
	}
	return buttons
}

// Clone returns a copy of the key state.
func (s *KeyState) Clone() KeyState {
	return KeyState{pressed: s.pressed}
}

// Reset clears all key states.
func (s *KeyState) Reset() {
	for i := range s.pressed {
		s.pressed[i] = false
	}
}
