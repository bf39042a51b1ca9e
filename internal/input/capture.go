// Package input handles local keyboard capture and its mapping down to
// the wire-level protocol.InputFrame the Rollback Session sends for
// this peer's local player slot. Analog stick/trigger values are left
// at rest (zero) since a keyboard has no analog axes; a future gamepad
// backend would populate them directly instead of going through
// KeyState at all.
package input

import "github.com/nethercore-systems/nethercore-sub005/internal/protocol"

// Handler captures local key events and accumulates a KeyState between
// ticks.
type Handler struct {
	mapping map[rune]GameKey
	state   *KeyState
}

// NewHandler creates an input handler with default key bindings.
func NewHandler() *Handler {
	h := &Handler{
		mapping: make(map[rune]GameKey),
		state:   NewKeyState(),
	}
	h.SetDefaultBindings()
	return h
}

// SetDefaultBindings configures WASD + a small action cluster.
func (h *Handler) SetDefaultBindings() {
	h.mapping['a'] = KeyLeft
	h.mapping['A'] = KeyLeft
	h.mapping['d'] = KeyRight
	h.mapping['D'] = KeyRight
	h.mapping['w'] = KeyUp
	h.mapping['W'] = KeyUp
	h.mapping['s'] = KeyDown
	h.mapping['S'] = KeyDown

	h.mapping['j'] = KeyA
	h.mapping['J'] = KeyA
	h.mapping['k'] = KeyB
	h.mapping['K'] = KeyB
	h.mapping['u'] = KeyX
	h.mapping['U'] = KeyX
	h.mapping['i'] = KeyY
	h.mapping['I'] = KeyY

	h.mapping['\r'] = KeyStart
	h.mapping['\t'] = KeySelect
}

// Bind sets a custom key binding.
func (h *Handler) Bind(key rune, gameKey GameKey) {
	h.mapping[key] = gameKey
}

// OnKeyPress handles a key press event.
func (h *Handler) OnKeyPress(key rune) {
	if gameKey, ok := h.mapping[key]; ok {
		h.state.SetPressed(gameKey, true)
	}
}

// OnKeyRelease handles a key release (if the terminal backend supports
// it; otherwise callers should call Clear once per tick instead).
func (h *Handler) OnKeyRelease(key rune) {
	if gameKey, ok := h.mapping[key]; ok {
		h.state.SetPressed(gameKey, false)
	}
}

// Frame builds this tick's InputFrame from the accumulated key state.
// Stick and trigger axes are fixed at rest/zero — a keyboard has no
// analog input.
func (h *Handler) Frame(tick uint64) protocol.InputFrame {
	return protocol.InputFrame{
		Tick:    tick,
		Buttons: h.state.ToButtons(),
	}
}

// Clear resets the key state, for backends that only deliver press
// events and never release events.
func (h *Handler) Clear() {
	h.state.Reset()
}
