package capability

import "github.com/nethercore-systems/nethercore-sub005/internal/protocol"

// Phase distinguishes the one-shot init call from every later update
// call, for init-only capability enforcement.
type Phase uint8

const (
	PhaseInit Phase = iota
	PhaseRunning
)

// State is everything a registered host function needs beyond the
// api.Module/memory access wazero already hands it per call. The Game
// Instance implements this; the capability package never imports the
// instance package, so the two have no import cycle — instance imports
// capability to register the host module against its own state.
type State interface {
	Phase() Phase

	// Timing/identity.
	DeltaTime() float32
	ElapsedTime() float32
	TickCount() uint64
	PlayerCount() uint32
	LocalPlayerMask() uint32

	// RNG: advances the host-owned PRNG and returns the next value.
	NextRandom() uint32

	// Log/quit.
	Log(message string)
	RequestQuit()

	// Save slots. Return codes:
	// Save: 0 ok, 1 bad slot, 2 too large.
	Save(slot int, data []byte) int
	// Load: returns the slot's bytes (nil/empty if the slot is empty or
	// invalid); the caller truncates to the guest-provided max length.
	Load(slot int) []byte
	// Delete: 0 ok, 1 bad slot.
	Delete(slot int) int

	// Input query, per player slot (0..3). ok is false for an
	// out-of-range or inactive slot (CapabilityMisuse, non-fatal).
	Input(player int) (frame protocol.InputFrame, ok bool)

	// Command buffers: append-only, drained by the Rollback Session at
	// tick end. Dropped silently during RollingBack resimulation by the
	// Game Instance, never by the capability call itself.
	AppendRenderCommand(data []byte)
	AppendAudioCommand(data []byte)

	// Resource handles.
	Resources() *HandleTable

	// Init-only configuration. Accepted only when Phase() == PhaseInit;
	// the caller is responsible for warning and no-op'ing otherwise.
	SetTickRateInitOnly(hz int) bool
	SetClearColorInitOnly(rgba uint32) bool

	// Warn logs a non-fatal CapabilityMisuse or ResourceExhaustion
	// diagnostic without raising a session event.
	Warn(err *Error)
}
