// Package instance implements the Game Instance: one guest WebAssembly
// module instantiated against a compiled module from the Guest Engine,
// wired to its own Capability Surface host module, its own input/RNG/
// save-slot state, and exposing exactly what the Snapshot Manager and
// the Rollback Session need through the snapshot.Source and
// capability.State interfaces.
//
// Follows a load-once, call-per-tick-hooks, single-fatal-error-type
// shape, restructured around wazero's api.Module instead of an
// in-process Go game struct.
package instance

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/nethercore-systems/nethercore-sub005/internal/capability"
	"github.com/nethercore-systems/nethercore-sub005/internal/engine"
	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
	"github.com/nethercore-systems/nethercore-sub005/internal/rng"
	"github.com/nethercore-systems/nethercore-sub005/internal/snapshot"
)

// Required guest exports.
const (
	exportMemory = "memory"
	exportInit   = "init"
	exportUpdate = "update"
	exportRender = "render"
)

// Config pins the session-wide constants a Game Instance is built with.
// These never change across a rollback restore; only the mutable state
// captured in a snapshot does.
type Config struct {
	TickRate    int // initial value; a guest may narrow it once, init-only
	PlayerCount int
	LocalMask   uint32
	Seed        uint64
	Caps        capability.Caps
}

// Instance is one live guest, wired to the host. It implements both
// snapshot.Source (for the Snapshot Manager) and capability.State (for
// its own Capability Surface host module).
type Instance struct {
	mod    api.Module
	host   api.Module
	engine *engine.Engine

	initFn   api.Function
	updateFn api.Function
	renderFn api.Function

	phase       capability.Phase
	tickRate    int
	playerCount uint32
	localMask   uint32
	clearColor  uint32
	quit        bool

	tick uint64
	dt   float32

	rng *rng.State
	res *capability.HandleTable

	inputPrev [4]protocol.InputFrame
	inputCur  [4]protocol.InputFrame

	saveSlots [snapshot.SaveSlotCount][]byte

	renderCmds [][]byte
	audioCmds  [][]byte

	warn func(*capability.Error)
	log  func(string)
}

// Load instantiates compiled against e, registers the capability
// surface host module, resolves required exports, and runs the guest's
// one-shot init() call. warn/logFn may be nil.
func Load(ctx context.Context, e *engine.Engine, compiled *engine.CompiledModule, cfg Config, warn func(*capability.Error), logFn func(string)) (*Instance, error) {
	if warn == nil {
		warn = func(*capability.Error) {}
	}
	if logFn == nil {
		logFn = func(string) {}
	}

	inst := &Instance{
		engine:      e,
		phase:       capability.PhaseInit,
		tickRate:    cfg.TickRate,
		playerCount: uint32(cfg.PlayerCount),
		localMask:   cfg.LocalMask,
		rng:         rng.New(cfg.Seed),
		res:         capability.NewHandleTable(cfg.Caps),
		warn:        warn,
		log:         logFn,
	}
	if cfg.TickRate > 0 {
		inst.dt = 1.0 / float32(cfg.TickRate)
	}

	host, err := capability.Register(ctx, e.Runtime(), inst)
	if err != nil {
		return nil, &engine.LoadError{Kind: engine.KindLinkError, Err: fmt.Errorf("registering capability surface: %w", err)}
	}
	inst.host = host

	for _, def := range compiled.Wazero().ImportedFunctions() {
		modName, name, _ := def.Import()
		if modName != capability.HostModuleName || host.ExportedFunction(name) == nil {
			return nil, &engine.LoadError{Kind: engine.KindLinkError, Err: fmt.Errorf("unresolved import %s.%s", modName, name)}
		}
	}

	mod, err := e.Runtime().InstantiateModule(ctx, compiled.Wazero(), nil)
	if err != nil {
		return nil, &engine.LoadError{Kind: engine.KindInstantiationFailed, Err: err}
	}
	inst.mod = mod

	if mod.Memory() == nil {
		return nil, &engine.LoadError{Kind: engine.KindLinkError, Err: fmt.Errorf("guest module exports no %q", exportMemory)}
	}

	inst.initFn = mod.ExportedFunction(exportInit)
	inst.updateFn = mod.ExportedFunction(exportUpdate)
	inst.renderFn = mod.ExportedFunction(exportRender)
	if inst.initFn == nil || inst.updateFn == nil || inst.renderFn == nil {
		return nil, &engine.LoadError{Kind: engine.KindLinkError, Err: fmt.Errorf("guest module must export %q, %q, %q", exportInit, exportUpdate, exportRender)}
	}

	if _, err := inst.initFn.Call(ctx); err != nil {
		return nil, &capability.Error{Kind: capability.KindGuestTrap, Call: exportInit, Message: err.Error()}
	}
	inst.phase = capability.PhaseRunning
	return inst, nil
}

// Close releases the guest and host module instances. The CompiledModule
// it was instantiated from is untouched and may back further instances.
func (inst *Instance) Close(ctx context.Context) error {
	if err := inst.mod.Close(ctx); err != nil {
		return err
	}
	return inst.host.Close(ctx)
}

// Update advances the simulation by exactly one tick, feeding the
// per-player input frames the Rollback Session has selected for this
// tick (confirmed or predicted — the Game Instance cannot tell which).
func (inst *Instance) Update(ctx context.Context, frames [4]protocol.InputFrame) error {
	inst.inputPrev = inst.inputCur
	inst.inputCur = frames
	inst.renderCmds = inst.renderCmds[:0]
	inst.audioCmds = inst.audioCmds[:0]

	if _, err := inst.updateFn.Call(ctx); err != nil {
		return &capability.Error{Kind: capability.KindGuestTrap, Call: exportUpdate, Message: err.Error()}
	}
	inst.tick++
	return nil
}

// Render asks the guest to emit render commands for the given
// interpolation factor. Render is never part of the deterministic
// tick, never touches the host mirror, and is never resimulated
// during rollback.
func (inst *Instance) Render(ctx context.Context, interpolation float32) error {
	if _, err := inst.renderFn.Call(ctx, api.EncodeF32(interpolation)); err != nil {
		return &capability.Error{Kind: capability.KindGuestTrap, Call: exportRender, Message: err.Error()}
	}
	return nil
}

// QuitRequested reports whether the guest has called quit(). The flag is
// never cleared once set.
func (inst *Instance) QuitRequested() bool { return inst.quit }

// DrainRenderCommands returns and clears the commands accumulated since
// the last drain.
func (inst *Instance) DrainRenderCommands() [][]byte {
	out := inst.renderCmds
	inst.renderCmds = nil
	return out
}

// DrainAudioCommands returns and clears the commands accumulated since
// the last drain.
func (inst *Instance) DrainAudioCommands() [][]byte {
	out := inst.audioCmds
	inst.audioCmds = nil
	return out
}

// --- snapshot.Source ---

func (inst *Instance) MemorySize() uint32 {
	return inst.mod.Memory().Size()
}

func (inst *Instance) ReadMemoryInto(dst []byte) error {
	size := inst.mod.Memory().Size()
	if uint32(len(dst)) != size {
		return fmt.Errorf("instance: ReadMemoryInto: dst is %d bytes, memory is %d", len(dst), size)
	}
	data, ok := inst.mod.Memory().Read(0, size)
	if !ok {
		return fmt.Errorf("instance: ReadMemoryInto: read of full %d-byte memory failed", size)
	}
	copy(dst, data)
	return nil
}

func (inst *Instance) WriteMemoryFrom(src []byte) error {
	if !inst.mod.Memory().Write(0, src) {
		return fmt.Errorf("instance: WriteMemoryFrom: write of %d bytes failed", len(src))
	}
	return nil
}

func (inst *Instance) Mirror() snapshot.HostMirror {
	seed, counter := inst.rng.Snapshot()
	m := snapshot.HostMirror{
		Tick:       inst.tick,
		RNGSeed:    seed,
		RNGCounter: counter,
		InputPrev:  inst.inputPrev,
		InputCur:   inst.inputCur,
	}
	for i, s := range inst.saveSlots {
		if s != nil {
			m.SaveSlots[i] = append([]byte(nil), s...)
		}
	}
	return m
}

func (inst *Instance) SetMirror(m snapshot.HostMirror) {
	inst.tick = m.Tick
	inst.rng.Restore(m.RNGSeed, m.RNGCounter)
	inst.inputPrev = m.InputPrev
	inst.inputCur = m.InputCur
	for i, s := range m.SaveSlots {
		inst.saveSlots[i] = s
	}
}

// --- capability.State ---

func (inst *Instance) Phase() capability.Phase { return inst.phase }

func (inst *Instance) DeltaTime() float32   { return inst.dt }
func (inst *Instance) ElapsedTime() float32 { return inst.dt * float32(inst.tick) }
func (inst *Instance) TickCount() uint64    { return inst.tick }
func (inst *Instance) PlayerCount() uint32  { return inst.playerCount }
func (inst *Instance) LocalPlayerMask() uint32 { return inst.localMask }

func (inst *Instance) NextRandom() uint32 { return inst.rng.Next() }

func (inst *Instance) Log(message string) { inst.log(message) }
func (inst *Instance) RequestQuit()       { inst.quit = true }

func (inst *Instance) Save(slot int, data []byte) int {
	if slot < 0 || slot >= snapshot.SaveSlotCount {
		return 1
	}
	if len(data) > snapshot.SaveSlotMax {
		return 2
	}
	inst.saveSlots[slot] = append([]byte(nil), data...)
	return 0
}

func (inst *Instance) Load(slot int) []byte {
	if slot < 0 || slot >= snapshot.SaveSlotCount {
		return nil
	}
	return inst.saveSlots[slot]
}

func (inst *Instance) Delete(slot int) int {
	if slot < 0 || slot >= snapshot.SaveSlotCount {
		return 1
	}
	inst.saveSlots[slot] = nil
	return 0
}

func (inst *Instance) Input(player int) (protocol.InputFrame, bool) {
	if player < 0 || player >= len(inst.inputCur) || uint32(player) >= inst.playerCount {
		return protocol.InputFrame{}, false
	}
	return inst.inputCur[player], true
}

func (inst *Instance) AppendRenderCommand(data []byte) {
	inst.renderCmds = append(inst.renderCmds, data)
}

func (inst *Instance) AppendAudioCommand(data []byte) {
	inst.audioCmds = append(inst.audioCmds, data)
}

func (inst *Instance) Resources() *capability.HandleTable { return inst.res }

func (inst *Instance) SetTickRateInitOnly(hz int) bool {
	if inst.phase != capability.PhaseInit {
		return false
	}
	switch hz {
	case 24, 30, 60, 120:
		inst.tickRate = hz
		inst.dt = 1.0 / float32(hz)
		return true
	default:
		return false
	}
}

func (inst *Instance) SetClearColorInitOnly(rgba uint32) bool {
	if inst.phase != capability.PhaseInit {
		return false
	}
	inst.clearColor = rgba
	return true
}

func (inst *Instance) Warn(err *capability.Error) { inst.warn(err) }

// TickRate returns the tick rate in effect, possibly narrowed by the
// guest during init.
func (inst *Instance) TickRate() int { return inst.tickRate }

// ClearColor returns the last clear color the guest configured.
func (inst *Instance) ClearColor() uint32 { return inst.clearColor }
