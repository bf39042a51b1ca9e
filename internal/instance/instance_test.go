package instance

import (
	"testing"

	"github.com/nethercore-systems/nethercore-sub005/internal/capability"
	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
	"github.com/nethercore-systems/nethercore-sub005/internal/rng"
	"github.com/nethercore-systems/nethercore-sub005/internal/snapshot"
)

// newTestInstance builds an Instance with its host-state fields populated
// but no wazero module attached, enough to exercise capability.State and
// snapshot.Source methods that never touch inst.mod.
func newTestInstance() *Instance {
	return &Instance{
		phase:       capability.PhaseRunning,
		tickRate:    60,
		playerCount: 2,
		localMask:   1,
		rng:         rng.New(1),
		res:         capability.NewHandleTable(capability.Caps{}),
		warn:        func(*capability.Error) {},
		log:         func(string) {},
	}
}

func TestSaveLoadDeleteRoundTrip(t *testing.T) {
	inst := newTestInstance()

	if code := inst.Save(0, []byte("hello")); code != 0 {
		t.Fatalf("Save(0, ...) = %d, want 0", code)
	}
	if got := inst.Load(0); string(got) != "hello" {
		t.Fatalf("Load(0) = %q, want %q", got, "hello")
	}
	if code := inst.Delete(0); code != 0 {
		t.Fatalf("Delete(0) = %d, want 0", code)
	}
	if got := inst.Load(0); got != nil {
		t.Fatalf("Load(0) after Delete = %v, want nil", got)
	}
}

func TestSaveRejectsOutOfRangeSlot(t *testing.T) {
	inst := newTestInstance()
	if code := inst.Save(snapshot.SaveSlotCount, []byte("x")); code == 0 {
		t.Fatalf("Save with out-of-range slot should fail, got code 0")
	}
	if code := inst.Save(-1, []byte("x")); code == 0 {
		t.Fatalf("Save with negative slot should fail, got code 0")
	}
}

func TestSaveRejectsOversizedData(t *testing.T) {
	inst := newTestInstance()
	oversized := make([]byte, snapshot.SaveSlotMax+1)
	if code := inst.Save(0, oversized); code == 0 {
		t.Fatalf("Save with oversized payload should fail, got code 0")
	}
}

func TestSaveCopiesInputSlice(t *testing.T) {
	inst := newTestInstance()
	data := []byte("mutate-me")
	inst.Save(0, data)
	data[0] = 'X'
	if got := inst.Load(0); got[0] == 'X' {
		t.Fatalf("Load(0) reflects caller mutation after Save; Save must copy its input")
	}
}

func TestInputReportsOutOfRangeSlots(t *testing.T) {
	inst := newTestInstance()
	inst.inputCur[0] = protocol.InputFrame{Buttons: protocol.ButtonA}

	if _, ok := inst.Input(0); !ok {
		t.Fatalf("Input(0) should be valid for a 2-player instance")
	}
	if _, ok := inst.Input(2); ok {
		t.Fatalf("Input(2) should be invalid when playerCount is 2")
	}
	if _, ok := inst.Input(-1); ok {
		t.Fatalf("Input(-1) should be invalid")
	}
}

func TestSetTickRateInitOnlyEnforcesPhase(t *testing.T) {
	inst := newTestInstance()
	inst.phase = capability.PhaseInit

	if ok := inst.SetTickRateInitOnly(30); !ok {
		t.Fatalf("SetTickRateInitOnly(30) should succeed during init")
	}
	if inst.TickRate() != 30 {
		t.Fatalf("TickRate() = %d, want 30", inst.TickRate())
	}

	inst.phase = capability.PhaseRunning
	if ok := inst.SetTickRateInitOnly(60); ok {
		t.Fatalf("SetTickRateInitOnly after init phase should fail")
	}
	if inst.TickRate() != 30 {
		t.Fatalf("TickRate() changed after init phase, still want 30, got %d", inst.TickRate())
	}
}

func TestSetTickRateInitOnlyRejectsUnsupportedRate(t *testing.T) {
	inst := newTestInstance()
	inst.phase = capability.PhaseInit
	if ok := inst.SetTickRateInitOnly(50); ok {
		t.Fatalf("SetTickRateInitOnly(50) should fail, 50 is not an allowed tick rate")
	}
}

func TestSetClearColorInitOnlyEnforcesPhase(t *testing.T) {
	inst := newTestInstance()
	inst.phase = capability.PhaseInit
	if ok := inst.SetClearColorInitOnly(0xff0000ff); !ok {
		t.Fatalf("SetClearColorInitOnly should succeed during init")
	}
	inst.phase = capability.PhaseRunning
	if ok := inst.SetClearColorInitOnly(0x00ff00ff); ok {
		t.Fatalf("SetClearColorInitOnly after init phase should fail")
	}
	if inst.ClearColor() != 0xff0000ff {
		t.Fatalf("ClearColor() = %#x, want the init-phase value", inst.ClearColor())
	}
}

func TestMirrorRoundTripsRNGAndSaveSlots(t *testing.T) {
	inst := newTestInstance()
	inst.tick = 42
	inst.Save(1, []byte("slot-1"))
	inst.rng.Next()
	inst.rng.Next()

	snap := inst.Mirror()

	other := newTestInstance()
	other.SetMirror(snap)

	if other.TickCount() != 42 {
		t.Fatalf("TickCount() after SetMirror = %d, want 42", other.TickCount())
	}
	if string(other.Load(1)) != "slot-1" {
		t.Fatalf("Load(1) after SetMirror = %q, want %q", other.Load(1), "slot-1")
	}
	if inst.NextRandom() != other.NextRandom() {
		t.Fatalf("RNG streams diverged after Mirror/SetMirror round trip")
	}
}

func TestQuitRequested(t *testing.T) {
	inst := newTestInstance()
	if inst.QuitRequested() {
		t.Fatalf("QuitRequested() should be false initially")
	}
	inst.RequestQuit()
	if !inst.QuitRequested() {
		t.Fatalf("QuitRequested() should be true after RequestQuit()")
	}
}
