package capability

import "testing"

func testCaps() Caps {
	return Caps{MaxBytes: [resourceKindCount]uint32{
		ResourceTexture: 100,
		ResourceMesh:    100,
		ResourceSound:   100,
		ResourceFont:    100,
	}}
}

func TestAllocateStartsAtHandleOne(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	handle, err := tbl.Allocate(ResourceTexture, 10)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if handle != 1 {
		t.Fatalf("first handle = %d, want 1 (0 is reserved/invalid)", handle)
	}
}

func TestAllocateMonotonicAcrossKinds(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	tex1, _ := tbl.Allocate(ResourceTexture, 1)
	tex2, _ := tbl.Allocate(ResourceTexture, 1)
	mesh1, _ := tbl.Allocate(ResourceMesh, 1)

	if tex2 != tex1+1 {
		t.Fatalf("second texture handle = %d, want %d", tex2, tex1+1)
	}
	if mesh1 != 1 {
		t.Fatalf("mesh handle = %d, want 1 (each kind has its own counter)", mesh1)
	}
}

func TestAllocateRejectsOverCap(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	if _, err := tbl.Allocate(ResourceSound, 101); err == nil {
		t.Fatalf("expected a ResourceExhaustion error allocating over the cap")
	}
}

func TestAllocateRejectsByteCostOverflow(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	if _, err := tbl.Allocate(ResourceTexture, 1); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	// used[Texture] is now 1; a byteCost near 2^32 would wrap
	// used+byteCost past zero under unchecked uint32 addition, passing
	// the cap check it should fail.
	if _, err := tbl.Allocate(ResourceTexture, 0xFFFFFFFF); err == nil {
		t.Fatalf("Allocate with an overflowing byteCost should report ResourceExhaustion, not wrap past the cap")
	}
}

func TestAllocateExactlyAtCapSucceeds(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	if _, err := tbl.Allocate(ResourceFont, 100); err != nil {
		t.Fatalf("Allocate exactly at cap should succeed: %v", err)
	}
}

func TestFreeReturnsBytesToCapAndHandleIsNeverReused(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	h1, _ := tbl.Allocate(ResourceTexture, 60)
	if _, err := tbl.Allocate(ResourceTexture, 60); err == nil {
		t.Fatalf("second allocation of 60 bytes against a 100-byte cap should fail before freeing")
	}
	if ok := tbl.Free(h1); !ok {
		t.Fatalf("Free(%d) should succeed for a live handle", h1)
	}
	h2, err := tbl.Allocate(ResourceTexture, 60)
	if err != nil {
		t.Fatalf("Allocate after Free should succeed: %v", err)
	}
	if h2 == h1 {
		t.Fatalf("a freed handle must never be reused, got %d twice", h1)
	}
}

func TestFreeUnknownHandleIsNoop(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	if ok := tbl.Free(999); ok {
		t.Fatalf("Free of an unknown handle should report false")
	}
}

func TestFreeAlreadyFreedHandleIsNoop(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	h, _ := tbl.Allocate(ResourceMesh, 5)
	tbl.Free(h)
	if ok := tbl.Free(h); ok {
		t.Fatalf("Free of an already-freed handle should report false")
	}
}

func TestLiveHandlesExcludesFreedAndOtherKinds(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	a, _ := tbl.Allocate(ResourceTexture, 1)
	b, _ := tbl.Allocate(ResourceTexture, 1)
	tbl.Allocate(ResourceMesh, 1)
	tbl.Free(a)

	live := tbl.LiveHandles(ResourceTexture)
	if len(live) != 1 || live[0] != b {
		t.Fatalf("LiveHandles(Texture) = %v, want only [%d]", live, b)
	}
}

func TestCheckedAddNormalSum(t *testing.T) {
	got, ok := checkedAdd(10, 20)
	if !ok || got != 30 {
		t.Fatalf("checkedAdd(10, 20) = (%d, %v), want (30, true)", got, ok)
	}
}

func TestCheckedAddOverflow(t *testing.T) {
	if _, ok := checkedAdd(10, 0xFFFFFFFF); ok {
		t.Fatalf("checkedAdd(10, 0xFFFFFFFF) should overflow uint32 and report false")
	}
}

func TestCountersRoundTripThroughRestore(t *testing.T) {
	tbl := NewHandleTable(testCaps())
	tbl.Allocate(ResourceTexture, 1)
	tbl.Allocate(ResourceTexture, 1)
	before := tbl.Counters()

	other := NewHandleTable(testCaps())
	other.RestoreCounters(before)
	if other.Counters() != before {
		t.Fatalf("Counters() after RestoreCounters = %v, want %v", other.Counters(), before)
	}

	next, err := other.Allocate(ResourceTexture, 1)
	if err != nil {
		t.Fatalf("Allocate after RestoreCounters: %v", err)
	}
	if next != before[ResourceTexture] {
		t.Fatalf("next handle after restore = %d, want %d (continuing the monotonic sequence)", next, before[ResourceTexture])
	}
}
