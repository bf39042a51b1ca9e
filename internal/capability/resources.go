// resources.go implements the monotonic handle table backing
// textures/meshes/sounds/fonts: opaque 32-bit non-zero integers
// allocated monotonically, handle 0 reserved/invalid.
//
// Built on ark-ecs (world.Query() / query.Next() / query.Get()): here
// the *handles themselves* are ark entities, and the resource's
// accounting (kind, byte cost, liveness) is an ark component. Iterating
// resources for cap enforcement or for "notify the renderer to upload
// new bytes" goes through an ark filter, which visits entities in
// creation order — never Go map order — so no host-exposed iteration
// order can depend on address-space layout or hash order.
package capability

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
)

// ResourceKind distinguishes the four handle namespaces. Each namespace
// has its own monotonic counter and its own console-specific cap (I5).
type ResourceKind uint8

const (
	ResourceTexture ResourceKind = iota
	ResourceMesh
	ResourceSound
	ResourceFont
	resourceKindCount
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceTexture:
		return "texture"
	case ResourceMesh:
		return "mesh"
	case ResourceSound:
		return "sound"
	case ResourceFont:
		return "font"
	default:
		return "unknown"
	}
}

// resource is the ark component tracking one allocated handle.
type resource struct {
	Handle uint32
	Kind   ResourceKind
	Bytes  uint32 // cost against the kind's cap, e.g. texture bytes
	Live   bool   // false once freed; the handle itself is never reused
}

// Caps bounds how many bytes of each resource kind a guest may hold
// live simultaneously, per console profile (I5).
type Caps struct {
	MaxBytes [resourceKindCount]uint32
}

// HandleTable allocates and tracks opaque resource handles. Since the
// guest can observe handle IDs, its monotonic counters are included in
// the host mirror by the owning Game Instance.
type HandleTable struct {
	world   ecs.World
	mapper  ecs.Map1[resource]
	filter  *ecs.Filter1[resource]
	byIndex map[uint32]ecs.Entity

	next  [resourceKindCount]uint32
	used  [resourceKindCount]uint32
	caps  Caps
}

// NewHandleTable creates an empty table under the given caps.
func NewHandleTable(caps Caps) *HandleTable {
	w := ecs.NewWorld()
	t := &HandleTable{
		world:   w,
		mapper:  ecs.NewMap1[resource](&w),
		byIndex: make(map[uint32]ecs.Entity),
		caps:    caps,
	}
	t.filter = ecs.NewFilter1[resource](&t.world)
	for k := range t.next {
		t.next[k] = 1 // handle 0 is reserved/invalid
	}
	return t
}

// Allocate reserves the next handle for kind, charging byteCost against
// that kind's cap. Returns 0 (ResourceExhaustion, non-fatal) if the
// allocation would exceed the cap.
func (t *HandleTable) Allocate(kind ResourceKind, byteCost uint32) (uint32, error) {
	total, ok := checkedAdd(t.used[kind], byteCost)
	if !ok || total > t.caps.MaxBytes[kind] {
		return 0, &Error{
			Kind:    KindResourceExhaustion,
			Call:    fmt.Sprintf("alloc_%s", kind),
			Message: fmt.Sprintf("would exceed %s cap of %d bytes", kind, t.caps.MaxBytes[kind]),
		}
	}
	handle := t.next[kind]
	t.next[kind]++
	t.used[kind] = total

	entity := t.mapper.NewEntity(&resource{Handle: handle, Kind: kind, Bytes: byteCost, Live: true})
	t.byIndex[handle] = entity
	return handle, nil
}

// Free releases a handle, returning its bytes to the kind's cap. Freeing
// an unknown or already-free handle is a no-op (CapabilityMisuse,
// non-fatal), matching the "ignore and warn" policy for soft
// capability misuse elsewhere in the surface.
func (t *HandleTable) Free(handle uint32) bool {
	entity, ok := t.byIndex[handle]
	if !ok {
		return false
	}
	res := t.mapper.Get(entity)
	if !res.Live {
		return false
	}
	t.used[res.Kind] -= res.Bytes
	res.Live = false
	return true
}

// LiveHandles returns every currently-live handle of the given kind, in
// creation order — the only order the guest or an external renderer may
// ever observe.
func (t *HandleTable) LiveHandles(kind ResourceKind) []uint32 {
	var out []uint32
	query := t.filter.Query()
	for query.Next() {
		res := query.Get()
		if res.Kind == kind && res.Live {
			out = append(out, res.Handle)
		}
	}
	query.Close()
	return out
}

// Counters returns the per-kind monotonic next-handle counters, for
// inclusion in the host mirror.
func (t *HandleTable) Counters() [resourceKindCount]uint32 {
	return t.next
}

// checkedAdd returns a+b and true, or 0 and false on overflow. A guest
// can pass a byteCost near 2^32, and used[kind]+byteCost must never be
// allowed to wrap past the cap check silently.
func checkedAdd(a, b uint32) (uint32, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// RestoreCounters resets the monotonic counters on rollback. It does not
// resurrect freed handles — callers restore the full live/free set by
// replaying Allocate/Free against a freshly restored Game Instance, the
// same way every other piece of guest-observable state is reproduced by
// resimulation rather than by a second code path.
func (t *HandleTable) RestoreCounters(counters [resourceKindCount]uint32) {
	t.next = counters
}
