// host.go registers the fixed capability-surface function catalogue as
// a wazero host module. Every function that touches guest memory
// bounds-checks the pointer/length pair itself before reading or
// writing; integer products used as lengths go through checkedMul so an
// overflowing width*height*4-style computation no-ops with a warning
// instead of wrapping.
package capability

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
)

// HostModuleName is the import namespace the guest ABI expects the
// capability surface to live under.
const HostModuleName = "env"

// Register builds and instantiates the host module backing st. Callers
// instantiate the returned module before instantiating the guest, so the
// guest's "env" imports resolve against it.
func Register(ctx context.Context, rt wazero.Runtime, st State) (api.Module, error) {
	b := rt.NewHostModuleBuilder(HostModuleName)

	exportFunc(b, "delta_time", []api.ValueType{}, []api.ValueType{api.ValueTypeF32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeF32(st.DeltaTime())
		})

	exportFunc(b, "elapsed_time", []api.ValueType{}, []api.ValueType{api.ValueTypeF32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeF32(st.ElapsedTime())
		})

	exportFunc(b, "tick_count", []api.ValueType{}, []api.ValueType{api.ValueTypeI64},
		func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = st.TickCount()
		})

	exportFunc(b, "player_count", []api.ValueType{}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(st.PlayerCount())
		})

	exportFunc(b, "local_player_mask", []api.ValueType{}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(st.LocalPlayerMask())
		})

	exportFunc(b, "random", []api.ValueType{}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(st.NextRandom())
		})

	exportFunc(b, "log", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil,
		func(_ context.Context, mod api.Module, stack []uint64) {
			ptr, length := uint32(stack[0]), uint32(stack[1])
			data, ok := mod.Memory().Read(ptr, length)
			if !ok {
				panic(&Error{Kind: KindGuestMemoryFault, Call: "log", Message: "out-of-bounds message"})
			}
			st.Log(string(data))
		})

	exportFunc(b, "quit", nil, nil,
		func(_ context.Context, _ api.Module, _ []uint64) {
			st.RequestQuit()
		})

	exportFunc(b, "save", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, mod api.Module, stack []uint64) {
			slot, ptr, length := int32(stack[0]), uint32(stack[1]), uint32(stack[2])
			data, ok := mod.Memory().Read(ptr, length)
			if !ok {
				panic(&Error{Kind: KindGuestMemoryFault, Call: "save", Message: "out-of-bounds buffer"})
			}
			stack[0] = uint64(uint32(int32(st.Save(int(slot), data))))
		})

	exportFunc(b, "load", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, mod api.Module, stack []uint64) {
			slot, ptr, max := int32(stack[0]), uint32(stack[1]), uint32(stack[2])
			data := st.Load(int(slot))
			if uint32(len(data)) > max {
				data = data[:max]
			}
			if len(data) > 0 {
				if !mod.Memory().Write(ptr, data) {
					panic(&Error{Kind: KindGuestMemoryFault, Call: "load", Message: "out-of-bounds destination buffer"})
				}
			}
			stack[0] = uint64(uint32(len(data)))
		})

	exportFunc(b, "delete", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			slot := int32(stack[0])
			stack[0] = uint64(uint32(int32(st.Delete(int(slot)))))
		})

	exportFunc(b, "input_digital", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			player := int32(stack[0])
			frame, ok := st.Input(int(player))
			if !ok {
				st.Warn(&Error{Kind: KindCapabilityMisuse, Call: "input_digital", Message: "player slot inactive"})
				stack[0] = 0
				return
			}
			stack[0] = uint64(uint32(frame.Buttons))
		})

	exportFunc(b, "input_analog", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeF32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			player, axis := int32(stack[0]), int32(stack[1])
			frame, ok := st.Input(int(player))
			if !ok {
				st.Warn(&Error{Kind: KindCapabilityMisuse, Call: "input_analog", Message: "player slot inactive"})
				stack[0] = api.EncodeF32(0)
				return
			}
			stack[0] = api.EncodeF32(analogAxis(frame, int(axis)))
		})

	exportFunc(b, "render_command", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil,
		func(_ context.Context, mod api.Module, stack []uint64) {
			appendCommand(mod, stack, st.AppendRenderCommand, "render_command")
		})

	exportFunc(b, "audio_command", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil,
		func(_ context.Context, mod api.Module, stack []uint64) {
			appendCommand(mod, stack, st.AppendAudioCommand, "audio_command")
		})

	exportFunc(b, "alloc_texture", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			allocateResource(st, stack, ResourceTexture)
		})

	exportFunc(b, "alloc_mesh", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			allocateResource(st, stack, ResourceMesh)
		})

	exportFunc(b, "alloc_sound", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			allocateResource(st, stack, ResourceSound)
		})

	exportFunc(b, "alloc_font", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			allocateResource(st, stack, ResourceFont)
		})

	exportFunc(b, "free_resource", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			handle := uint32(stack[0])
			if st.Resources().Free(handle) {
				stack[0] = 1
			} else {
				st.Warn(&Error{Kind: KindCapabilityMisuse, Call: "free_resource", Message: "unknown or already-free handle"})
				stack[0] = 0
			}
		})

	exportFunc(b, "set_tick_rate", []api.ValueType{api.ValueTypeI32}, nil,
		func(_ context.Context, _ api.Module, stack []uint64) {
			hz := int32(stack[0])
			if !st.SetTickRateInitOnly(int(hz)) {
				st.Warn(&Error{Kind: KindCapabilityMisuse, Call: "set_tick_rate", Message: "called outside init"})
			}
		})

	exportFunc(b, "set_clear_color", []api.ValueType{api.ValueTypeI32}, nil,
		func(_ context.Context, _ api.Module, stack []uint64) {
			rgba := uint32(stack[0])
			if !st.SetClearColorInitOnly(rgba) {
				st.Warn(&Error{Kind: KindCapabilityMisuse, Call: "set_clear_color", Message: "called outside init"})
			}
		})

	return b.Instantiate(ctx)
}

// exportFunc registers a single low-level, stack-based host function —
// the form wazero requires when a function needs direct api.Module
// access (memory reads/writes), as opposed to the reflection-based
// WithFunc form used for plain scalar-in/scalar-out calls elsewhere in
// the ecosystem.
func exportFunc(b wazero.HostModuleBuilder, name string, params, results []api.ValueType, fn api.GoModuleFunc) {
	b.NewFunctionBuilder().
		WithGoModuleFunction(fn, params, results).
		Export(name)
}

// axisIndex selects one of an InputFrame's six analog fields. The order
// (left stick x/y, right stick x/y, left trigger, right trigger) is the
// fixed, content-independent encoding every guest build agrees on.
const (
	axisStickLX = iota
	axisStickLY
	axisStickRX
	axisStickRY
	axisTrigL
	axisTrigR
)

// analogAxis converts the requested analog channel of frame to the
// guest-observable f32 range the capability surface documents.
func analogAxis(frame protocol.InputFrame, axis int) float32 {
	switch axis {
	case axisStickLX:
		return protocol.StickF32(frame.StickLX)
	case axisStickLY:
		return protocol.StickF32(frame.StickLY)
	case axisStickRX:
		return protocol.StickF32(frame.StickRX)
	case axisStickRY:
		return protocol.StickF32(frame.StickRY)
	case axisTrigL:
		return protocol.TriggerF32(frame.TrigL)
	case axisTrigR:
		return protocol.TriggerF32(frame.TrigR)
	default:
		return 0
	}
}

// checkedMul returns a*b and true, or 0 and false on overflow. Used
// anywhere a guest-supplied width*height*4-style product becomes a
// buffer length: overflow must no-op with a warning, never wrap.
func checkedMul(a, b uint32) (uint32, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := uint64(a) * uint64(b)
	if product > math.MaxUint32 {
		return 0, false
	}
	return uint32(product), true
}

// appendCommand reads a (ptr, length) guest buffer and hands a copy to
// append. Used by both render_command and audio_command, which share
// the identical bounds-checked append-only contract.
func appendCommand(mod api.Module, stack []uint64, appendFn func([]byte), call string) {
	ptr, length := uint32(stack[0]), uint32(stack[1])
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		panic(&Error{Kind: KindGuestMemoryFault, Call: call, Message: "out-of-bounds command buffer"})
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	appendFn(cp)
}

// allocateResource runs a single-byteCost-argument allocation call
// (alloc_texture/alloc_mesh/alloc_sound/alloc_font), writing the
// resulting handle (0 on exhaustion) back to the stack.
func allocateResource(st State, stack []uint64, kind ResourceKind) {
	byteCost := uint32(stack[0])
	handle, err := st.Resources().Allocate(kind, byteCost)
	if err != nil {
		if capErr, ok := err.(*Error); ok {
			st.Warn(capErr)
		}
		stack[0] = 0
		return
	}
	stack[0] = uint64(handle)
}
