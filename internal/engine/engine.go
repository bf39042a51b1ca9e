// Package engine implements the Guest Engine: one shared wazero runtime
// per process that compiles guest WebAssembly modules once and lets
// them be instantiated repeatedly across Game Instances.
//
// Built directly on wazero's public RuntimeConfig/api.Module surface,
// the only pure-Go, CGO-free WebAssembly runtime suited to sandboxing an
// untrusted guest deterministically.
package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Kind enumerates the Guest Engine's fatal load failure modes.
type Kind int

const (
	// KindModuleInvalid means the module bytes failed to decode/validate.
	KindModuleInvalid Kind = iota
	// KindLinkError means a required import could not be resolved.
	KindLinkError
	// KindInstantiationFailed means a host resource (memory, table) could
	// not be allocated for the new instance.
	KindInstantiationFailed
)

func (k Kind) String() string {
	switch k {
	case KindModuleInvalid:
		return "ModuleInvalid"
	case KindLinkError:
		return "LinkError"
	case KindInstantiationFailed:
		return "InstantiationFailed"
	default:
		return "UnknownLoadError"
	}
}

// LoadError wraps a Guest Engine failure with its Kind so callers can
// distinguish fatal-for-this-load conditions.
type LoadError struct {
	Kind Kind
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Config pins the deterministic compilation settings every peer must
// agree on: bulk memory enabled, SIMD left out unless the console
// profile's guest ABI standardises it, no non-deterministic floating
// point transforms.
type Config struct {
	// MemoryLimitPages overrides wazero's default 65536-page (4GiB) cap,
	// matching a console's declared RAM budget. 0 means "use wazero's
	// default".
	MemoryLimitPages uint32
	// EnableSIMD must only be set true when every peer's build of the
	// engine agrees. protocol.Handshake does not carry it, so peers do
	// not check each other's setting.
	EnableSIMD bool
}

// CompiledModule is a reusable, process-wide compiled module. The same
// CompiledModule can back any number of concurrently live Game
// Instances.
type CompiledModule struct {
	mod wazero.CompiledModule
}

// Engine owns the single wazero.Runtime for the process. It is created
// once at process start and destroyed at process end.
type Engine struct {
	runtime wazero.Runtime
	ctx     context.Context
}

// New builds the shared compilation engine.
func New(ctx context.Context, cfg Config) *Engine {
	features := api.CoreFeaturesV2
	if !cfg.EnableSIMD {
		features = features.SetEnabled(api.CoreFeatureSIMD, false)
	}
	rc := wazero.NewRuntimeConfig().
		WithCoreFeatures(features).
		WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, rc),
		ctx:     ctx,
	}
}

// Runtime exposes the underlying wazero.Runtime so the Capability
// Surface can register the host module against it.
func (e *Engine) Runtime() wazero.Runtime { return e.runtime }

// Context is the engine-wide context passed to wazero calls. The core
// never uses it for cancellation mid-tick (§5); it exists because
// wazero's API requires one.
func (e *Engine) Context() context.Context { return e.ctx }

// Compile decodes and validates guest module bytes, producing a handle
// reusable across Game Instances. Decode/validate failures map to
// ModuleInvalid.
func (e *Engine) Compile(bytes []byte) (*CompiledModule, error) {
	mod, err := e.runtime.CompileModule(e.ctx, bytes)
	if err != nil {
		return nil, &LoadError{Kind: KindModuleInvalid, Err: err}
	}
	return &CompiledModule{mod: mod}, nil
}

// Close releases the compiled module's native code cache entry. Safe to
// call after every Game Instance backed by it has been closed.
func (c *CompiledModule) Close(ctx context.Context) error {
	return c.mod.Close(ctx)
}

// Wazero exposes the wrapped wazero.CompiledModule for the instance
// package's Instantiate call.
func (c *CompiledModule) Wazero() wazero.CompiledModule { return c.mod }

// Close shuts down the runtime, releasing every compiled module's native
// code. Called once at process end.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
