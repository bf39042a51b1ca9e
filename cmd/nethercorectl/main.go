// Command nethercorectl runs a local loopback harness: one peer per
// configured player slot is simulated in-process against the same guest
// module. Slot 0 takes its frames from an input.Handler, which receives
// no key events here, and every other slot sends zero frames, so the
// Rollback Session's prediction/reconciliation path can be exercised and
// watched without a second machine.
//
// It also optionally serves the debug inspector (Prometheus metrics and
// a WebSocket session-event feed) for local development.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nethercore-systems/nethercore-sub005/internal/capability"
	"github.com/nethercore-systems/nethercore-sub005/internal/config"
	"github.com/nethercore-systems/nethercore-sub005/internal/debug"
	"github.com/nethercore-systems/nethercore-sub005/internal/engine"
	"github.com/nethercore-systems/nethercore-sub005/internal/input"
	"github.com/nethercore-systems/nethercore-sub005/internal/instance"
	"github.com/nethercore-systems/nethercore-sub005/internal/logging"
	"github.com/nethercore-systems/nethercore-sub005/internal/loop"
	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
	"github.com/nethercore-systems/nethercore-sub005/internal/rollback"
	"github.com/nethercore-systems/nethercore-sub005/internal/session"
	"github.com/nethercore-systems/nethercore-sub005/internal/snapshot"
)

// Version is set at build time.
var Version = "dev"

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(cfg.LogLevel)
	log.Info("nethercorectl starting", "version", Version)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// peer bundles one player slot's Game Instance with the loopback
// harness's bookkeeping.
type peer struct {
	inst *instance.Instance
	rb   *rollback.Session
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.ModulePath == "" {
		return fmt.Errorf("nethercorectl: -module is required")
	}
	wasmBytes, err := os.ReadFile(cfg.ModulePath)
	if err != nil {
		return fmt.Errorf("nethercorectl: reading guest module: %w", err)
	}

	eng := engine.New(ctx, engine.Config{MemoryLimitPages: cfg.RAMCapBytes / (64 * 1024)})
	defer eng.Close(ctx)

	compiled, err := eng.Compile(wasmBytes)
	if err != nil {
		return fmt.Errorf("nethercorectl: compiling guest module: %w", err)
	}
	defer compiled.Close(ctx)

	caps := capability.Caps{MaxBytes: [4]uint32{16 * 1024 * 1024, 8 * 1024 * 1024, 4 * 1024 * 1024, 2 * 1024 * 1024}}

	registry := prometheus.NewRegistry()
	nonce, err := session.NewNonce()
	if err != nil {
		return fmt.Errorf("nethercorectl: generating session nonce: %w", err)
	}

	peers := make([]*peer, cfg.PlayerCount)
	for slot := 0; slot < cfg.PlayerCount; slot++ {
		warn := func(e *capability.Error) { logging.CapabilityWarn(log, e.Call, e.Message) }
		inst, err := instance.Load(ctx, eng, compiled, instance.Config{
			TickRate:    cfg.TickRate,
			PlayerCount: cfg.PlayerCount,
			LocalMask:   1 << uint(slot),
			Seed:        cfg.Seed,
			Caps:        caps,
		}, warn, func(msg string) { log.Info("guest log", "player", slot, "message", msg) })
		if err != nil {
			return fmt.Errorf("nethercorectl: loading instance for player %d: %w", slot, err)
		}
		defer inst.Close(ctx)

		snapMgr := snapshot.NewManager(cfg.RAMCapBytes, cfg.MaxPrediction+2, func(msg string) { logging.SnapshotWarn(log, msg) })
		metrics := rollback.NewMetrics(registry, fmt.Sprintf("%s-p%d", nonce, slot))
		rb := rollback.New(inst, snapMgr, rollback.Config{
			LocalPlayer:       slot,
			PlayerCount:       cfg.PlayerCount,
			InputDelay:        cfg.InputDelay,
			MaxPrediction:     cfg.MaxPrediction,
			DisconnectTimeout: cfg.DisconnectTimeout,
		}, metrics)
		peers[slot] = &peer{inst: inst, rb: rb}
	}

	var hub *debug.Hub
	if cfg.MetricsAddr != "" {
		hub = debug.NewHub(log)
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: debug.NewServer(hub, registry)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("debug inspector stopped", "error", err)
			}
		}()
		log.Info("debug inspector listening", "addr", cfg.MetricsAddr)
	}

	handler := input.NewHandler()

	l := loop.New(cfg.TickRate, func(ctx context.Context) error {
		return advanceLoopback(ctx, peers, handler, hub)
	}, func(ctx context.Context) error { return nil }, func() bool { return false },
		func(d loop.Diagnostic) { logging.SlowHost(log, d.BacklogTicks) })

	l.Start()
	ticker := time.NewTicker(time.Second / time.Duration(cfg.TickRate) / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
			if err := l.Advance(ctx); err != nil {
				return fmt.Errorf("nethercorectl: loop faulted: %w", err)
			}
			if peers[0].inst.QuitRequested() {
				log.Info("guest requested quit")
				return nil
			}
		}
	}
}

// advanceLoopback steps every in-process peer by one tick, exchanging
// their local input directly (no socket, since this is the in-process
// loopback harness) and broadcasting the tick over the debug hub.
func advanceLoopback(ctx context.Context, peers []*peer, handler *input.Handler, hub *debug.Hub) error {
	frames := make([]protocol.InputFrame, len(peers))
	for slot, p := range peers {
		if slot == 0 {
			frames[slot] = handler.Frame(p.rb.Tick())
		} else {
			frames[slot] = protocol.InputFrame{Tick: p.rb.Tick()}
		}
	}

	for slot, p := range peers {
		p.rb.LocalInput(frames[slot])
		for other := range peers {
			if other == slot {
				continue
			}
			if err := p.rb.ReceiveRemoteInput(ctx, other, frames[other].Tick, frames[other]); err != nil {
				return fmt.Errorf("player %d receiving player %d's input: %w", slot, other, err)
			}
		}
		if err := p.rb.AdvanceTick(ctx); err != nil {
			return fmt.Errorf("player %d: %w", slot, err)
		}
		render := p.rb.DrainRenderCommands()
		audio := p.rb.DrainAudioCommands()
		if hub != nil {
			for _, ev := range p.rb.Events() {
				hub.Broadcast("rollback:event", map[string]any{"player": slot, "event": ev.String()})
			}
			if len(render) > 0 || len(audio) > 0 {
				hub.Broadcast("rollback:commands", map[string]any{"player": slot, "render": len(render), "audio": len(audio)})
			}
		}
	}
	return nil
}
