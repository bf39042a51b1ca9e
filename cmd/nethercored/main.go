// Command nethercored is a headless peer host: it loads a guest
// WebAssembly module, joins a rollback netcode session with one or more
// remote peers over UDP, and runs the Deterministic Loop until the
// guest calls quit(), a remote peer disconnects, or a desync is detected.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nethercore-systems/nethercore-sub005/internal/capability"
	"github.com/nethercore-systems/nethercore-sub005/internal/config"
	"github.com/nethercore-systems/nethercore-sub005/internal/engine"
	"github.com/nethercore-systems/nethercore-sub005/internal/instance"
	"github.com/nethercore-systems/nethercore-sub005/internal/logging"
	"github.com/nethercore-systems/nethercore-sub005/internal/loop"
	"github.com/nethercore-systems/nethercore-sub005/internal/network"
	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
	"github.com/nethercore-systems/nethercore-sub005/internal/rollback"
	"github.com/nethercore-systems/nethercore-sub005/internal/session"
	"github.com/nethercore-systems/nethercore-sub005/internal/snapshot"

	"github.com/prometheus/client_golang/prometheus"
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
	log.Info("nethercored starting", "version", Version, "listen", cfg.ListenAddr)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.ModulePath == "" {
		return fmt.Errorf("nethercored: -module is required")
	}
	wasmBytes, err := os.ReadFile(cfg.ModulePath)
	if err != nil {
		return fmt.Errorf("nethercored: reading guest module: %w", err)
	}

	eng := engine.New(ctx, engine.Config{MemoryLimitPages: cfg.RAMCapBytes / (64 * 1024)})
	defer eng.Close(ctx)

	compiled, err := eng.Compile(wasmBytes)
	if err != nil {
		return fmt.Errorf("nethercored: compiling guest module: %w", err)
	}
	defer compiled.Close(ctx)

	caps := capability.Caps{MaxBytes: [4]uint32{
		16 * 1024 * 1024, // textures
		8 * 1024 * 1024,  // meshes
		4 * 1024 * 1024,  // sounds
		2 * 1024 * 1024,  // fonts
	}}

	warn := func(e *capability.Error) { logging.CapabilityWarn(log, e.Call, e.Message) }
	inst, err := instance.Load(ctx, eng, compiled, instance.Config{
		TickRate:    cfg.TickRate,
		PlayerCount: cfg.PlayerCount,
		LocalMask:   1 << uint(cfg.LocalPlayer),
		Seed:        cfg.Seed,
		Caps:        caps,
	}, warn, func(msg string) { log.Info("guest log", "message", msg) })
	if err != nil {
		return fmt.Errorf("nethercored: loading guest instance: %w", err)
	}
	defer inst.Close(ctx)

	snapMgr := snapshot.NewManager(cfg.RAMCapBytes, cfg.MaxPrediction+2, func(msg string) { logging.SnapshotWarn(log, msg) })

	registry := prometheus.NewRegistry()
	nonce, err := session.NewNonce()
	if err != nil {
		return fmt.Errorf("nethercored: generating session nonce: %w", err)
	}
	metrics := rollback.NewMetrics(registry, nonce)
	log.Info("session nonce generated", "nonce", nonce)

	rb := rollback.New(inst, snapMgr, rollback.Config{
		LocalPlayer:       cfg.LocalPlayer,
		PlayerCount:       cfg.PlayerCount,
		InputDelay:        cfg.InputDelay,
		MaxPrediction:     cfg.MaxPrediction,
		DisconnectTimeout: cfg.DisconnectTimeout,
	}, metrics)

	transport := network.NewUDPTransport(cfg.InboundRateLimit, cfg.InboundBurst)
	if err := transport.Open(cfg.ListenAddr); err != nil {
		return fmt.Errorf("nethercored: opening transport: %w", err)
	}
	defer transport.Close()

	peers := make([]*network.SequencedConnection, 0, len(cfg.PeerAddrs))
	peerSlots := make([]int, 0, len(cfg.PeerAddrs))
	for i, addr := range cfg.PeerAddrs {
		conn, err := transport.Dial(addr)
		if err != nil {
			return fmt.Errorf("nethercored: dialing peer %d (%s): %w", i, addr, err)
		}
		peers = append(peers, network.NewSequencedConnection(conn))
		// Remote player slots are every slot except this peer's own local
		// one, assigned in address order; a real deployment negotiates
		// this explicitly during the handshake rather than by position.
		slot := i
		if slot >= cfg.LocalPlayer {
			slot++
		}
		peerSlots = append(peerSlots, slot)
	}
	go func() {
		if err := transport.Serve(); err != nil {
			log.Warn("transport serve stopped", "error", err)
		}
	}()

	local := protocol.Handshake{
		Version:       1,
		SessionNonce:  nonce,
		TickRate:      cfg.TickRate,
		PlayerCount:   cfg.PlayerCount,
		LocalMask:     uint8(1 << uint(cfg.LocalPlayer)),
		InputDelay:    cfg.InputDelay,
		MaxPrediction: cfg.MaxPrediction,
		FuelBudget:    cfg.FuelBudget,
		Seed:          cfg.Seed,
	}
	for i, peer := range peers {
		if err := exchangeHandshake(peer, local, log); err != nil {
			return fmt.Errorf("nethercored: handshake with peer %d (%s): %w", i, cfg.PeerAddrs[i], err)
		}
	}

	for i, peer := range peers {
		go receiveLoop(ctx, peer, peerSlots[i], rb, log)
	}

	l := loop.New(cfg.TickRate, func(ctx context.Context) error {
		localFrame := protocol.InputFrame{Tick: rb.Tick()}
		rb.LocalInput(localFrame)
		if err := rb.AdvanceTick(ctx); err != nil {
			return err
		}
		for _, ev := range rb.Events() {
			logging.RollbackEvent(log, ev.Kind.String(), "player", ev.Player, "tick", ev.Tick, "delta", ev.Delta)
			if ev.Kind == rollback.EventDesync {
				return fmt.Errorf("desync at tick %d", ev.Tick)
			}
		}
		if render := rb.DrainRenderCommands(); len(render) > 0 {
			log.Debug("render commands emitted", "count", len(render))
		}
		if audio := rb.DrainAudioCommands(); len(audio) > 0 {
			log.Debug("audio commands emitted", "count", len(audio))
		}
		if msg, ok := rb.LastChecksum(); ok {
			broadcastChecksum(peers, msg)
		}
		broadcastInput(peers, localFrame)
		return nil
	}, func(ctx context.Context) error {
		// Resimulation is folded into AdvanceTick/ReceiveRemoteInput; the
		// loop's RollingBack state is entered only when rollback.Session
		// reports work still pending after a tick boundary, which this
		// session design resolves synchronously inside ReceiveRemoteInput.
		return nil
	}, func() bool { return false }, func(d loop.Diagnostic) { logging.SlowHost(log, d.BacklogTicks) })

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
				return fmt.Errorf("nethercored: loop faulted: %w", err)
			}
			for _, ev := range rb.CheckDisconnects(time.Now()) {
				logging.RollbackEvent(log, ev.Kind.String(), "player", ev.Player)
				if ev.Kind == rollback.EventDisconnected {
					return fmt.Errorf("nethercored: player %d disconnected", ev.Player)
				}
			}
			if inst.QuitRequested() {
				log.Info("guest requested quit")
				return nil
			}
		}
	}
}

func broadcastInput(peers []*network.SequencedConnection, frame protocol.InputFrame) {
	enc := frame.Encode()
	for _, peer := range peers {
		_ = peer.Send(enc[:])
	}
}

// broadcastChecksum sends msg to every peer for mutual desync detection;
// Session.ReceiveChecksum on the far end compares it against that peer's
// own checksum for the same tick.
func broadcastChecksum(peers []*network.SequencedConnection, msg protocol.ChecksumMessage) {
	enc := msg.Encode()
	for _, peer := range peers {
		_ = peer.Send(enc[:])
	}
}

// exchangeHandshake sends local's handshake to conn and blocks for the
// peer's own, verifying the netcode constants every peer MUST agree on
// (tick rate, player count, input delay, max prediction) before a single
// tick is simulated. The session nonce itself is exchanged for log
// correlation across peers, not as a cryptographic identity check: each
// peer generates its own nonce independently, so equality is not
// expected or enforced.
func exchangeHandshake(conn *network.SequencedConnection, local protocol.Handshake, log *slog.Logger) error {
	enc := local.Encode()
	if err := conn.Send(enc[:]); err != nil {
		return fmt.Errorf("sending handshake: %w", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("setting handshake deadline: %w", err)
	}
	msg, err := conn.Recv()
	if err != nil {
		return fmt.Errorf("receiving handshake: %w", err)
	}
	if len(msg) != protocol.HandshakeSize {
		return fmt.Errorf("handshake reply was %d bytes, want %d", len(msg), protocol.HandshakeSize)
	}
	var raw [protocol.HandshakeSize]byte
	copy(raw[:], msg)
	remote := protocol.DecodeHandshake(raw)
	if remote.TickRate != local.TickRate || remote.PlayerCount != local.PlayerCount ||
		remote.InputDelay != local.InputDelay || remote.MaxPrediction != local.MaxPrediction {
		return fmt.Errorf("peer session config mismatch: got tick-rate=%d players=%d input-delay=%d max-prediction=%d, want tick-rate=%d players=%d input-delay=%d max-prediction=%d",
			remote.TickRate, remote.PlayerCount, remote.InputDelay, remote.MaxPrediction,
			local.TickRate, local.PlayerCount, local.InputDelay, local.MaxPrediction)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clearing handshake deadline: %w", err)
	}
	log.Info("handshake confirmed", "remote", conn.RemoteAddr(), "peer_nonce", remote.SessionNonce)
	return nil
}

func receiveLoop(ctx context.Context, peer *network.SequencedConnection, player int, rb *rollback.Session, log *slog.Logger) {
	for {
		msg, err := peer.Recv()
		if err != nil {
			log.Warn("peer recv failed", "remote", peer.RemoteAddr(), "error", err)
			return
		}
		switch len(msg) {
		case protocol.InputFrameSize:
			var raw [protocol.InputFrameSize]byte
			copy(raw[:], msg)
			frame := protocol.DecodeInputFrame(raw)
			if err := rb.ReceiveRemoteInput(ctx, player, frame.Tick, frame); err != nil {
				log.Warn("rollback desync", "error", err)
			}
		case protocol.ChecksumMessageSize:
			var raw [protocol.ChecksumMessageSize]byte
			copy(raw[:], msg)
			rb.ReceiveChecksum(player, protocol.DecodeChecksumMessage(raw))
		}
	}
}
