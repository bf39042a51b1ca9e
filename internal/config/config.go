// Package config parses the session-wide settings every peer's process
// needs at startup, built from plain flag.* calls rather than a
// third-party CLI framework — no third-party flag-parsing library is
// warranted here, so the standard library's flag package carries the
// whole surface.
package config

import (
	"flag"
	"fmt"
	"time"
)

// peerAddrList collects repeated -peer flags into a slice, the
// flag.Value idiom for a flag that may be given more than once.
type peerAddrList []string

func (p *peerAddrList) String() string { return fmt.Sprint([]string(*p)) }
func (p *peerAddrList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// Config holds one peer's session-wide configuration: console profile
// constants plus process-local settings (listen address, log level).
type Config struct {
	ModulePath string
	PeerAddrs  peerAddrList

	ListenAddr    string
	TickRate      int
	PlayerCount   int
	LocalPlayer   int
	InputDelay    int
	MaxPrediction int
	RAMCapBytes   uint32
	FuelBudget    uint64
	Seed          uint64

	DisconnectTimeout time.Duration
	InboundRateLimit  float64
	InboundBurst      int

	MetricsAddr string
	LogLevel    string
}

// Parse builds a Config from command-line flags. args excludes the
// program name (pass os.Args[1:]).
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("nethercore", flag.ContinueOnError)

	cfg := &Config{}
	fs.StringVar(&cfg.ModulePath, "module", "", "path to the guest WebAssembly module")
	fs.Var(&cfg.PeerAddrs, "peer", "remote peer UDP address; repeat once per remote peer")
	fs.StringVar(&cfg.ListenAddr, "listen", ":7777", "local UDP listen address")
	fs.IntVar(&cfg.TickRate, "tick-rate", 60, "simulation tick rate in Hz (24, 30, 60, or 120)")
	fs.IntVar(&cfg.PlayerCount, "players", 2, "number of player slots in this session (1-4)")
	fs.IntVar(&cfg.LocalPlayer, "local-player", 0, "this peer's local player slot index")
	fs.IntVar(&cfg.InputDelay, "input-delay", 2, "ticks of deliberate local input latency")
	fs.IntVar(&cfg.MaxPrediction, "max-prediction", 8, "maximum ticks a remote input may be predicted ahead")
	ramCapMB := fs.Int("ram-cap-mb", 16, "guest linear memory cap, in mebibytes")
	fs.Uint64Var(&cfg.FuelBudget, "fuel-budget", 0, "fuel budget advertised in the handshake; no fuel metering is applied")
	fs.Uint64Var(&cfg.Seed, "seed", 1, "session-wide deterministic RNG seed")
	fs.DurationVar(&cfg.DisconnectTimeout, "disconnect-timeout", 10*time.Second, "peer silence duration before a Disconnected event fires")
	fs.Float64Var(&cfg.InboundRateLimit, "inbound-rate", 240, "inbound datagrams per second allowed across all peers")
	fs.IntVar(&cfg.InboundBurst, "inbound-burst", 32, "inbound datagram burst allowance")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "debug inspector listen address (empty disables it)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.TickRate {
	case 24, 30, 60, 120:
	default:
		return nil, fmt.Errorf("config: tick-rate must be one of 24, 30, 60, 120, got %d", cfg.TickRate)
	}
	if cfg.PlayerCount < 1 || cfg.PlayerCount > 4 {
		return nil, fmt.Errorf("config: players must be 1-4, got %d", cfg.PlayerCount)
	}
	if cfg.LocalPlayer < 0 || cfg.LocalPlayer >= cfg.PlayerCount {
		return nil, fmt.Errorf("config: local-player %d out of range for %d players", cfg.LocalPlayer, cfg.PlayerCount)
	}
	cfg.RAMCapBytes = uint32(*ramCapMB) * 1024 * 1024

	return cfg, nil
}
