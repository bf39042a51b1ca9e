package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-module", "game.wasm"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.TickRate != 60 {
		t.Fatalf("TickRate = %d, want default 60", cfg.TickRate)
	}
	if cfg.PlayerCount != 2 {
		t.Fatalf("PlayerCount = %d, want default 2", cfg.PlayerCount)
	}
	if cfg.RAMCapBytes != 16*1024*1024 {
		t.Fatalf("RAMCapBytes = %d, want 16 MiB", cfg.RAMCapBytes)
	}
}

func TestParseRejectsMissingModuleLater(t *testing.T) {
	// Parse itself does not require -module (callers check it); only the
	// console profile constants are validated here.
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if cfg.ModulePath != "" {
		t.Fatalf("ModulePath = %q, want empty when -module is omitted", cfg.ModulePath)
	}
}

func TestParseRejectsInvalidTickRate(t *testing.T) {
	if _, err := Parse([]string{"-tick-rate", "45"}); err == nil {
		t.Fatalf("expected an error for an unsupported tick rate")
	}
}

func TestParseRejectsOutOfRangePlayerCount(t *testing.T) {
	if _, err := Parse([]string{"-players", "5"}); err == nil {
		t.Fatalf("expected an error for player count above 4")
	}
	if _, err := Parse([]string{"-players", "0"}); err == nil {
		t.Fatalf("expected an error for player count below 1")
	}
}

func TestParseRejectsOutOfRangeLocalPlayer(t *testing.T) {
	if _, err := Parse([]string{"-players", "2", "-local-player", "2"}); err == nil {
		t.Fatalf("expected an error when local-player is not less than players")
	}
}

func TestParseAccumulatesRepeatedPeerFlags(t *testing.T) {
	cfg, err := Parse([]string{"-peer", "10.0.0.1:7777", "-peer", "10.0.0.2:7777"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.PeerAddrs) != 2 {
		t.Fatalf("PeerAddrs = %v, want 2 entries", cfg.PeerAddrs)
	}
	if cfg.PeerAddrs[0] != "10.0.0.1:7777" || cfg.PeerAddrs[1] != "10.0.0.2:7777" {
		t.Fatalf("PeerAddrs = %v, want addresses in flag order", cfg.PeerAddrs)
	}
}
