// session.go is the Rollback Session itself: the symmetric
// prediction/reconciliation loop every peer runs identically.
// "Rollback to a known-good tick, replay buffered inputs since" is the
// core operation, but here ANY player's late-arriving confirmed input
// can trigger it, and the rollback target is this peer's own retained
// snapshot rather than a server-pushed world state.
package rollback

import (
	"context"
	"fmt"
	"time"

	"github.com/nethercore-systems/nethercore-sub005/internal/instance"
	"github.com/nethercore-systems/nethercore-sub005/internal/protocol"
	"github.com/nethercore-systems/nethercore-sub005/internal/snapshot"
)

// Config pins the session-wide netcode constants every peer MUST agree
// on via the handshake before a single tick runs.
type Config struct {
	LocalPlayer       int
	PlayerCount       int
	InputDelay        int // ticks of deliberate local input latency
	MaxPrediction     int // ticks a remote input may be predicted ahead
	DisconnectTimeout time.Duration
}

// Session drives one Game Instance through the fixed-timestep, rollback
// netcode loop.
type Session struct {
	cfg  Config
	inst *instance.Instance
	snap *snapshot.Manager

	hist      *History
	snapshots map[uint64]*snapshot.Buffer
	checksums map[uint64]uint64

	tick     uint64 // next tick to be simulated
	lastSeen [MaxPlayers]time.Time

	waiting     [MaxPlayers]bool // stalled on this remote player's input
	interrupted [MaxPlayers]bool // silent longer than half the disconnect timeout

	renderCmds [][]byte
	audioCmds  [][]byte

	metrics  *Metrics
	timesync *TimeSync

	pending []Event
}

// New builds a Session around an already-loaded Game Instance and
// Snapshot Manager. The manager MUST be sized for at least
// MaxPrediction+2 live buffers.
func New(inst *instance.Instance, snap *snapshot.Manager, cfg Config, metrics *Metrics) *Session {
	now := time.Now()
	s := &Session{
		cfg:       cfg,
		inst:      inst,
		snap:      snap,
		hist:      NewHistory(cfg.MaxPrediction*2 + 4),
		snapshots: make(map[uint64]*snapshot.Buffer),
		checksums: make(map[uint64]uint64),
		metrics:   metrics,
		timesync:  NewTimeSync(32, cfg.MaxPrediction),
	}
	for p := 0; p < MaxPlayers; p++ {
		s.lastSeen[p] = now
	}
	return s
}

// Events drains and returns the events raised since the last call.
func (s *Session) Events() []Event {
	out := s.pending
	s.pending = nil
	return out
}

func (s *Session) emit(e Event) { s.pending = append(s.pending, e) }

// LocalInput supplies this peer's own input for tick s.tick+InputDelay,
// the frame the capability surface will hand back to the guest
// InputDelay ticks from now. The caller is responsible for holding onto
// it and calling AdvanceTick once every other player's slot for the
// current tick has a value (confirmed or predicted).
func (s *Session) LocalInput(frame protocol.InputFrame) {
	targetTick := s.tick + uint64(s.cfg.InputDelay)
	entry := s.hist.Get(targetTick)
	if entry == nil {
		e := TickInputs{Tick: targetTick}
		entry = &e
	}
	entry.Frames[s.cfg.LocalPlayer] = frame
	entry.Confirmed[s.cfg.LocalPlayer] = true
	s.hist.Record(*entry)
}

// ReceiveRemoteInput confirms a remote player's frame for tick. If this
// overwrites a value that had only been predicted for a tick already
// simulated, a rollback to that tick is triggered immediately.
func (s *Session) ReceiveRemoteInput(ctx context.Context, player int, tick uint64, frame protocol.InputFrame) error {
	if player < 0 || player >= MaxPlayers {
		return fmt.Errorf("rollback: player %d out of range", player)
	}
	s.lastSeen[player] = time.Now()

	entry := s.hist.Get(tick)
	if entry == nil {
		e := TickInputs{Tick: tick}
		entry = &e
		entry.Frames[player] = frame
		entry.Confirmed[player] = true
		s.hist.Record(*entry)
		return nil
	}

	wasConfirmed := entry.Confirmed[player]
	prev := entry.Frames[player]
	entry.Frames[player] = frame
	entry.Confirmed[player] = true
	s.hist.Record(*entry)

	changed := !wasConfirmed && prev != frame
	if changed && tick < s.tick {
		return s.rollbackTo(ctx, tick)
	}
	return nil
}

// currentTickInputs builds the frame set for s.tick: confirmed values
// where present, otherwise each player's last-confirmed frame repeated
// (input-repeat prediction).
func (s *Session) currentTickInputs() [MaxPlayers]protocol.InputFrame {
	entry := s.hist.Get(s.tick)
	var out [MaxPlayers]protocol.InputFrame
	for p := 0; p < MaxPlayers; p++ {
		if entry != nil && entry.Confirmed[p] {
			out[p] = entry.Frames[p]
			continue
		}
		out[p] = s.lastConfirmedFrame(p)
	}
	return out
}

// lastConfirmedFrame scans backward from s.tick for player's most
// recently confirmed frame, the value repeated forward as a prediction.
func (s *Session) lastConfirmedFrame(player int) protocol.InputFrame {
	oldest, ok := s.hist.OldestTick()
	if !ok {
		return protocol.InputFrame{}
	}
	for t := s.tick; t >= oldest; t-- {
		if entry := s.hist.Get(t); entry != nil && entry.Confirmed[player] {
			return entry.Frames[player]
		}
		if t == 0 {
			break
		}
	}
	return protocol.InputFrame{}
}

// predictionBound reports the first remote player (if any) whose
// last-confirmed tick has fallen more than MaxPrediction ticks behind
// s.tick: the point past which AdvanceTick must stall rather than
// predict further ahead of that player's actual input.
func (s *Session) predictionBound() (player int, exceeded bool) {
	for p := 0; p < s.cfg.PlayerCount; p++ {
		if p == s.cfg.LocalPlayer {
			continue
		}
		if s.tick > s.lastConfirmedTick(p)+uint64(s.cfg.MaxPrediction) {
			return p, true
		}
	}
	return 0, false
}

// checkPrediction reports whether s.tick must stall on a remote player's
// prediction bound, raising WaitingForPeer the moment a player first
// falls behind and Synchronized once it catches back up. Side effects
// are confined to s.waiting and s.pending so this can run ahead of any
// snapshot/instance work in AdvanceTick.
func (s *Session) checkPrediction() bool {
	if player, exceeded := s.predictionBound(); exceeded {
		if !s.waiting[player] {
			s.waiting[player] = true
			s.emit(Event{Kind: EventWaitingForPeer, Player: player, Tick: s.tick})
		}
		return true
	}
	for p := 0; p < s.cfg.PlayerCount; p++ {
		if p == s.cfg.LocalPlayer {
			continue
		}
		if s.waiting[p] {
			s.waiting[p] = false
			s.emit(Event{Kind: EventSynchronized, Player: p})
		}
	}
	return false
}

// AdvanceTick snapshots the pre-tick state, simulates exactly one tick
// using currentTickInputs, records the tick's input set (filling in
// predictions) and checksum, renders the resulting (non-resimulated)
// frame, and advances s.tick. If any remote player's confirmed input
// has fallen more than MaxPrediction ticks behind, the tick stalls
// instead: s.tick does not advance and a WaitingForPeer event is
// raised until that player's input catches up.
func (s *Session) AdvanceTick(ctx context.Context) error {
	if s.checkPrediction() {
		return nil
	}

	pre, _ := s.snap.Snapshot(s.inst)
	s.snapshots[s.tick] = pre

	frames := s.currentTickInputs()
	var entry TickInputs
	if e := s.hist.Get(s.tick); e != nil {
		entry = *e
	} else {
		entry.Tick = s.tick
	}
	entry.Frames = frames
	s.hist.Record(entry)

	if err := s.inst.Update(ctx, frames); err != nil {
		return err
	}

	if err := s.inst.Render(ctx, 1.0); err != nil {
		return err
	}
	s.renderCmds = append(s.renderCmds, s.inst.DrainRenderCommands()...)
	s.audioCmds = append(s.audioCmds, s.inst.DrainAudioCommands()...)

	post, hash := s.snap.Snapshot(s.inst)
	s.snap.Release(post)
	s.checksums[s.tick] = hash

	for p := 0; p < s.cfg.PlayerCount; p++ {
		if p == s.cfg.LocalPlayer {
			continue
		}
		confirmedTick := s.lastConfirmedTick(p)
		if ev, warn := s.timesync.Observe(p, s.tick, confirmedTick); warn {
			s.emit(ev)
		}
	}

	s.tick++
	s.pruneConfirmed()
	return nil
}

// DrainRenderCommands returns and clears the render commands emitted by
// call_render since the last drain. Resimulated ticks inside rollbackTo
// never call render, so these only ever reflect live, non-resimulated
// ticks.
func (s *Session) DrainRenderCommands() [][]byte {
	out := s.renderCmds
	s.renderCmds = nil
	return out
}

// DrainAudioCommands returns and clears the audio commands emitted since
// the last drain, under the same non-resimulated-ticks-only guarantee as
// DrainRenderCommands.
func (s *Session) DrainAudioCommands() [][]byte {
	out := s.audioCmds
	s.audioCmds = nil
	return out
}

// LastChecksum returns the checksum computed for the most recently
// simulated tick, for the host loop to exchange with peers over
// protocol.ChecksumMessage for desync detection. ok is false before the
// first tick has been simulated.
func (s *Session) LastChecksum() (protocol.ChecksumMessage, bool) {
	if s.tick == 0 {
		return protocol.ChecksumMessage{}, false
	}
	tick := s.tick - 1
	hash, ok := s.checksums[tick]
	if !ok {
		return protocol.ChecksumMessage{}, false
	}
	return protocol.ChecksumMessage{Tick: tick, Hash: hash}, true
}

// lastConfirmedTick returns the most recent tick at which player's
// input was confirmed, scanning no further back than retained history.
func (s *Session) lastConfirmedTick(player int) uint64 {
	oldest, ok := s.hist.OldestTick()
	if !ok {
		return s.tick
	}
	for t := s.tick; t >= oldest; t-- {
		if entry := s.hist.Get(t); entry != nil && entry.Confirmed[player] {
			return t
		}
		if t == 0 {
			break
		}
	}
	return oldest
}

// rollbackTo restores the snapshot taken before targetTick and
// resimulates every tick from targetTick up to (but not including) the
// current tick, using the now-corrected input history. The Game
// Instance silently drops render/audio commands during resimulation;
// the caller drains them only after the final, "live" tick.
func (s *Session) rollbackTo(ctx context.Context, targetTick uint64) error {
	buf, ok := s.snapshots[targetTick]
	if !ok {
		return fmt.Errorf("rollback: no retained snapshot for tick %d (desync or history too short)", targetTick)
	}
	if err := s.snap.Restore(s.inst, buf); err != nil {
		return fmt.Errorf("rollback: restoring tick %d: %w", targetTick, err)
	}

	depth := s.tick - targetTick
	resimulateTo := s.tick
	s.tick = targetTick

	for s.tick < resimulateTo {
		frames := s.currentTickInputs()
		if err := s.inst.Update(ctx, frames); err != nil {
			return fmt.Errorf("rollback: resimulating tick %d: %w", s.tick, err)
		}
		post, hash := s.snap.Snapshot(s.inst)
		s.snap.Release(post)
		s.checksums[s.tick] = hash
		s.tick++
	}

	if s.metrics != nil {
		s.metrics.RollbackCount.Inc()
		s.metrics.RollbackDepth.Observe(float64(depth))
	}
	return nil
}

// ReceiveChecksum compares a remote peer's reported checksum for tick
// against the local one computed for that tick. A mismatch is a
// terminal Desync for the session: the caller must stop advancing and
// surface the event.
func (s *Session) ReceiveChecksum(player int, msg protocol.ChecksumMessage) {
	local, ok := s.checksums[msg.Tick]
	if !ok {
		// Tick already pruned (confirmed long ago) or not yet simulated;
		// nothing to compare against.
		return
	}
	if local != msg.Hash {
		if s.metrics != nil {
			s.metrics.DesyncCount.Inc()
		}
		s.emit(Event{Kind: EventDesync, Tick: msg.Tick})
	}
}

// pruneConfirmed releases snapshots and checksums for ticks that every
// player has confirmed and that no longer matter for rollback, keeping
// memory bounded regardless of session length.
func (s *Session) pruneConfirmed() {
	floor := s.tick
	for p := 0; p < s.cfg.PlayerCount; p++ {
		if t := s.lastConfirmedTick(p); t < floor {
			floor = t
		}
	}
	if floor < uint64(s.cfg.MaxPrediction) {
		return
	}
	prune := floor - uint64(s.cfg.MaxPrediction)
	for t := range s.snapshots {
		if t < prune {
			s.snap.Release(s.snapshots[t])
			delete(s.snapshots, t)
			delete(s.checksums, t)
		}
	}
	s.hist.PruneBefore(prune)
}

// CheckDisconnects compares each remote player's last-seen time against
// the configured disconnect timeout, the one legitimate wall-clock-
// bounded setting in the session. A silence past the full timeout
// raises Disconnected; a silence past half the timeout but still short
// of it raises NetworkInterrupted once, and NetworkResumed once input
// starts arriving again.
func (s *Session) CheckDisconnects(now time.Time) []Event {
	var events []Event
	for p := 0; p < s.cfg.PlayerCount; p++ {
		if p == s.cfg.LocalPlayer {
			continue
		}
		silence := now.Sub(s.lastSeen[p])
		switch {
		case silence > s.cfg.DisconnectTimeout:
			if s.metrics != nil {
				s.metrics.DisconnectCount.WithLabelValues(fmt.Sprint(p)).Inc()
			}
			events = append(events, Event{Kind: EventDisconnected, Player: p})
		case silence > s.cfg.DisconnectTimeout/2:
			if !s.interrupted[p] {
				s.interrupted[p] = true
				events = append(events, Event{Kind: EventNetworkInterrupted, Player: p})
			}
		default:
			if s.interrupted[p] {
				s.interrupted[p] = false
				events = append(events, Event{Kind: EventNetworkResumed, Player: p})
			}
		}
	}
	return events
}

// Tick returns the next tick to be simulated.
func (s *Session) Tick() uint64 { return s.tick }
