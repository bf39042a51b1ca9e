package rollback

import "fmt"

// EventKind enumerates the Rollback Session's observable events,
// surfaced to the owning loop/host application for logging, UI, and
// metrics — never consumed by the guest directly.
type EventKind int

const (
	EventSynchronized EventKind = iota
	EventWaitingForPeer
	EventNetworkInterrupted
	EventNetworkResumed
	EventDisconnected
	EventDesync
	EventFrameAdvantageWarning
	EventTimeSync
)

func (k EventKind) String() string {
	switch k {
	case EventSynchronized:
		return "Synchronized"
	case EventWaitingForPeer:
		return "WaitingForPeer"
	case EventNetworkInterrupted:
		return "NetworkInterrupted"
	case EventNetworkResumed:
		return "NetworkResumed"
	case EventDisconnected:
		return "Disconnected"
	case EventDesync:
		return "Desync"
	case EventFrameAdvantageWarning:
		return "FrameAdvantageWarning"
	case EventTimeSync:
		return "TimeSync"
	default:
		return "UnknownEvent"
	}
}

// Event carries the optional payload each EventKind needs: Player for
// Disconnected, Tick for Desync, Delta for FrameAdvantageWarning/TimeSync.
type Event struct {
	Kind   EventKind
	Player int
	Tick   uint64
	Delta  int
}

func (e Event) String() string {
	switch e.Kind {
	case EventDisconnected:
		return fmt.Sprintf("%s(player=%d)", e.Kind, e.Player)
	case EventDesync:
		return fmt.Sprintf("%s(tick=%d)", e.Kind, e.Tick)
	case EventFrameAdvantageWarning, EventTimeSync:
		return fmt.Sprintf("%s(delta=%d)", e.Kind, e.Delta)
	default:
		return e.Kind.String()
	}
}
