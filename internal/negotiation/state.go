package negotiation

// State is the coarse phase of a negotiation.
type State int

const (
	Idle State = iota
	WaitingForPeer
	Ready
	Negotiating
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForPeer:
		return "waiting for peer"
	case Ready:
		return "ready"
	case Negotiating:
		return "negotiating"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Snapshot is an immutable copy of the negotiator's state, published after
// every transition.
type Snapshot struct {
	State State
	Room  string

	ChannelReady bool
	Initiator    bool
	Started      bool
	MediaReady   bool

	// RemoteDescription is set once the peer's offer or answer has been
	// applied to the current session.
	RemoteDescription bool

	// PeerHungUp is set after the peer ended the session while this side
	// stays in the room waiting for the next one.
	PeerHungUp bool

	// Connection is the peer connection state reported by the session.
	Connection string

	// Err is the last non-fatal failure, if any.
	Err error
}
