package negotiation

import (
	"context"
	"errors"

	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/rs/zerolog"
)

// Config wires a Negotiator to its collaborators.
type Config struct {
	Room     string
	Signaler Signaler
	Sessions SessionFactory
	Media    MediaSource
	Log      zerolog.Logger
}

// Events posted to the loop from other goroutines.
type (
	mediaResult struct {
		media Media
		err   error
	}
	localCandidate struct {
		gen int
		c   protocol.Candidate
	}
	connectionState struct {
		gen   int
		state string
	}
	hangupRequest struct{}
)

// Negotiator drives one participant through room admission and the
// offer/answer/candidate exchange. All state is owned by the goroutine
// running Run; everything else posts events to it.
type Negotiator struct {
	room     string
	signaler Signaler
	sessions SessionFactory
	source   MediaSource
	log      zerolog.Logger

	// events is large so session callbacks rarely wait on the loop.
	events chan any
	states chan Snapshot
	done   chan struct{}

	state        State
	inRoom       bool
	channelReady bool
	initiator    bool
	started      bool
	peerHungUp   bool
	media        Media

	session    Session
	gen        int
	remoteSet  bool
	connection string
	candidates candidateBuffer

	// pendingOffer is an offer that arrived before the session could start.
	pendingOffer *string
	lastErr      error
}

// New returns a Negotiator for cfg.Room. Call Run to start it.
func New(cfg Config) *Negotiator {
	return &Negotiator{
		room:     cfg.Room,
		signaler: cfg.Signaler,
		sessions: cfg.Sessions,
		source:   cfg.Media,
		log:      cfg.Log.With().Str("room", cfg.Room).Logger(),
		events:   make(chan any, 1024),
		states:   make(chan Snapshot, 32),
		done:     make(chan struct{}),
	}
}

// States returns the stream of snapshots. Slow readers miss intermediate
// snapshots but always see the latest one. The channel is closed when Run
// returns.
func (n *Negotiator) States() <-chan Snapshot {
	return n.states
}

// Hangup asks Run to close the session, tell the peer and return.
func (n *Negotiator) Hangup() {
	n.post(hangupRequest{})
}

// Run joins the room and processes relay events from incoming until the
// room turns out to be full, media cannot be acquired, the user hangs up,
// incoming is closed or ctx is done. A local hangup returns nil.
func (n *Negotiator) Run(ctx context.Context, incoming <-chan *protocol.Message) error {
	defer func() {
		n.stop()
		if n.media != nil {
			n.media.Close()
		}
		close(n.done)
		close(n.states)
	}()

	if n.room == "" {
		return WrapError("create or join", errors.New("empty room"), "a room name is required")
	}

	n.log.Info().Msg("joining room")
	if err := n.signaler.Send(&protocol.Message{Event: protocol.EventCreateOrJoin, Room: n.room}); err != nil {
		return NewError("create or join", err)
	}
	n.setState(WaitingForPeer)

	mediaCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go n.acquireMedia(mediaCtx)

	for {
		select {
		case <-ctx.Done():
			n.hangup()
			return ctx.Err()

		case msg, ok := <-incoming:
			if !ok {
				n.stop()
				n.setState(Closed)
				return ErrSignalingClosed
			}
			if err := n.handleMessage(msg); err != nil {
				return err
			}

		case ev := <-n.events:
			if finished, err := n.handleEvent(ev); finished {
				return err
			}
		}
	}
}

func (n *Negotiator) acquireMedia(ctx context.Context) {
	m, err := n.source.Open(ctx)
	if !n.post(mediaResult{media: m, err: err}) && m != nil {
		m.Close()
	}
}

// post hands ev to the loop. It reports false once Run has returned.
func (n *Negotiator) post(ev any) bool {
	select {
	case n.events <- ev:
		return true
	case <-n.done:
		return false
	}
}

func (n *Negotiator) handleEvent(ev any) (bool, error) {
	switch ev := ev.(type) {
	case mediaResult:
		if ev.err != nil {
			n.log.Error().Err(ev.err).Msg("failed to acquire local media")
			n.setState(Closed)
			return true, WrapError("acquire media", ErrMediaUnavailable, ev.err.Error())
		}
		n.log.Info().Int("tracks", len(ev.media.Tracks())).Msg("local media ready")
		n.media = ev.media
		n.publish()
		if n.inRoom {
			n.signal(protocol.Custom(protocol.GotUserMediaText))
		}
		n.maybeStart()

	case localCandidate:
		if ev.gen == n.gen && n.started {
			n.signal(protocol.NewCandidate(ev.c))
		}

	case connectionState:
		if ev.gen == n.gen && n.started {
			n.log.Debug().Str("state", ev.state).Msg("peer connection state")
			n.connection = ev.state
			n.publish()
		}

	case hangupRequest:
		n.hangup()
		return true, nil
	}
	return false, nil
}

func (n *Negotiator) handleMessage(msg *protocol.Message) error {
	switch msg.Event {
	case protocol.EventCreated:
		n.log.Info().Msg("created room")
		n.inRoom = true
		n.initiator = true
		n.publish()

	case protocol.EventJoin:
		// Only the member already waiting receives "join".
		n.log.Info().Msg("peer joining, this side is the initiator")
		n.inRoom = true
		n.initiator = true
		n.peerReady()

	case protocol.EventJoined:
		n.log.Info().Msg("joined room")
		n.inRoom = true
		n.peerReady()

	case protocol.EventReady:
		n.maybeStart()

	case protocol.EventFull:
		n.log.Warn().Msg("room is full")
		n.setState(Closed)
		return WrapError("create or join", ErrRoomFull, n.room)

	case protocol.EventPeerLeft:
		if n.started || n.channelReady {
			n.remoteHangup("peer left")
		}

	case protocol.EventMessage:
		n.handleSignal(msg)

	case protocol.EventLog:
		n.log.Debug().Strs("log", msg.Log).Msg("relay log")

	case protocol.EventIPAddr:
		n.log.Debug().Str("address", msg.Address).Msg("relay address")

	default:
		n.log.Debug().Str("event", msg.Event).Msg("ignoring event")
	}
	return nil
}

func (n *Negotiator) peerReady() {
	n.channelReady = true
	n.peerHungUp = false
	if !n.started {
		n.setState(Ready)
	}
	n.maybeStart()
}

func (n *Negotiator) handleSignal(msg *protocol.Message) {
	sig, err := msg.Signal()
	if err != nil {
		n.log.Warn().Err(err).Msg("undecodable signal")
		return
	}

	switch sig.Type {
	case protocol.SignalCustom:
		if sig.Text == protocol.GotUserMediaText {
			n.maybeStart()
			return
		}
		n.log.Info().Str("text", sig.Text).Msg("peer said")

	case protocol.SignalOffer:
		if !n.initiator && !n.started {
			n.maybeStart()
		}
		if !n.started {
			n.log.Debug().Msg("holding offer until local media is ready")
			sdp := sig.SDP
			n.pendingOffer = &sdp
			return
		}
		n.acceptOffer(sig.SDP)

	case protocol.SignalAnswer:
		if n.started {
			n.applyRemote(protocol.SignalAnswer, sig.SDP)
		}

	case protocol.SignalCandidate:
		switch {
		case n.started && n.remoteSet:
			if err := n.session.AddICECandidate(*sig.Candidate); err != nil {
				n.log.Warn().Err(err).Msg("failed to add remote candidate")
			}
		case n.channelReady:
			if !n.candidates.push(*sig.Candidate) {
				n.log.Warn().Msg("candidate buffer full, dropping candidate")
			}
		}

	case protocol.SignalBye:
		if n.started {
			n.remoteHangup("bye")
			return
		}
		n.pendingOffer = nil
		n.candidates.reset()
	}
}

// maybeStart creates the session once media is available and a peer is
// present. The initiator then sends the offer.
func (n *Negotiator) maybeStart() {
	if n.started || n.media == nil || !n.channelReady {
		return
	}

	n.gen++
	gen := n.gen
	s, err := n.sessions.NewSession(SessionEvents{
		OnCandidate:   func(c protocol.Candidate) { n.post(localCandidate{gen: gen, c: c}) },
		OnStateChange: func(state string) { n.post(connectionState{gen: gen, state: state}) },
	})
	if err != nil {
		n.fail("create session", err)
		return
	}
	if err := s.AddLocalMedia(n.media); err != nil {
		s.Close()
		n.fail("add local media", err)
		return
	}

	n.session = s
	n.started = true
	n.remoteSet = false
	n.log.Info().Bool("initiator", n.initiator).Msg("session started")
	n.setState(Negotiating)

	if n.initiator {
		sdp, err := s.CreateOffer()
		if err != nil {
			n.fail("create offer", err)
			return
		}
		n.signal(protocol.Offer(sdp))
		return
	}

	if n.pendingOffer != nil {
		sdp := *n.pendingOffer
		n.pendingOffer = nil
		n.acceptOffer(sdp)
	}
}

func (n *Negotiator) acceptOffer(sdp string) {
	if !n.applyRemote(protocol.SignalOffer, sdp) {
		return
	}
	answer, err := n.session.CreateAnswer()
	if err != nil {
		n.fail("create answer", err)
		return
	}
	n.signal(protocol.Answer(answer))
}

// applyRemote sets the remote description and flushes the candidates that
// were waiting for it.
func (n *Negotiator) applyRemote(t protocol.SignalType, sdp string) bool {
	if err := n.session.SetRemoteDescription(t, sdp); err != nil {
		n.fail("set remote "+string(t), err)
		return false
	}
	n.remoteSet = true

	if k := n.candidates.len(); k > 0 {
		n.log.Debug().Int("count", k).Msg("flushing buffered candidates")
	}
	if err := n.candidates.flush(n.session.AddICECandidate); err != nil {
		n.log.Warn().Err(err).Msg("failed to add buffered candidate")
	}
	n.publish()
	return true
}

// fail records a description failure. The session is left as it is.
func (n *Negotiator) fail(op string, err error) {
	n.lastErr = WrapError(op, ErrDescription, err.Error())
	n.log.Error().Err(err).Str("op", op).Msg("negotiation failed")
	n.publish()
}

// stop closes the current session, if any.
func (n *Negotiator) stop() {
	if n.session != nil {
		if err := n.session.Close(); err != nil {
			n.log.Debug().Err(err).Msg("closing session")
		}
		n.session = nil
	}
	n.started = false
	n.remoteSet = false
	n.connection = ""
	n.candidates.reset()
}

func (n *Negotiator) hangup() {
	n.log.Info().Msg("hanging up")
	n.stop()
	if n.inRoom {
		n.signal(protocol.Bye())
	}
	n.setState(Closed)
}

// remoteHangup returns to waiting in the room; a later "join" starts over.
func (n *Negotiator) remoteHangup(reason string) {
	n.log.Info().Str("reason", reason).Msg("session terminated by peer")
	n.stop()
	n.initiator = false
	n.channelReady = false
	n.peerHungUp = true
	n.pendingOffer = nil
	n.setState(Closed)
}

func (n *Negotiator) signal(s protocol.Signal) {
	msg, err := protocol.NewSignalMessage(n.room, s)
	if err != nil {
		n.log.Error().Err(err).Msg("encoding signal")
		return
	}
	if err := n.signaler.Send(msg); err != nil {
		n.log.Warn().Err(err).Str("signal", string(s.Type)).Msg("failed to send signal")
	}
}

func (n *Negotiator) setState(s State) {
	n.state = s
	n.publish()
}

func (n *Negotiator) snapshot() Snapshot {
	return Snapshot{
		State:             n.state,
		Room:              n.room,
		ChannelReady:      n.channelReady,
		Initiator:         n.initiator,
		Started:           n.started,
		MediaReady:        n.media != nil,
		RemoteDescription: n.remoteSet,
		PeerHungUp:        n.peerHungUp,
		Connection:        n.connection,
		Err:               n.lastErr,
	}
}

// publish sends the current snapshot, discarding the oldest unread one
// when the channel is full.
func (n *Negotiator) publish() {
	s := n.snapshot()
	for {
		select {
		case n.states <- s:
			return
		default:
		}
		select {
		case <-n.states:
		default:
		}
	}
}
