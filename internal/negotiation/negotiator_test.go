package negotiation

import (
	"context"
	"errors"
	"testing"

	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests below drive the handlers directly, standing in for the Run
// goroutine, so every transition is deterministic.

func newTestNegotiator() (*Negotiator, *fakeSignaler, *fakeFactory) {
	s, f := &fakeSignaler{}, &fakeFactory{}
	n := New(Config{
		Room:     "R",
		Signaler: s,
		Sessions: f,
		Media:    &gatedMedia{},
		Log:      zerolog.Nop(),
	})
	return n, s, f
}

func event(name string) *protocol.Message {
	return &protocol.Message{Event: name, Room: "R"}
}

func signalMsg(t *testing.T, s protocol.Signal) *protocol.Message {
	t.Helper()
	m, err := protocol.NewSignalMessage("R", s)
	require.NoError(t, err)
	return m
}

func deliver(t *testing.T, n *Negotiator, msgs ...*protocol.Message) {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, n.handleMessage(m))
	}
}

func TestNeverStartsBeforeChannelReady(t *testing.T) {
	n, s, f := newTestNegotiator()
	n.media = fakeMedia{}

	deliver(t, n,
		event(protocol.EventCreated),
		event(protocol.EventReady),
		signalMsg(t, protocol.Custom(protocol.GotUserMediaText)),
	)
	assert.True(t, n.initiator)
	assert.False(t, n.started)
	assert.Zero(t, f.count())

	deliver(t, n, event(protocol.EventJoin))
	assert.True(t, n.channelReady)
	assert.True(t, n.started)
	assert.Equal(t, Negotiating, n.state)
	assert.Equal(t, 1, f.count())

	sigs := s.signals(t)
	require.Len(t, sigs, 1)
	assert.Equal(t, protocol.Offer("offer-1"), sigs[0])

	deliver(t, n, event(protocol.EventReady))
	assert.Equal(t, 1, f.count())
	assert.Equal(t, 1, s.count(t, protocol.SignalOffer))
}

func TestJoinerAnswersOffer(t *testing.T) {
	n, s, f := newTestNegotiator()
	n.media = fakeMedia{}

	deliver(t, n, event(protocol.EventJoined), event(protocol.EventReady))
	assert.False(t, n.initiator)
	assert.True(t, n.started)
	assert.Empty(t, s.signals(t))

	deliver(t, n, signalMsg(t, protocol.Offer("offer-x")))
	remote, _, _ := f.last().snapshot()
	assert.Equal(t, []protocol.SignalType{protocol.SignalOffer}, remote)
	assert.True(t, n.remoteSet)
	assert.Equal(t, []protocol.Signal{protocol.Answer("answer-1")}, s.signals(t))
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	n, _, f := newTestNegotiator()
	n.media = fakeMedia{}
	deliver(t, n, event(protocol.EventCreated), event(protocol.EventJoin))
	require.True(t, n.started)

	deliver(t, n,
		signalMsg(t, protocol.NewCandidate(candidate("c1"))),
		signalMsg(t, protocol.NewCandidate(candidate("c2"))),
	)
	_, added, _ := f.last().snapshot()
	assert.Empty(t, added)
	assert.Equal(t, 2, n.candidates.len())

	deliver(t, n, signalMsg(t, protocol.Answer("answer-x")))
	_, added, _ = f.last().snapshot()
	assert.Equal(t, []string{"c1", "c2"}, added)
	assert.Zero(t, n.candidates.len())

	deliver(t, n, signalMsg(t, protocol.NewCandidate(candidate("c3"))))
	_, added, _ = f.last().snapshot()
	assert.Equal(t, []string{"c1", "c2", "c3"}, added)
}

func TestOfferHeldUntilMedia(t *testing.T) {
	n, s, f := newTestNegotiator()

	deliver(t, n,
		event(protocol.EventJoined),
		event(protocol.EventReady),
		signalMsg(t, protocol.Offer("offer-x")),
		signalMsg(t, protocol.NewCandidate(candidate("c1"))),
	)
	assert.False(t, n.started)
	assert.NotNil(t, n.pendingOffer)
	assert.Zero(t, f.count())

	finished, err := n.handleEvent(mediaResult{media: fakeMedia{}})
	require.NoError(t, err)
	require.False(t, finished)

	assert.True(t, n.started)
	assert.Nil(t, n.pendingOffer)
	remote, added, _ := f.last().snapshot()
	assert.Equal(t, []protocol.SignalType{protocol.SignalOffer}, remote)
	assert.Equal(t, []string{"c1"}, added)
	assert.Equal(t, []protocol.Signal{
		protocol.Custom(protocol.GotUserMediaText),
		protocol.Answer("answer-1"),
	}, s.signals(t))
}

func TestRemoteHangupResets(t *testing.T) {
	for _, tc := range []struct {
		name string
		msg  func(t *testing.T) *protocol.Message
	}{
		{"bye", func(t *testing.T) *protocol.Message { return signalMsg(t, protocol.Bye()) }},
		{"peer left", func(*testing.T) *protocol.Message { return event(protocol.EventPeerLeft) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			n, s, f := newTestNegotiator()
			n.media = fakeMedia{}
			deliver(t, n, event(protocol.EventJoined), signalMsg(t, protocol.Offer("offer-x")))
			require.True(t, n.started)
			first := f.last()

			deliver(t, n, tc.msg(t))
			_, _, closed := first.snapshot()
			assert.True(t, closed)
			assert.False(t, n.started)
			assert.False(t, n.initiator)
			assert.False(t, n.channelReady)
			assert.Equal(t, Closed, n.state)
			assert.True(t, n.snapshot().PeerHungUp)

			// A newcomer joins the room we are still in: this side now
			// initiates.
			deliver(t, n, event(protocol.EventJoin))
			assert.True(t, n.initiator)
			assert.True(t, n.started)
			assert.Equal(t, 2, f.count())
			assert.False(t, n.snapshot().PeerHungUp)
			assert.Equal(t, protocol.Offer("offer-2"), s.signals(t)[len(s.signals(t))-1])
		})
	}
}

func TestByeBeforeStartDropsPendingOffer(t *testing.T) {
	n, _, _ := newTestNegotiator()
	deliver(t, n,
		event(protocol.EventJoined),
		signalMsg(t, protocol.Offer("offer-x")),
		signalMsg(t, protocol.NewCandidate(candidate("c1"))),
		signalMsg(t, protocol.Bye()),
	)
	assert.Nil(t, n.pendingOffer)
	assert.Zero(t, n.candidates.len())
}

func TestLocalCandidatesForwarded(t *testing.T) {
	n, s, f := newTestNegotiator()
	n.media = fakeMedia{}
	deliver(t, n, event(protocol.EventCreated), event(protocol.EventJoin))
	stale := f.last()

	stale.ev.OnCandidate(candidate("local-1"))
	_, err := n.handleEvent(<-n.events)
	require.NoError(t, err)

	sigs := s.signals(t)
	last := sigs[len(sigs)-1]
	require.Equal(t, protocol.SignalCandidate, last.Type)
	assert.Equal(t, "local-1", last.Candidate.Candidate)
	assert.Equal(t, "0", *last.Candidate.SDPMid)

	// Candidates from a session that has since been replaced are ignored.
	deliver(t, n, event(protocol.EventPeerLeft), event(protocol.EventJoin))
	before := len(s.signals(t))
	stale.ev.OnCandidate(candidate("local-old"))
	_, err = n.handleEvent(<-n.events)
	require.NoError(t, err)
	assert.Len(t, s.signals(t), before)

	stale.ev.OnStateChange("connected")
	_, err = n.handleEvent(<-n.events)
	require.NoError(t, err)
	assert.Empty(t, n.connection)

	f.last().ev.OnStateChange("connected")
	_, err = n.handleEvent(<-n.events)
	require.NoError(t, err)
	assert.Equal(t, "connected", n.connection)
}

func TestDescriptionFailureStalls(t *testing.T) {
	n, s, f := newTestNegotiator()
	f.failRemote = errors.New("bad sdp")
	n.media = fakeMedia{}

	deliver(t, n, event(protocol.EventJoined), signalMsg(t, protocol.Offer("garbage")))

	assert.True(t, n.started)
	assert.False(t, n.remoteSet)
	assert.ErrorIs(t, n.lastErr, ErrDescription)
	assert.Zero(t, s.count(t, protocol.SignalAnswer))
}

func TestRunRoomFull(t *testing.T) {
	h := newHarness(t, &gatedMedia{release: make(chan struct{})})
	h.feed(protocol.EventFull)

	err := h.wait()
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, []string{protocol.EventCreateOrJoin}, h.signaler.events())
}

func TestRunMediaUnavailable(t *testing.T) {
	h := newHarness(t, &gatedMedia{err: errors.New("no capture device")})

	err := h.wait()
	assert.ErrorIs(t, err, ErrMediaUnavailable)
	var nerr *Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "no capture device", nerr.Details)
}

func TestRunLocalHangup(t *testing.T) {
	h := newHarness(t, &gatedMedia{})
	h.feed(protocol.EventCreated)
	h.feed(protocol.EventJoin)
	h.waitFor("started", func(s Snapshot) bool { return s.Started && s.Initiator })

	h.n.Hangup()
	require.NoError(t, h.wait())

	_, _, closed := h.factory.last().snapshot()
	assert.True(t, closed)
	assert.Equal(t, 1, h.signaler.count(t, protocol.SignalBye))
	h.waitFor("closed", func(s Snapshot) bool { return s.State == Closed && !s.Started })
}

func TestRunHeldOfferAnsweredOnceMediaArrives(t *testing.T) {
	gate := &gatedMedia{release: make(chan struct{})}
	h := newHarness(t, gate)
	h.feed(protocol.EventJoined)
	h.feedSignal(protocol.Offer("offer-x"))
	h.waitFor("channel ready", func(s Snapshot) bool { return s.ChannelReady })

	close(gate.release)
	h.waitFor("remote description", func(s Snapshot) bool { return s.RemoteDescription })
	assert.Equal(t, 1, h.signaler.count(t, protocol.SignalAnswer))
	assert.Equal(t, 1, h.factory.count())
}

func TestRunStopsWhenSignalingCloses(t *testing.T) {
	h := newHarness(t, &gatedMedia{})
	close(h.incoming)
	assert.ErrorIs(t, h.wait(), ErrSignalingClosed)
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, &gatedMedia{release: make(chan struct{})})
	h.feed(protocol.EventCreated)
	h.waitFor("created", func(s Snapshot) bool { return s.Initiator })

	h.cancel()
	assert.ErrorIs(t, h.wait(), context.Canceled)
	assert.Equal(t, 1, h.signaler.count(t, protocol.SignalBye))
}

func TestRunRequiresRoom(t *testing.T) {
	n := New(Config{Signaler: &fakeSignaler{}, Sessions: &fakeFactory{}, Media: &gatedMedia{}, Log: zerolog.Nop()})
	err := n.Run(context.Background(), make(chan *protocol.Message))
	assert.Error(t, err)
}

func TestCandidateBuffer(t *testing.T) {
	var b candidateBuffer
	for i := 0; i < maxBufferedCandidates; i++ {
		require.True(t, b.push(candidate("c")))
	}
	assert.False(t, b.push(candidate("overflow")))

	var got int
	require.NoError(t, b.flush(func(protocol.Candidate) error { got++; return nil }))
	assert.Equal(t, maxBufferedCandidates, got)
	assert.Zero(t, b.len())

	b.push(candidate("a"))
	b.push(candidate("b"))
	err := b.flush(func(c protocol.Candidate) error { return errors.New(c.Candidate) })
	assert.EqualError(t, err, "a")
	assert.Zero(t, b.len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting for peer", WaitingForPeer.String())
	assert.Equal(t, "unknown", State(42).String())
}
