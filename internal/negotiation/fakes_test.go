package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSignaler struct {
	mu   sync.Mutex
	sent []*protocol.Message
}

func (s *fakeSignaler) Send(m *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	return nil
}

// signals returns the decoded payloads of every "message" sent so far.
func (s *fakeSignaler) signals(t *testing.T) []protocol.Signal {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.Signal
	for _, m := range s.sent {
		if m.Event != protocol.EventMessage {
			continue
		}
		sig, err := m.Signal()
		require.NoError(t, err)
		out = append(out, sig)
	}
	return out
}

func (s *fakeSignaler) count(t *testing.T, typ protocol.SignalType) int {
	n := 0
	for _, sig := range s.signals(t) {
		if sig.Type == typ {
			n++
		}
	}
	return n
}

func (s *fakeSignaler) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.Event
	}
	return out
}

type fakeSession struct {
	mu         sync.Mutex
	id         int
	ev         SessionEvents
	media      Media
	remote     []protocol.SignalType
	candidates []string
	closed     bool
	failRemote error
}

func (s *fakeSession) AddLocalMedia(m Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = m
	return nil
}

func (s *fakeSession) CreateOffer() (string, error) {
	return fmt.Sprintf("offer-%d", s.id), nil
}

func (s *fakeSession) CreateAnswer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.remote) == 0 {
		return "", errors.New("no remote offer")
	}
	return fmt.Sprintf("answer-%d", s.id), nil
}

func (s *fakeSession) SetRemoteDescription(t protocol.SignalType, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRemote != nil {
		return s.failRemote
	}
	s.remote = append(s.remote, t)
	return nil
}

func (s *fakeSession) AddICECandidate(c protocol.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.remote) == 0 {
		return errors.New("remote description not set")
	}
	s.candidates = append(s.candidates, c.Candidate)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) snapshot() (remote []protocol.SignalType, candidates []string, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.SignalType(nil), s.remote...), append([]string(nil), s.candidates...), s.closed
}

type fakeFactory struct {
	mu         sync.Mutex
	sessions   []*fakeSession
	failRemote error
}

func (f *fakeFactory) NewSession(ev SessionEvents) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSession{id: len(f.sessions) + 1, ev: ev, failRemote: f.failRemote}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeFactory) last() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

type fakeMedia struct{}

func (fakeMedia) Tracks() []webrtc.TrackLocal { return nil }
func (fakeMedia) Close() error                { return nil }

// gatedMedia blocks Open until release is closed.
type gatedMedia struct {
	release chan struct{}
	err     error
}

func (g *gatedMedia) Open(ctx context.Context) (Media, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return fakeMedia{}, nil
}

// harness runs a Negotiator against fake collaborators.
type harness struct {
	t        *testing.T
	n        *Negotiator
	signaler *fakeSignaler
	factory  *fakeFactory
	incoming chan *protocol.Message
	result   chan error
	cancel   context.CancelFunc
	last     Snapshot
}

func newHarness(t *testing.T, media MediaSource) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		signaler: &fakeSignaler{},
		factory:  &fakeFactory{},
		incoming: make(chan *protocol.Message, 16),
		result:   make(chan error, 1),
	}
	h.n = New(Config{
		Room:     "R",
		Signaler: h.signaler,
		Sessions: h.factory,
		Media:    media,
		Log:      zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.result <- h.n.Run(ctx, h.incoming) }()
	t.Cleanup(cancel)
	return h
}

func (h *harness) feed(event string) {
	h.incoming <- &protocol.Message{Event: event, Room: "R"}
}

func (h *harness) feedSignal(s protocol.Signal) {
	h.t.Helper()
	msg, err := protocol.NewSignalMessage("R", s)
	require.NoError(h.t, err)
	h.incoming <- msg
}

// waitFor reads snapshots until pred holds.
func (h *harness) waitFor(desc string, pred func(Snapshot) bool) Snapshot {
	h.t.Helper()
	if pred(h.last) {
		return h.last
	}
	timeout := time.After(3 * time.Second)
	for {
		select {
		case s, ok := <-h.n.States():
			if !ok {
				h.t.Fatalf("negotiator stopped while waiting for %s", desc)
			}
			h.last = s
			if pred(s) {
				return s
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s, last snapshot %+v", desc, h.last)
		}
	}
}

func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.result:
		return err
	case <-time.After(3 * time.Second):
		h.t.Fatal("Run did not return")
		return nil
	}
}

func candidate(s string) protocol.Candidate {
	mid := "0"
	var idx uint16
	return protocol.Candidate{Candidate: s, SDPMid: &mid, SDPMLineIndex: &idx}
}
