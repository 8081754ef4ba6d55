package negotiation

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/pairlink/internal/client"
	"github.com/BioHazard786/pairlink/internal/config"
	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/BioHazard786/pairlink/internal/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type peer struct {
	n       *Negotiator
	factory *fakeFactory
	result  chan error
	last    Snapshot
}

func startPeer(t *testing.T, ctx context.Context, wsURL string) *peer {
	t.Helper()
	c := client.New(wsURL, protocol.JSON, zerolog.Nop())
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)

	p := &peer{factory: &fakeFactory{}, result: make(chan error, 1)}
	p.n = New(Config{
		Room:     "e2e",
		Signaler: c,
		Sessions: p.factory,
		Media:    &gatedMedia{},
		Log:      zerolog.Nop(),
	})
	go func() { p.result <- p.n.Run(ctx, c.Incoming()) }()
	return p
}

func (p *peer) waitFor(t *testing.T, desc string, pred func(Snapshot) bool) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for !pred(p.last) {
		select {
		case s, ok := <-p.n.States():
			require.True(t, ok, "negotiator stopped while waiting for %s", desc)
			p.last = s
		case <-timeout:
			t.Fatalf("timed out waiting for %s, last snapshot %+v", desc, p.last)
		}
	}
}

func TestNegotiationThroughRelay(t *testing.T) {
	cfg := &config.Server{
		Host:           "127.0.0.1",
		Port:           config.DefaultPort,
		WriteWait:      5 * time.Second,
		PongWait:       30 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendQueue:      64,
		RateBurst:      1,
		MaxRoomLength:  config.DefaultRoomLen,
	}
	s := server.New(cfg, zerolog.Nop())
	go s.Hub().Run()
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.Hub().Stop()
		ts.Close()
	})
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startPeer(t, ctx, wsURL)
	a.waitFor(t, "room created", func(s Snapshot) bool { return s.Initiator })

	b := startPeer(t, ctx, wsURL)

	negotiated := func(s Snapshot) bool { return s.Started && s.RemoteDescription }
	a.waitFor(t, "a negotiated", negotiated)
	b.waitFor(t, "b negotiated", negotiated)

	assert.True(t, a.last.Initiator)
	assert.False(t, b.last.Initiator)
	assert.Equal(t, 1, a.factory.count())
	assert.Equal(t, 1, b.factory.count())

	remote, _, _ := b.factory.last().snapshot()
	assert.Equal(t, []protocol.SignalType{protocol.SignalOffer}, remote)
	remote, _, _ = a.factory.last().snapshot()
	assert.Equal(t, []protocol.SignalType{protocol.SignalAnswer}, remote)

	// Local candidates travel to the peer.
	a.factory.last().ev.OnCandidate(candidate("host-a"))
	require.Eventually(t, func() bool {
		_, added, _ := b.factory.last().snapshot()
		return len(added) == 1 && added[0] == "host-a"
	}, 3*time.Second, 10*time.Millisecond)

	a.n.Hangup()
	select {
	case err := <-a.result:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("a did not stop")
	}

	b.waitFor(t, "b reset", func(s Snapshot) bool {
		return s.State == Closed && s.PeerHungUp && !s.Started && !s.Initiator && !s.ChannelReady
	})
	_, _, closed := b.factory.last().snapshot()
	assert.True(t, closed)
}
