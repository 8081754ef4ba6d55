package negotiation

import (
	"context"

	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Signaler delivers envelopes to the relay.
type Signaler interface {
	Send(msg *protocol.Message) error
}

// Media is an acquired local media stream.
type Media interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// MediaSource acquires local media. Open may block, and is always called
// off the negotiator's loop.
type MediaSource interface {
	Open(ctx context.Context) (Media, error)
}

// Session is one peer connection attempt. The negotiator creates a fresh
// Session each time it starts and closes it on hangup.
type Session interface {
	AddLocalMedia(m Media) error
	CreateOffer() (sdp string, err error)
	CreateAnswer() (sdp string, err error)
	SetRemoteDescription(t protocol.SignalType, sdp string) error
	AddICECandidate(c protocol.Candidate) error
	Close() error
}

// SessionEvents are the callbacks a Session fires. They may be invoked
// from any goroutine.
type SessionEvents struct {
	OnCandidate   func(c protocol.Candidate)
	OnStateChange func(state string)
}

// SessionFactory creates Sessions.
type SessionFactory interface {
	NewSession(ev SessionEvents) (Session, error)
}
