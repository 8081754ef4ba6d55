package negotiation

import (
	"fmt"

	"github.com/BioHazard786/pairlink/internal/config"
	"github.com/BioHazard786/pairlink/internal/netutil"
	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// PionSessionFactory creates Sessions backed by pion PeerConnections.
type PionSessionFactory struct {
	config webrtc.Configuration
	log    zerolog.Logger
}

// NewPionSessionFactory builds the ICE configuration from cfg. Relay-only
// transport is used when TURN is configured and either requested or the
// host looks like it sits behind a VPN or CGNAT.
func NewPionSessionFactory(cfg *config.Client, l zerolog.Logger) *PionSessionFactory {
	iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.Relay || netutil.ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return &PionSessionFactory{
		config: webrtc.Configuration{
			ICEServers:         iceServers,
			ICETransportPolicy: policy,
		},
		log: l,
	}
}

// Config returns the configuration new peer connections are created with.
func (f *PionSessionFactory) Config() webrtc.Configuration {
	return f.config
}

func (f *PionSessionFactory) NewSession(ev SessionEvents) (Session, error) {
	pc, err := webrtc.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || ev.OnCandidate == nil {
			return
		}
		init := c.ToJSON()
		ev.OnCandidate(protocol.Candidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if ev.OnStateChange != nil {
			ev.OnStateChange(s.String())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f.log.Info().Str("kind", track.Kind().String()).Str("codec", track.Codec().MimeType).Msg("remote track")
		// Drain the track; nothing renders it.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := track.Read(buf); err != nil {
					return
				}
			}
		}()
	})

	return &pionSession{pc: pc}, nil
}

type pionSession struct {
	pc *webrtc.PeerConnection
}

func (s *pionSession) AddLocalMedia(m Media) error {
	for _, track := range m.Tracks() {
		sender, err := s.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
		// RTCP has to be read for interceptors to work.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	return nil
}

func (s *pionSession) CreateOffer() (string, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return s.pc.LocalDescription().SDP, nil
}

func (s *pionSession) CreateAnswer() (string, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return s.pc.LocalDescription().SDP, nil
}

func (s *pionSession) SetRemoteDescription(t protocol.SignalType, sdp string) error {
	var sdpType webrtc.SDPType
	switch t {
	case protocol.SignalOffer:
		sdpType = webrtc.SDPTypeOffer
	case protocol.SignalAnswer:
		sdpType = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("%w: %q is not a description", protocol.ErrUnknownSignal, t)
	}
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: sdp})
}

func (s *pionSession) AddICECandidate(c protocol.Candidate) error {
	return s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

func (s *pionSession) Close() error {
	return s.pc.Close()
}
