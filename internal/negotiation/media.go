package negotiation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceFrame = 20 * time.Millisecond

// SilenceSource stands in for a capture device: it produces one Opus audio
// track carrying silence. The terminal client has no camera or microphone
// access.
type SilenceSource struct {
	StreamID string
}

func (s SilenceSource) Open(ctx context.Context) (Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamID := s.StreamID
	if streamID == "" {
		streamID = "pairlink"
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	m := &silence{track: track, quit: make(chan struct{})}
	go m.pump()
	return m, nil
}

type silence struct {
	track *webrtc.TrackLocalStaticSample
	quit  chan struct{}
	once  sync.Once
}

func (m *silence) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{m.track}
}

func (m *silence) pump() {
	ticker := time.NewTicker(silenceFrame)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			if err := m.track.WriteSample(media.Sample{Data: opusSilence, Duration: silenceFrame}); err != nil {
				return
			}
		}
	}
}

func (m *silence) Close() error {
	m.once.Do(func() { close(m.quit) })
	return nil
}
