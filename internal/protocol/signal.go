package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SignalType tags the variant carried by a Signal.
type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
	SignalBye       SignalType = "bye"
	SignalCustom    SignalType = "custom"
)

// Well-known plain-text payloads.
const (
	ByeText          = "bye"
	GotUserMediaText = "got user media"
)

var (
	ErrEmptySignal   = errors.New("empty signal payload")
	ErrUnknownSignal = errors.New("unknown signal type")
)

// Candidate is a network path descriptor. The JSON field names match the
// ones browsers put on the wire ("label" is the m-line index, "id" the mid).
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"id,omitempty"`
	SDPMLineIndex *uint16 `json:"label,omitempty"`
}

// Signal is the opaque payload of a "message" event: an offer, an answer,
// a candidate, the "bye" string or any other string.
type Signal struct {
	Type      SignalType
	SDP       string
	Candidate *Candidate
	Text      string
}

// Offer returns an offer signal.
func Offer(sdp string) Signal { return Signal{Type: SignalOffer, SDP: sdp} }

// Answer returns an answer signal.
func Answer(sdp string) Signal { return Signal{Type: SignalAnswer, SDP: sdp} }

// Bye returns the hangup signal.
func Bye() Signal { return Signal{Type: SignalBye} }

// Custom returns a free-form text signal.
func Custom(text string) Signal {
	if text == ByeText {
		return Bye()
	}
	return Signal{Type: SignalCustom, Text: text}
}

// NewCandidate returns a candidate signal.
func NewCandidate(c Candidate) Signal { return Signal{Type: SignalCandidate, Candidate: &c} }

type wireSignal struct {
	Type      SignalType `json:"type"`
	SDP       string     `json:"sdp,omitempty"`
	Label     *uint16    `json:"label,omitempty"`
	ID        *string    `json:"id,omitempty"`
	Candidate string     `json:"candidate,omitempty"`
}

// MarshalJSON encodes descriptions and candidates as objects and bye /
// custom signals as bare JSON strings.
func (s Signal) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case SignalOffer, SignalAnswer:
		return json.Marshal(wireSignal{Type: s.Type, SDP: s.SDP})
	case SignalCandidate:
		if s.Candidate == nil {
			return nil, fmt.Errorf("candidate signal: %w", ErrEmptySignal)
		}
		return json.Marshal(wireSignal{
			Type:      SignalCandidate,
			Label:     s.Candidate.SDPMLineIndex,
			ID:        s.Candidate.SDPMid,
			Candidate: s.Candidate.Candidate,
		})
	case SignalBye:
		return json.Marshal(ByeText)
	case SignalCustom:
		return json.Marshal(s.Text)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSignal, s.Type)
}

// UnmarshalJSON accepts every shape produced by MarshalJSON.
func (s *Signal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ErrEmptySignal
	}

	if b[0] == '"' {
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		*s = Custom(text)
		return nil
	}

	var w wireSignal
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	switch w.Type {
	case SignalOffer, SignalAnswer:
		*s = Signal{Type: w.Type, SDP: w.SDP}
	case SignalCandidate:
		*s = NewCandidate(Candidate{
			Candidate:     w.Candidate,
			SDPMid:        w.ID,
			SDPMLineIndex: w.Label,
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSignal, w.Type)
	}
	return nil
}
