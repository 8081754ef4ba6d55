package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBrowserShapes(t *testing.T) {
	var s Signal

	require.NoError(t, json.Unmarshal([]byte(`{"type":"offer","sdp":"v=0\r\n"}`), &s))
	assert.Equal(t, SignalOffer, s.Type)
	assert.Equal(t, "v=0\r\n", s.SDP)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"candidate","label":1,"id":"audio","candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`), &s))
	require.Equal(t, SignalCandidate, s.Type)
	require.NotNil(t, s.Candidate)
	assert.Equal(t, uint16(1), *s.Candidate.SDPMLineIndex)
	assert.Equal(t, "audio", *s.Candidate.SDPMid)

	require.NoError(t, json.Unmarshal([]byte(`"bye"`), &s))
	assert.Equal(t, SignalBye, s.Type)

	require.NoError(t, json.Unmarshal([]byte(`"got user media"`), &s))
	assert.Equal(t, SignalCustom, s.Type)
	assert.Equal(t, GotUserMediaText, s.Text)
}

func TestDecodeRejects(t *testing.T) {
	var s Signal
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"type":"pranswer","sdp":"x"}`), &s), ErrUnknownSignal)
	assert.ErrorIs(t, json.Unmarshal([]byte(`null`), &s), ErrEmptySignal)
	assert.Error(t, json.Unmarshal([]byte(`{"type":`), &s))
}

func TestEncodeCandidateWireNames(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	b, err := json.Marshal(NewCandidate(Candidate{Candidate: "candidate:abc", SDPMid: &mid, SDPMLineIndex: &idx}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"candidate","label":0,"id":"0","candidate":"candidate:abc"}`, string(b))

	b, err = json.Marshal(Bye())
	require.NoError(t, err)
	assert.Equal(t, `"bye"`, string(b))

	_, err = json.Marshal(Signal{Type: SignalCandidate})
	assert.ErrorIs(t, err, ErrEmptySignal)
}

func TestCustomByeIsBye(t *testing.T) {
	assert.Equal(t, SignalBye, Custom("bye").Type)
}

func TestSignalMessage(t *testing.T) {
	m, err := NewSignalMessage("x", Answer("sdp"))
	require.NoError(t, err)
	assert.Equal(t, EventMessage, m.Event)
	assert.Equal(t, "x", m.Room)

	s, err := m.Signal()
	require.NoError(t, err)
	assert.Equal(t, Answer("sdp"), s)
}
