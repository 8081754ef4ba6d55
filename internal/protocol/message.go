package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope for every frame exchanged between a client and
// the relay. Which fields are set depends on Event.
type Message struct {
	Event   string          `json:"event" msgpack:"event"`
	Room    string          `json:"room,omitempty" msgpack:"room,omitempty"`
	ID      string          `json:"id,omitempty" msgpack:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`
	Address string          `json:"address,omitempty" msgpack:"address,omitempty"`
	Log     []string        `json:"log,omitempty" msgpack:"log,omitempty"`
}

// Events understood by the relay and its clients.
const (
	// C2S
	EventCreateOrJoin = "create or join"
	EventBye          = "bye"

	// S2C
	EventCreated  = "created"
	EventJoined   = "joined"
	EventJoin     = "join"
	EventFull     = "full"
	EventReady    = "ready"
	EventLog      = "log"
	EventPeerLeft = "peer left"

	// Both directions.
	EventMessage = "message"
	EventIPAddr  = "ipaddr"
)

// LogPrefix heads every log line the relay sends to a client.
const LogPrefix = "Message from server:"

// NewSignalMessage wraps a signal into a "message" event for room.
func NewSignalMessage(room string, s Signal) (*Message, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode %s signal: %w", s.Type, err)
	}
	return &Message{Event: EventMessage, Room: room, Payload: b}, nil
}

// Signal decodes the payload of a "message" event.
func (m *Message) Signal() (Signal, error) {
	var s Signal
	if err := json.Unmarshal(m.Payload, &s); err != nil {
		return Signal{}, err
	}
	return s, nil
}
