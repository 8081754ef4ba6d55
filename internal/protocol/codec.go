package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns envelopes into websocket frames and back.
type Codec interface {
	Name() string
	// FrameType is the websocket message type frames are written with.
	FrameType() int
	Marshal(m *Message) ([]byte, error)
	Unmarshal(b []byte, m *Message) error
}

var (
	// JSON is the default codec, used by browsers.
	JSON Codec = jsonCodec{}

	// Msgpack sends binary frames.
	Msgpack Codec = msgpackCodec{}
)

// CodecByName looks up a codec by the name clients pass in ?codec=.
// An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", JSON.Name():
		return JSON, nil
	case Msgpack.Name():
		return Msgpack, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// CodecForFrame picks the codec able to decode a frame of the given
// websocket message type.
func CodecForFrame(frameType int) (Codec, bool) {
	switch frameType {
	case websocket.TextMessage:
		return JSON, true
	case websocket.BinaryMessage:
		return Msgpack, true
	}
	return nil, false
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Marshal(m *Message) ([]byte, error) { return json.Marshal(m) }

func (jsonCodec) Unmarshal(b []byte, m *Message) error { return json.Unmarshal(b, m) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return "msgpack" }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Marshal(m *Message) ([]byte, error) { return msgpack.Marshal(m) }

func (msgpackCodec) Unmarshal(b []byte, m *Message) error { return msgpack.Unmarshal(b, m) }
