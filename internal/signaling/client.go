package signaling

import (
	"encoding/json"
	"time"

	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client is a participant: one websocket connection to the relay.
type Client struct {
	// ID identifies the participant. It is assigned on connect and never
	// reused.
	ID string

	hub   *Hub
	conn  *websocket.Conn
	codec protocol.Codec
	log   zerolog.Logger

	// send is a buffered channel of outbound messages, drained by
	// WritePump.
	send chan *protocol.Message

	limiter *rate.Limiter

	// room and closing are owned by the Hub goroutine.
	room    string
	closing bool
}

// NewClient wraps conn. Outbound frames are encoded with codec.
func NewClient(hub *Hub, conn *websocket.Conn, codec protocol.Codec) *Client {
	id := uuid.NewString()

	c := &Client{
		ID:    id,
		hub:   hub,
		conn:  conn,
		codec: codec,
		log:   hub.log.With().Str("client_id", id).Logger(),
		send:  make(chan *protocol.Message, hub.cfg.SendQueue),
	}
	if hub.cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(hub.cfg.RateLimit), hub.cfg.RateBurst)
	}
	return c
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. It is the
// only reader of the connection. When it returns the client is
// unregistered, which is how disconnects reach the room registry.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		msg, ok := c.decode(frameType, data)
		if !ok {
			c.hub.metrics.EventDropped(dropMalformed)
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.hub.metrics.EventDropped(dropRateLimited)
			c.log.Warn().Str("event", msg.Event).Msg("rate limited, event dropped")
			continue
		}

		select {
		case c.hub.inbound <- inbound{client: c, msg: msg}:
		case <-c.hub.quit:
			return
		}
	}
}

// decode parses a frame with the codec matching its websocket type, so a
// client may mix text and binary frames.
func (c *Client) decode(frameType int, data []byte) (*protocol.Message, bool) {
	codec, ok := protocol.CodecForFrame(frameType)
	if !ok {
		return nil, false
	}

	var msg protocol.Message
	if err := codec.Unmarshal(data, &msg); err != nil {
		c.log.Warn().Err(err).Str("codec", codec.Name()).Msg("malformed frame")
		return nil, false
	}
	if msg.Event == "" {
		return nil, false
	}
	// Payloads are relayed as raw JSON, whatever codec carried them in.
	if len(msg.Payload) > 0 && !json.Valid(msg.Payload) {
		c.log.Warn().Str("event", msg.Event).Str("codec", codec.Name()).Msg("payload is not valid JSON")
		return nil, false
	}
	return &msg, true
}

// WritePump pumps messages from the hub to the websocket connection and
// keeps it alive with pings. It is the only writer of the connection.
func (c *Client) WritePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			b, err := c.codec.Marshal(msg)
			if err != nil {
				c.log.Error().Err(err).Str("event", msg.Event).Msg("encoding message")
				continue
			}
			if err := c.conn.WriteMessage(c.codec.FrameType(), b); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
