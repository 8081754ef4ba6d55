package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BioHazard786/pairlink/internal/netutil"
	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned by Send after the connection has gone away.
var ErrClosed = errors.New("signaling connection closed")

// Client manages the websocket connection to the relay.
type Client struct {
	serverURL string
	codec     protocol.Codec
	dialer    *websocket.Dialer
	log       zerolog.Logger

	conn     *websocket.Conn
	incoming chan *protocol.Message
	outgoing chan *protocol.Message
	done     chan struct{}
	once     sync.Once

	// closed is closed once either pump has exited.
	closed     chan struct{}
	closedOnce sync.Once
}

// New creates a client for serverURL. Frames are written with codec;
// both codecs are accepted on read.
func New(serverURL string, codec protocol.Codec, l zerolog.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		codec:     codec,
		dialer: &websocket.Dialer{
			NetDialContext:   netutil.DefaultResolver.DialContext,
			HandshakeTimeout: 15 * time.Second,
		},
		log:      l,
		incoming: make(chan *protocol.Message, 32),
		outgoing: make(chan *protocol.Message, 32),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// Connect dials the relay and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	c.log.Debug().Str("url", c.serverURL).Str("codec", c.codec.Name()).Msg("connected to relay")

	go c.readPump()
	go c.writePump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.markClosed()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("relay connection lost")
			}
			return
		}

		codec, ok := protocol.CodecForFrame(frameType)
		if !ok {
			continue
		}
		var msg protocol.Message
		if err := codec.Unmarshal(data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("malformed frame from relay")
			continue
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.markClosed()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			b, err := c.codec.Marshal(msg)
			if err != nil {
				c.log.Error().Err(err).Str("event", msg.Event).Msg("encoding message")
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), b); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.drain()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.closed:
			return
		}
	}
}

// drain flushes messages queued before Close, so a final "bye" is not lost.
func (c *Client) drain() {
	for {
		select {
		case msg := <-c.outgoing:
			if b, err := c.codec.Marshal(msg); err == nil {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if c.conn.WriteMessage(c.codec.FrameType(), b) != nil {
					return
				}
			}
		default:
			return
		}
	}
}

func (c *Client) markClosed() {
	c.closedOnce.Do(func() { close(c.closed) })
}

// Send queues msg for the relay. It returns ErrClosed once Close was
// called or the connection was lost.
func (c *Client) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-c.closed:
		return ErrClosed
	}
}

// Incoming returns the channel of events from the relay. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Close sends a close frame and tears the connection down. It is safe to
// call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}
