package signaling

import (
	"fmt"

	"github.com/BioHazard786/pairlink/internal/config"
	"github.com/BioHazard786/pairlink/internal/metrics"
	"github.com/BioHazard786/pairlink/internal/netutil"
	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/BioHazard786/pairlink/internal/room"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Reasons an inbound event is dropped.
const (
	dropMalformed    = "malformed"
	dropRateLimited  = "rate_limited"
	dropInvalidRoom  = "invalid_room"
	dropNotMember    = "not_member"
	dropEmptyPayload = "empty_payload"
	dropUnknown      = "unknown_event"
	dropSlowClient   = "slow_client"
)

// inbound is an event read from a client, queued for the Hub.
type inbound struct {
	client *Client
	msg    *protocol.Message
}

// Hub is the relay. It owns the room registry's writers and every
// client's room membership. All of its state is touched only from the
// Run goroutine, so each inbound event is handled to completion, with
// all its emits queued, before the next one is looked at.
type Hub struct {
	cfg      *config.Server
	registry *room.Registry
	metrics  metrics.Collector
	log      zerolog.Logger
	validate *validator.Validate

	// addrs lists the host addresses reported for "ipaddr".
	addrs func() ([]string, error)

	// clients maps connection IDs to clients.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	quit       chan struct{}
}

// NewHub creates a Hub around registry.
func NewHub(cfg *config.Server, registry *room.Registry, m metrics.Collector, l zerolog.Logger) *Hub {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Hub{
		cfg:        cfg,
		registry:   registry,
		metrics:    m,
		log:        l,
		validate:   validator.New(),
		addrs:      netutil.IPv4Addrs,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 256),
		quit:       make(chan struct{}),
	}
}

// Registry returns the hub's room registry.
func (h *Hub) Registry() *room.Registry { return h.registry }

// Register hands a new connection to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

// Stop terminates Run and closes every client connection.
func (h *Hub) Stop() {
	close(h.quit)
}

// Run starts the hub's main processing loop. It is the single goroutine
// that manages rooms and clients.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.log.Info().Int("clients", len(h.clients)).Msg("stopping hub")
			for _, c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case in := <-h.inbound:
			h.handle(in.client, in.msg)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c.ID] = c
	h.metrics.ClientConnected()
	c.log.Info().Str("codec", c.codec.Name()).Msg("client registered")
}

// handleUnregister tears down a connection's membership. The room comes
// from the hub's own record, never from the client.
func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	h.metrics.ClientDisconnected()

	if c.room != "" {
		roomID := c.room
		c.room = ""
		h.registry.Leave(roomID, c.ID)

		if h.registry.MemberCount(roomID) == 0 {
			h.metrics.RoomClosed()
			c.log.Info().Str("room", roomID).Msg("room deleted")
		} else {
			c.log.Info().Str("room", roomID).Msg("peer left room")
			h.emitToRoom(roomID, nil, &protocol.Message{
				Event: protocol.EventPeerLeft,
				Room:  roomID,
				ID:    c.ID,
			})
		}
	}

	close(c.send)
	c.log.Info().Msg("client unregistered")
}

// handle dispatches a single inbound event.
func (h *Hub) handle(c *Client, m *protocol.Message) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	h.metrics.EventReceived(m.Event)
	c.log.Debug().Str("event", m.Event).Str("room", m.Room).Msg("event received")

	switch m.Event {
	case protocol.EventCreateOrJoin:
		h.handleCreateOrJoin(c, m.Room)

	case protocol.EventMessage:
		h.handleMessage(c, m)

	case protocol.EventIPAddr:
		h.handleIPAddr(c)

	case protocol.EventBye:
		c.log.Info().Str("room", c.room).Msg("received bye")

	default:
		h.metrics.EventDropped(dropUnknown)
		c.log.Warn().Str("event", m.Event).Msg("unknown event")
	}
}

func (h *Hub) handleCreateOrJoin(c *Client, roomID string) {
	h.logTo(c, "Received request to create or join room "+roomID)

	if err := h.validate.Var(roomID, fmt.Sprintf("required,max=%d", h.cfg.MaxRoomLength)); err != nil {
		h.metrics.EventDropped(dropInvalidRoom)
		h.logTo(c, "Invalid room id")
		return
	}

	if c.room != "" && c.room != roomID {
		h.metrics.JoinAttempt("rejected")
		h.logTo(c, fmt.Sprintf("Client ID %s is already in room %s", c.ID, c.room))
		return
	}

	h.logTo(c, fmt.Sprintf("Room %s now has %d client(s)", roomID, h.registry.MemberCount(roomID)))

	outcome := h.registry.Join(roomID, c.ID)
	h.metrics.JoinAttempt(outcome.String())
	l := c.log.With().Str("room", roomID).Str("outcome", outcome.String()).Logger()

	switch outcome {
	case room.Created:
		c.room = roomID
		h.metrics.RoomOpened()
		l.Info().Msg("room created")
		h.logTo(c, fmt.Sprintf("Client ID %s created room %s", c.ID, roomID))
		h.emit(c, &protocol.Message{Event: protocol.EventCreated, Room: roomID, ID: c.ID})

	case room.Joined:
		l.Info().Msg("room joined")
		h.logTo(c, fmt.Sprintf("Client ID %s joined room %s", c.ID, roomID))

		// "join" is for the member that was already there.
		h.emitToRoom(roomID, c, &protocol.Message{Event: protocol.EventJoin, Room: roomID})
		c.room = roomID
		h.emit(c, &protocol.Message{Event: protocol.EventJoined, Room: roomID, ID: c.ID})
		h.emitToRoom(roomID, nil, &protocol.Message{Event: protocol.EventReady, Room: roomID})

	case room.Full:
		l.Info().Msg("room full")
		h.emit(c, &protocol.Message{Event: protocol.EventFull, Room: roomID})

	case room.Duplicate:
		h.logTo(c, fmt.Sprintf("Client ID %s is already in room %s", c.ID, roomID))
	}
}

// handleMessage relays an opaque payload to the sender's room mates.
func (h *Hub) handleMessage(c *Client, m *protocol.Message) {
	if m.Room == "" || m.Room != c.room {
		h.metrics.EventDropped(dropNotMember)
		c.log.Warn().Str("room", m.Room).Msg("message for a room the client is not in")
		return
	}
	if len(m.Payload) == 0 {
		h.metrics.EventDropped(dropEmptyPayload)
		return
	}

	h.logTo(c, "Client said:", string(m.Payload))

	out := &protocol.Message{Event: protocol.EventMessage, Room: m.Room, Payload: m.Payload}
	if n := h.emitToRoom(m.Room, c, out); n > 0 {
		h.metrics.MessageRelayed(len(m.Payload))
	}
}

func (h *Hub) handleIPAddr(c *Client) {
	addrs, err := h.addrs()
	if err != nil {
		c.log.Error().Err(err).Msg("listing interfaces")
		return
	}
	for _, a := range addrs {
		h.emit(c, &protocol.Message{Event: protocol.EventIPAddr, Address: a})
	}
}

// logTo sends a "log" event to a single client.
func (h *Hub) logTo(c *Client, parts ...string) {
	h.emit(c, &protocol.Message{
		Event: protocol.EventLog,
		Log:   append([]string{protocol.LogPrefix}, parts...),
	})
}

// emitToRoom sends m to every member of roomID except skip, and returns
// the number of clients it was queued for.
func (h *Hub) emitToRoom(roomID string, skip *Client, m *protocol.Message) int {
	n := 0
	for _, id := range h.registry.Members(roomID) {
		if skip != nil && id == skip.ID {
			continue
		}
		if c, ok := h.clients[id]; ok && h.emit(c, m) {
			n++
		}
	}
	return n
}

// emit queues m on c's send channel. A client whose queue is full is
// disconnected rather than allowed to stall the hub.
func (h *Hub) emit(c *Client, m *protocol.Message) bool {
	if c.closing {
		return false
	}
	select {
	case c.send <- m:
		return true
	default:
		h.metrics.EventDropped(dropSlowClient)
		c.log.Warn().Msg("send queue full, disconnecting")
		h.drop(c)
		return false
	}
}

// drop closes a client's connection. Its read pump then unregisters it.
func (h *Hub) drop(c *Client) {
	if c.closing {
		return
	}
	c.closing = true
	if c.conn != nil {
		c.conn.Close()
	}
}
