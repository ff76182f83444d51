// Package ws streams marketplace events to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256

	// backlogLimit caps the replay a reconnecting client gets.
	backlogLimit = 1000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type message struct {
	seq  uint64
	typ  domain.EventType
	data []byte
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan message
	types map[domain.EventType]bool // empty means every type
	// lastSeq is the highest seq already written; live messages at or below
	// it were covered by the backlog.
	lastSeq uint64
}

func (c *client) wants(t domain.EventType) bool {
	return len(c.types) == 0 || c.types[t]
}

// Hub fans events out to connected websocket clients. It implements
// ports.EventPublisher; delivery to clients is best effort and a client
// that falls behind loses messages.
type Hub struct {
	outbox     ports.EventOutbox
	clients    map[*client]bool
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewHub creates a hub. outbox serves the ?since= backlog and may be nil.
func NewHub(outbox ports.EventOutbox, log zerolog.Logger) *Hub {
	return &Hub{
		outbox:     outbox,
		clients:    make(map[*client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Name implements ports.EventPublisher.
func (h *Hub) Name() string { return "websocket" }

// Publish queues event for every interested client. It never fails on
// account of slow or absent clients.
func (h *Hub) Publish(ctx context.Context, event domain.EventPayload) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message{seq: event.Seq, typ: event.Type, data: data}:
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.log.Warn().Uint64("seq", event.Seq).Msg("ws: broadcast buffer full, dropping event")
	}
	return nil
}

// Run starts the hub's main event loop. It returns nil once ctx is cancelled,
// after disconnecting every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Int("total_clients", n).Msg("ws: client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Int("total_clients", n).Msg("ws: client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.typ) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					h.log.Warn().Uint64("seq", msg.seq).Msg("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the client.
//
// Query parameters:
//
//	since  replay stored events with a greater seq before live ones
//	types  comma separated event types to receive (LISTED, SOLD)
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var since *uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = &v
	}
	types := make(map[domain.EventType]bool)
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			switch et := domain.EventType(strings.ToUpper(strings.TrimSpace(t))); et {
			case domain.EventListed, domain.EventSold:
				types[et] = true
			default:
				http.Error(w, "invalid types", http.StatusBadRequest)
				return
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}

	c := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan message, sendBufferSize),
		types: types,
	}

	// Register before reading the backlog so nothing committed in between
	// is missed; writePump drops the overlap by seq.
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	if since != nil && h.outbox != nil {
		if err := c.replay(r.Context(), *since); err != nil {
			h.log.Warn().Err(err).Msg("ws: backlog replay failed")
			select {
			case h.unregister <- c:
			case <-h.done:
			}
			conn.Close()
			return
		}
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) replay(ctx context.Context, since uint64) error {
	events, err := c.hub.outbox.Since(ctx, since, backlogLimit)
	if err != nil {
		return err
	}
	for i := range events {
		p := events[i].Payload()
		if !c.wants(p.Type) {
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
		c.lastSeq = p.Seq
	}
	return nil
}

// readPump only services control frames; clients do not send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn().Err(err).Msg("ws: unexpected close error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if msg.seq <= c.lastSeq {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				return
			}
			c.lastSeq = msg.seq

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
