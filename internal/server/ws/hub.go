// Package ws pushes transaction events to browser clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	// contract filters tx events when set
	contract string
	mu       sync.RWMutex
}

// subscribeMsg lets a client narrow the feed to a single contract address.
type subscribeMsg struct {
	Action   string `json:"action"` // "subscribe" or "unsubscribe"
	Contract string `json:"contract"`
}

// Hub manages connected WebSocket clients and fans out TxEvents to them.
// With a SignalBus, events travel through Redis so every server instance
// sees them; without one they are broadcast in-process.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	// done is closed when Run returns so late register and unregister
	// sends do not block forever.
	done       chan struct{}
	bus        domain.SignalBus
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *slog.Logger
	info       Info
}

type broadcastMsg struct {
	contract string
	data     []byte
}

// Info is sent to every client on connect.
type Info struct {
	Network   string    `json:"network"`
	ChainID   int64     `json:"chain_id"`
	Contract  string    `json:"contract"`
	StartedAt time.Time `json:"started_at"`
}

// NewHub creates a hub. bus may be nil. allowedOrigins restricts upgrades
// by Origin header; empty allows all.
func NewHub(bus domain.SignalBus, info Info, allowedOrigins []string, logger *slog.Logger) *Hub {
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws")),
		info:       info,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// PublishTx implements domain.TxEventPublisher. The event is appended to the
// durable stream and published on the tx channel; without a bus it goes
// straight to local clients. Failures are logged.
func (h *Hub) PublishTx(ctx context.Context, ev domain.TxEvent) {
	data, err := json.Marshal(Envelope{Type: "tx_submitted", Payload: ev})
	if err != nil {
		return
	}

	if h.bus == nil {
		h.enqueue(broadcastMsg{contract: ev.Contract, data: data})
		return
	}
	if err := h.bus.StreamAppend(ctx, domain.TxStream, data); err != nil {
		h.logger.WarnContext(ctx, "tx stream append failed", slog.String("error", err.Error()))
	}
	if err := h.bus.Publish(ctx, domain.TxChannel, data); err != nil {
		h.logger.WarnContext(ctx, "tx publish failed", slog.String("error", err.Error()))
		h.enqueue(broadcastMsg{contract: ev.Contract, data: data})
	}
}

func (h *Hub) enqueue(msg broadcastMsg) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping event")
	}
}

// Run starts the hub's main event loop. It handles client registration,
// unregistration, and message broadcasting, and exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	if h.bus != nil {
		go h.subscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.contract) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// subscribe forwards tx channel messages from the bus to local clients.
func (h *Hub) subscribe(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, domain.TxChannel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", domain.TxChannel),
			slog.String("error", err.Error()),
		)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", domain.TxChannel),
				)
				return
			}
			h.enqueue(broadcastMsg{contract: eventContract(data), data: data})
		}
	}
}

func eventContract(data []byte) string {
	var env struct {
		Payload struct {
			Contract string `json:"contract"`
		} `json:"payload"`
	}
	if json.Unmarshal(data, &env) != nil {
		return ""
	}
	return env.Payload.Contract
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	// Queue the hello before the hub owns c.send; Run closes it on shutdown.
	c.sendHello()
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads subscription requests until the connection closes.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if json.Unmarshal(message, &sub) == nil {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		c.contract = msg.Contract
	case "unsubscribe":
		c.contract = ""
	}
}

func (c *client) wants(contract string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contract == "" || contract == "" || strings.EqualFold(c.contract, contract)
}

// sendHello tells the client which network and contract it is watching.
func (c *client) sendHello() {
	msg, err := json.Marshal(Envelope{Type: "hello", Payload: c.hub.info})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writePump pumps messages from the hub to the WebSocket connection as text
// frames, with periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ domain.TxEventPublisher = (*Hub)(nil)
