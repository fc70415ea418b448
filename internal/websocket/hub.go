package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"

	"photoflow-web/internal/event"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Client is one open tab listening for its browser session's events.
type Client struct {
	hub       *Hub
	conn      *gws.Conn
	sessionID string
	send      chan []byte
}

// Hub fans session events out to the tabs of the browser they belong to.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	bus      event.Bus
	upgrader gws.Upgrader
	count    atomic.Int64
	logger   *slog.Logger
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		bus:        bus,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.Default().With("component", "websocket"),
	}
}

// Len is the number of registered clients.
func (h *Hub) Len() int {
	return int(h.count.Load())
}

// Run delivers events until ctx is done, then closes every client. It must
// only be called once.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.SessionID == "" {
				continue
			}

			message, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err)
				continue
			}

			for client := range h.clients {
				if client.sessionID != e.SessionID {
					continue
				}
				select {
				case client.send <- message:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
}

// Serve upgrades the request and streams sessionID's events to it. It
// returns once the connection is registered.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}

	client := &Client{hub: h, conn: conn, sessionID: sessionID, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- client:
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-h.done:
		_ = conn.Close()
		return fmt.Errorf("hub stopped")
	}

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump discards anything the tab sends and notices when it goes away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseNormalClosure) {
				c.hub.logger.Debug("websocket closed", "session_id", c.sessionID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
