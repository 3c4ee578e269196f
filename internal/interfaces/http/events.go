package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/config/versions"
)

const clientBuffer = 16

// Hub streams configuration events to WebSocket subscribers
type Hub struct {
	mu           sync.RWMutex
	clients      map[*client]struct{}
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

type client struct {
	conn *websocket.Conn
	send chan versions.Event
}

// NewHub creates an empty hub. writeTimeout bounds each message write.
func NewHub(writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		clients:      make(map[*client]struct{}),
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Listener returns a versions.Listener that broadcasts through the hub
func (h *Hub) Listener() versions.Listener {
	return h.Broadcast
}

// Broadcast queues ev for every subscriber. Slow subscribers drop events
// rather than block the writer that produced them.
func (h *Hub) Broadcast(ev versions.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			log.Warn().Str("event", string(ev.Type)).Msg("Event subscriber too slow, dropping event")
		}
	}
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the peer leaves
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan versions.Event, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	log.Info().Str("remote", r.RemoteAddr).Msg("Event subscriber connected")

	go h.writeLoop(c)

	// Inbound messages are ignored; reading surfaces the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	log.Info().Str("remote", r.RemoteAddr).Msg("Event subscriber disconnected")
}

func (h *Hub) writeLoop(c *client) {
	for ev := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			log.Warn().Err(err).Msg("Event write failed")
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.conn.Close()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
