package devicesim

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"smartgate_go/internal/events"
)

const (
	pingInterval = 10 * time.Second
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type pushClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans push frames out to every connected panel.
type Hub struct {
	log     zerolog.Logger
	mu      sync.RWMutex
	clients map[*pushClient]struct{}
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{log: logger, clients: make(map[*pushClient]struct{})}
}

// Serve upgrades r and streams frames until the client leaves. greeting is
// sent before any broadcast.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, greeting []events.Event) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("push upgrade failed")
		return
	}
	c := &pushClient{conn: conn, send: make(chan []byte, 64)}
	for _, ev := range greeting {
		if raw, err := events.Encode(ev); err == nil {
			c.send <- raw
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Str("remote", r.RemoteAddr).Int("clients", n).Msg("push client connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) unregister(c *pushClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if existed {
		close(c.send)
	}
}

// readPump only watches for the peer going away; panels never send.
func (h *Hub) readPump(c *pushClient) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.log.Debug().Err(err).Msg("push client gone")
			return
		}
	}
}

func (h *Hub) writePump(c *pushClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast encodes evs in order and queues them for every client. A client
// whose queue is full is dropped, as a stalled link would be on the device.
func (h *Hub) Broadcast(evs ...events.Event) {
	frames := make([][]byte, 0, len(evs))
	for _, ev := range evs {
		raw, err := events.Encode(ev)
		if err != nil {
			h.log.Error().Err(err).Msg("encode push event")
			continue
		}
		frames = append(frames, raw)
	}
	if len(frames) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		for _, raw := range frames {
			select {
			case c.send <- raw:
			default:
				h.log.Warn().Msg("push client too slow, dropping")
				delete(h.clients, c)
				close(c.send)
			}
			if _, ok := h.clients[c]; !ok {
				break
			}
		}
	}
}

// BroadcastRaw sends raw bytes unchanged, for exercising panel parsing.
func (h *Hub) BroadcastRaw(raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
		}
	}
}

// DropAll closes every push connection, as a device reboot would.
func (h *Hub) DropAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	return n
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
