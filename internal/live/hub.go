// Package live pushes transaction change notifications to connected
// dashboards over websockets. Messages are scoped to the owning user.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"motolucro/internal/core"
	applog "motolucro/internal/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// Event is the payload sent to a user's sockets.
type Event struct {
	Type        string            `json:"type"`
	Action      string            `json:"action,omitempty"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

type message struct {
	userID string
	data   []byte
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan message
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	started    atomic.Bool

	upgrader websocket.Upgrader
	logger   *applog.Logger
}

func NewHub(logger *applog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 64),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// bearer tokens authenticate the socket, not cookies
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.WithComponent(applog.ComponentLive),
	}
}

// Start runs the hub loop until Stop.
func (h *Hub) Start() {
	if h.started.Swap(true) {
		return
	}
	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*client]struct{})
				h.clients[c.userID] = set
			}
			set[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("Websocket client connected", applog.FieldUserID, c.userID, applog.FieldCount, h.ClientCount(c.userID))

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients[m.userID] {
				select {
				case c.send <- m.data:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.logger.Warn("Dropping slow websocket client", applog.FieldUserID, c.userID)
				h.remove(c)
			}

		case <-h.stop:
			h.mu.Lock()
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// ClientCount returns the number of open sockets for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Notify queues a change notification for every socket of the owner of tx.
// It never blocks the caller; notifications are dropped when the hub is
// saturated or stopped.
func (h *Hub) Notify(action string, tx core.Transaction) {
	data, err := json.Marshal(Event{Type: "transaction", Action: action, Transaction: &tx, Timestamp: time.Now().UTC()})
	if err != nil {
		h.logger.Error("Failed to marshal live event", applog.FieldError, err)
		return
	}
	select {
	case h.broadcast <- message{userID: tx.UserID, data: data}:
	case <-h.stop:
	default:
		h.logger.Warn("Live hub saturated, dropping event", applog.FieldUserID, tx.UserID, applog.FieldAction, action)
	}
}

// ServeWS upgrades the request and attaches the socket to userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to upgrade to websocket", applog.FieldError, err)
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBufferSize)}
	hello, _ := json.Marshal(Event{Type: "connected", Timestamp: time.Now().UTC()})
	c.send <- hello

	select {
	case h.register <- c:
	case <-h.stop:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client frames and unregisters on disconnect.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// Stop closes every socket and ends the hub loop. It is safe to call more
// than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	if h.started.Load() {
		<-h.done
	}
}
