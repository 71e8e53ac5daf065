package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flexifi/poolwatch/internal/metrics"
	"github.com/flexifi/poolwatch/internal/model"
)

// AllTopics subscribes a client to every watch.
const AllTopics = "*"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// client is a single websocket connection.
type client struct {
	conn  *websocket.Conn
	topic string
	send  chan []byte
}

func (c *client) wants(topic string) bool {
	return c.topic == topic || c.topic == AllTopics
}

// Hub manages websocket clients and topic-based broadcasting.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	latest  map[string][]byte
	order   []string

	register   chan *client
	unregister chan *client
	stopCh     chan struct{}
	stopOnce   sync.Once

	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHub creates a Hub. allowedOrigins restricts browser origins; empty
// allows all. m may be nil.
func NewHub(allowedOrigins []string, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:    make(map[*client]bool),
		latest:     make(map[string][]byte),
		register:   make(chan *client),
		unregister: make(chan *client),
		stopCh:     make(chan struct{}),
		metrics:    m,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin] || set["*"]
	}
}

// Start begins the hub's run loop.
func (h *Hub) Start() {
	go h.run()
}

// Stop disconnects all clients. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			// Late joiners start from the current view.
			for _, topic := range h.order {
				if c.wants(topic) {
					select {
					case c.send <- h.latest[topic]:
					default:
					}
				}
			}
			h.mu.Unlock()
			h.metrics.ClientConnected(1)
			h.logger.Info("ws client registered", "topic", c.topic)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.metrics.ClientConnected(-1)
			}
			h.mu.Unlock()
		case <-h.stopCh:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
				h.metrics.ClientConnected(-1)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Publish renders st and sends it to every client of watch.
func (h *Hub) Publish(watch string, st model.FetchState) {
	msg := Message{
		Topic:     watch,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      NewView(watch, st),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ws marshal error", "error", err)
		return
	}

	h.mu.Lock()
	if _, seen := h.latest[watch]; !seen {
		h.order = append(h.order, watch)
	}
	h.latest[watch] = payload
	for c := range h.clients {
		if c.wants(watch) {
			select {
			case c.send <- payload:
			default:
				// Client too slow, drop message
			}
		}
	}
	h.mu.Unlock()
}

// Latest returns the last published view for watch.
func (h *Hub) Latest(watch string) (View, bool) {
	h.mu.RLock()
	payload, ok := h.latest[watch]
	h.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return View{}, false
	}
	return msg.Data, true
}

// ServeWS returns an HTTP handler that upgrades connections to websocket
// and subscribes them to topic.
func (h *Hub) ServeWS(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", "error", err)
			return
		}

		c := &client{
			conn:  conn,
			topic: topic,
			send:  make(chan []byte, sendBuffer),
		}
		select {
		case h.register <- c:
		case <-h.stopCh:
			conn.Close()
			return
		}

		go h.writePump(c)
		go h.readPump(c)
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
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump discards client frames and keeps the read deadline alive on pong.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stopCh:
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
