package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zentourist/kino-live-audio-ng/internal/metrics"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxCommandSize bounds inbound command frames
	maxCommandSize = 4 * 1024

	// clientSendBuffer is the per-client outbound queue depth
	clientSendBuffer = 256
)

// Hub maintains the set of connected consumers and fans encoded messages
// out to them. A consumer whose send queue is full is disconnected rather
// than allowed to stall the capture path.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new hub. queueSize bounds the broadcast queue.
func NewHub(logger *slog.Logger, m *metrics.Metrics, queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Hub{
		logger:     logger,
		metrics:    m,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, queueSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It should be called in a goroutine and
// returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.SetBridgeClients(count)
			}
			h.logger.Info("Bridge consumer connected",
				slog.String("remote_addr", c.conn.RemoteAddr().String()),
				slog.Int("total", count))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.SetBridgeClients(count)
			}
			h.logger.Info("Bridge consumer disconnected",
				slog.Int("remaining", count))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Consumer can't keep up, disconnect it
					close(c.send)
					delete(h.clients, c)
					if h.metrics != nil {
						h.metrics.RecordBridgeDrop()
					}
					h.logger.Warn("Dropped slow bridge consumer",
						slog.String("remote_addr", c.conn.RemoteAddr().String()))
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.SetBridgeClients(count)
			}

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.SetBridgeClients(0)
			}
			return
		}
	}
}

// Broadcast queues an encoded message for delivery to every connected
// consumer. It never blocks: when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg []byte) bool {
	select {
	case h.broadcast <- msg:
		return true
	case <-h.done:
		return false
	default:
		if h.metrics != nil {
			h.metrics.RecordBridgeDrop()
		}
		h.logger.Warn("Bridge broadcast queue full, dropping message",
			slog.Int("size", len(msg)))
		return false
	}
}

// ClientCount returns the number of connected consumers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop shuts down the hub loop and closes all client queues
func (h *Hub) Stop() {
	close(h.done)
}

// client represents a single consumer connection
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	h.register <- c
	return c
}

// reply queues a message for this consumer only
func (c *client) reply(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readPump reads inbound command frames until the connection closes
func (c *client) readPump(onCommand func(*client, []byte)) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxCommandSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		onCommand(c, data)
	}
}

// writePump is the only goroutine that writes to the connection
func (c *client) writePump() {
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
			if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
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
