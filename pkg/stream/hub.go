// Package stream serves generated TDM frames and trigger analysis to websocket
// clients.
package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tdm/pkg/metrics"
)

const sendBuffer = 256

type Client struct {
	conn *websocket.Conn
	send chan interface{}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	log     *logrus.Entry
	metrics *metrics.Metrics
}

func NewHub(log *logrus.Entry, m *metrics.Metrics) *Hub {
	return &Hub{clients: make(map[*Client]bool), log: log, metrics: m}
}

func (h *Hub) register(conn *websocket.Conn) *Client {
	c := &Client{conn: conn, send: make(chan interface{}, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.Clients.Inc()
	}
	h.log.WithField("clients", n).Info("client connected")
	go c.writePump()
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := h.clients[c]
	if removed {
		delete(h.clients, c)
		close(c.send) // stops writePump
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !removed {
		return
	}
	if h.metrics != nil {
		h.metrics.Clients.Dec()
	}
	h.log.WithField("clients", n).Info("client disconnected")
}

// Len reports connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. A client whose buffer is full misses
// the message instead of stalling the run.
func (h *Hub) Broadcast(msg interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Deliver queues msg for every client, waiting up to timeout in total for
// full buffers to drain. Clients still full at the deadline are disconnected.
// It returns the number of clients that received msg.
func (h *Hub) Deliver(msg interface{}, timeout time.Duration) int {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var stale []*Client
	delivered := 0
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
			delivered++
			continue
		default:
		}
		select {
		case c.send <- msg:
			delivered++
		case <-timer.C:
			// The deadline is shared; later clients get one more non-blocking try.
			timer.Reset(0)
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.log.Warn("client too slow for final message, disconnecting")
		h.unregister(c)
	}
	return delivered
}
