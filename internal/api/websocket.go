// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/douju/douju-editor/internal/store"
	"github.com/douju/douju-editor/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The editor is a local tool; any origin may connect.
		return true
	},
}

// WSClient is one connected editor view.
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	closed    int32
	lastPing  time.Time
	createdAt time.Time
}

// Close marks the client closed and tears down the socket.
func (client *WSClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed reports whether the client was closed.
func (client *WSClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing records liveness.
func (client *WSClient) UpdatePing() {
	client.lastPing = time.Now()
}

// IsExpired reports whether the client went silent past the timeout.
func (client *WSClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(client.lastPing) > timeout
}

// Hub fans graph change notifications out to every connected editor view.
type Hub struct {
	clients       map[*WSClient]bool
	broadcast     chan []byte
	register      chan *WSClient
	unregister    chan *WSClient
	shutdownChan  chan struct{}
	mutex         sync.RWMutex
	pingTimeout   time.Duration
	cleanupTicker *time.Ticker
	logger        *utils.Logger
}

// NewHub creates a hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:      make(map[*WSClient]bool),
		broadcast:    make(chan []byte, 256),
		register:     make(chan *WSClient, 256),
		unregister:   make(chan *WSClient, 256),
		shutdownChan: make(chan struct{}),
		pingTimeout:  60 * time.Second,
		logger:       utils.GetLogger(),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	h.cleanupTicker = time.NewTicker(30 * time.Second)
	defer h.cleanupTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.cleanupTicker.C:
			h.cleanupExpired()

		case message := <-h.broadcast:
			h.deliver(message)

		case <-h.shutdownChan:
			h.closeAll()
			return
		}
	}
}

func (h *Hub) registerClient(client *WSClient) {
	if client == nil {
		return
	}
	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()
	client.UpdatePing()
	h.logger.Info("editor view connected", map[string]interface{}{"clients": h.ClientCount()})
}

func (h *Hub) unregisterClient(client *WSClient) {
	if client == nil {
		return
	}
	h.mutex.Lock()
	delete(h.clients, client)
	h.mutex.Unlock()

	if !client.IsClosed() {
		client.Close()
	}
	h.logger.Info("editor view disconnected", map[string]interface{}{"clients": h.ClientCount()})
}

func (h *Hub) cleanupExpired() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if client.IsClosed() || client.IsExpired(h.pingTimeout) {
			delete(h.clients, client)
			client.Close()
		}
	}
}

func (h *Hub) deliver(message []byte) {
	h.mutex.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		if !client.IsClosed() {
			targets = append(targets, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- message:
		default:
			// Slow consumer, drop the connection rather than block the
			// dispatch loop.
			client.Close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*WSClient]bool)
}

// Shutdown stops the dispatch loop and closes every connection.
func (h *Hub) Shutdown() {
	close(h.shutdownChan)
}

// ClientCount returns the number of connected views.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// BroadcastChange pushes one graph change notification to all views.
func (h *Hub) BroadcastChange(change store.Change) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":     "graph_change",
		"kind":     string(change.Kind),
		"id":       change.ID,
		"revision": change.Revision,
	})
	if err != nil {
		h.logger.Error("marshal change notification", map[string]interface{}{"error": err.Error()})
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, change notification dropped", nil)
	}
}

// BroadcastEvent pushes an arbitrary typed notification to all views,
// for out-of-band events such as external file edits.
func (h *Hub) BroadcastEvent(eventType string, payload map[string]interface{}) {
	message := map[string]interface{}{"type": eventType}
	for k, v := range payload {
		message[k] = v
	}
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("marshal event notification", map[string]interface{}{"error": err.Error()})
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast queue full, event notification dropped", nil)
	}
}

// Status summarizes the hub for the debug endpoint.
func (h *Hub) Status() map[string]interface{} {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	views := make([]interface{}, 0, len(h.clients))
	for client := range h.clients {
		if !client.IsClosed() {
			views = append(views, map[string]interface{}{
				"connected_at": client.createdAt.Format(time.RFC3339),
				"last_ping":    client.lastPing.Format(time.RFC3339),
			})
		}
	}
	return map[string]interface{}{
		"total_connections": len(views),
		"views":             views,
	}
}

// ServeWS upgrades an HTTP request into a hub client and runs its pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &WSClient{
		conn:      conn,
		send:      make(chan []byte, 64),
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}
	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

func (h *Hub) readPump(client *WSClient) {
	defer func() {
		h.unregister <- client
	}()

	client.conn.SetReadDeadline(time.Now().Add(h.pingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(h.pingTimeout))
		return nil
	})

	for {
		// Views only listen; inbound frames just refresh liveness.
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		client.UpdatePing()
	}
}

func (h *Hub) writePump(client *WSClient) {
	pinger := time.NewTicker(h.pingTimeout / 2)
	defer func() {
		pinger.Stop()
		client.Close()
	}()

	// The send channel is never closed; the pump exits on write failure or
	// when the connection is marked closed. The channel is then collected
	// with the client.
	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-pinger.C:
			if client.IsClosed() {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
