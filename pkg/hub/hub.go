// Package hub fans tracker state and camera frames out to websocket
// clients. One goroutine owns the client set; slow clients are dropped
// rather than allowed to stall the broadcaster.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-lockon/internal/log"
)

// MessageType selects the websocket frame a message is written as
type MessageType int

const (
	// JSONMessage is written as a text frame (state snapshots)
	JSONMessage MessageType = iota
	// BinaryMessage is written as a binary frame (JPEG frames)
	BinaryMessage
)

// Message is one payload queued for every client
type Message struct {
	Type MessageType
	Data []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	// Guards clients for read-only access from outside
	mu sync.RWMutex

	// Closed when Run returns
	done chan struct{}

	running atomic.Bool
	dropped atomic.Uint64
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Component("hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
// Messages already queued when ctx ends are still handed to clients
// before their connections are closed.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.drain()
		h.closeAll()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "client", client.ID, "total", count)
			h.greet(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "client", client.ID, "remaining", count)

		case message := <-h.broadcast:
			h.fanout(message)
		}
	}
}

// greet queues a client's first message. It runs after the client joined
// the set, so any later broadcast reaches the client after it.
func (h *Hub) greet(client *Client) {
	if client.greeting == nil {
		return
	}
	msg, ok := client.greeting()
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		h.deliver(client, msg)
	}
}

func (h *Hub) fanout(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.deliver(client, message)
	}
}

// deliver must be called with mu held
func (h *Hub) deliver(client *Client, message Message) {
	select {
	case client.send <- message:
	default:
		close(client.send)
		delete(h.clients, client)
		h.logger.Warn("dropped slow client", "client", client.ID)
	}
}

// drain hands queued broadcasts to clients without waiting for more.
func (h *Hub) drain() {
	for {
		select {
		case message := <-h.broadcast:
			h.fanout(message)
		default:
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Broadcast sends a message to all connected clients. It never blocks;
// when the broadcast queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast queue full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Type: JSONMessage, Data: data})
	return nil
}

// BroadcastBinary broadcasts binary data (e.g., camera frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Message{Type: BinaryMessage, Data: data})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of messages dropped at the broadcast queue
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Name returns the hub name
func (h *Hub) Name() string {
	return h.name
}

// Done is closed once Run has returned and every client was closed.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
