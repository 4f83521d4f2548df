package sse

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClientNotFound = errors.New("SSE client not found")
	ErrChannelFull    = errors.New("SSE message channel full")
)

// Message represents a message to be sent via SSE.
type Message struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new SSE message.
func NewMessage(event string, data json.RawMessage) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Client represents an active SSE connection. A user may hold several at
// once (multiple tabs or devices); the hub addresses all of them.
type Client struct {
	ClientID    string
	UserID      string
	Topics      []string
	ConnectedAt time.Time
	MessageChan chan *Message
}

// NewClient creates a new SSE client subscribed to the given topics.
func NewClient(clientID, userID string, topics []string) *Client {
	return &Client{
		ClientID:    clientID,
		UserID:      userID,
		Topics:      topics,
		ConnectedAt: time.Now().UTC(),
		MessageChan: make(chan *Message, 100),
	}
}

// Close closes the client's message channel.
func (c *Client) Close() {
	close(c.MessageChan)
}

// Hub manages SSE clients. It doubles as the active-session registry the
// dispatcher consults: a user with no registered client simply receives
// nothing.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ClientID] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.Close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) GetClient(clientID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[clientID]
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToUser delivers to every connection held by userID. Returns the
// number of connections the message was handed to.
func (h *Hub) BroadcastToUser(userID string, message *Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.UserID == userID && trySend(c, message) {
			n++
		}
	}
	return n
}

// BroadcastToTopic delivers to every connection subscribed to topic.
// Receivers are expected to filter by addressee themselves.
func (h *Hub) BroadcastToTopic(topic string, message *Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		for _, t := range c.Topics {
			if t == topic {
				if trySend(c, message) {
					n++
				}
				break
			}
		}
	}
	return n
}

func (h *Hub) SendToClient(clientID string, message *Message) error {
	h.mu.RLock()
	c := h.clients[clientID]
	h.mu.RUnlock()
	if c == nil {
		return ErrClientNotFound
	}
	if !trySend(c, message) {
		return ErrChannelFull
	}
	return nil
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

// trySend never blocks; a full channel means the message is dropped and the
// client recovers through its next pull.
func trySend(c *Client, msg *Message) bool {
	select {
	case c.MessageChan <- msg:
		return true
	default:
		return false
	}
}
