// Package monitoring pushes chart and training events to browser pages over
// websocket.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"linpredict/logging"
)

// TrainingProgress carries sampled per-epoch losses.
const TrainingProgress = "training_progress"

// ErrHubStopped is returned by Publish after Stop.
var ErrHubStopped = errors.New("websocket hub stopped")

// Message is the envelope every page receives.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// ClientMessage is sent by pages to manage subscriptions.
type ClientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// Envelope is an unencoded message, used for connect-time snapshots.
type Envelope struct {
	Type string
	Data interface{}
}

type outbound struct {
	msgType string
	payload []byte
}

// Client is one connected page.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string

	mu            sync.RWMutex
	subscriptions map[string]bool
}

// wants reports whether the client receives msgType; a client with no
// subscriptions receives everything.
func (c *Client) wants(msgType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[msgType]
}

// Stats counts hub activity.
type Stats struct {
	ConnectedClients int64     `json:"connected_clients"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesDropped  int64     `json:"messages_dropped"`
	StartTime        time.Time `json:"start_time"`
}

// Hub fans messages out to every connected client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc
	snapshot   func() []Envelope

	connected atomic.Int64
	sent      atomic.Int64
	dropped   atomic.Int64
	started   time.Time
}

// NewHub creates a hub. snapshot, when set, supplies messages every newly
// connected page receives first.
func NewHub(snapshot func() []Envelope) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:      ctx,
		cancel:   cancel,
		snapshot: snapshot,
		started:  time.Now(),
	}
}

// Start runs the hub loop until Stop.
func (h *Hub) Start() {
	log := logging.Logger()
	defer log.Info("websocket hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			n := h.connected.Add(1)
			log.Info("client connected", zap.String("client_id", client.clientID), zap.Int64("total", n))
			h.sendSnapshot(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connected.Add(-1)
			}
			h.mu.Unlock()
			log.Info("client disconnected", zap.String("client_id", client.clientID), zap.Int64("total", h.connected.Load()))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.msgType) {
					continue
				}
				select {
				case client.send <- msg.payload:
					h.sent.Add(1)
				default:
					h.dropped.Add(1)
					close(client.send)
					delete(h.clients, client)
					h.connected.Add(-1)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.connected.Store(0)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) sendSnapshot(client *Client) {
	if h.snapshot == nil {
		return
	}
	for _, env := range h.snapshot() {
		payload, err := encode(env.Type, env.Data)
		if err != nil {
			logging.Logger().Warn("failed to encode snapshot", zap.String("type", env.Type), zap.Error(err))
			continue
		}
		select {
		case client.send <- payload:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

// Stop closes every connection and ends Start.
func (h *Hub) Stop() {
	h.cancel()
}

// Stats returns a snapshot of the counters.
func (h *Hub) Stats() Stats {
	return Stats{
		ConnectedClients: h.connected.Load(),
		MessagesSent:     h.sent.Load(),
		MessagesDropped:  h.dropped.Load(),
		StartTime:        h.started,
	}
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:          conn,
		send:          make(chan []byte, 256),
		clientID:      uuid.NewString(),
		subscriptions: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// Publish encodes data and queues it for every interested client. When the
// queue is full the message is dropped.
func (h *Hub) Publish(msgType string, data interface{}) error {
	if h.ctx.Err() != nil {
		return ErrHubStopped
	}
	payload, err := encode(msgType, data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- outbound{msgType: msgType, payload: payload}:
	default:
		h.dropped.Add(1)
		logging.Logger().Warn("websocket broadcast queue is full, dropping message", zap.String("type", msgType))
	}
	return nil
}

func encode(msgType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      raw,
		ID:        uuid.NewString(),
	})
}

const (
	pingPeriod       = 30 * time.Second
	pongWait         = 2 * pingPeriod
	writeWait        = 10 * time.Second
	maxClientMessage = 4096
)

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Logger().Debug("websocket write failed", zap.String("client_id", c.clientID), zap.Error(err))
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

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()

	// The server read timeout stays on a hijacked connection; pongs extend it.
	c.conn.SetReadLimit(maxClientMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Logger().Warn("websocket read failed", zap.String("client_id", c.clientID), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Logger().Debug("failed to parse client message", zap.Error(err))
			continue
		}
		c.handleClientMessage(msg)
	}
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case "subscribe":
		c.subscriptions[msg.Topic] = true
	case "unsubscribe":
		delete(c.subscriptions, msg.Topic)
	}
}
