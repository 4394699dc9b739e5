package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Connection timing
const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// ChannelPrefix is the only channel namespace consoles may subscribe to
const ChannelPrefix = "session:"

// StreamEvent represents an event from streams
type StreamEvent struct {
	Channel   string
	Sequence  int64
	Event     map[string]interface{}
	Timestamp time.Time
}

// StreamsProvider interface for event replay
type StreamsProvider interface {
	GetLastSequence(channel, connectionID string) (int64, error)
	AcknowledgeSequence(channel, connectionID string, sequence int64) error
	ReplayEvents(channel string, sinceSeq int64, limit int64) ([]StreamEvent, error)
}

// Hub manages WebSocket connections and channel subscriptions
type Hub struct {
	mu         sync.RWMutex
	conns      map[*Conn]bool
	subs       map[string]map[*Conn]bool // channel -> connections
	publish    chan Event
	log        *zap.Logger
	cmdHandler *CommandHandler
	streams    StreamsProvider
}

// Conn is one console connection. ctx carries the operator identity and upstream
// token resolved at upgrade time.
type Conn struct {
	id         string
	ws         *websocket.Conn
	send       chan []byte
	hub        *Hub
	operatorID string
	subs       map[string]bool // guarded by hub.mu
	ctx        context.Context
}

// Event represents a message to be published
type Event struct {
	Channel string
	Message map[string]interface{}
}

// NewHub creates a new WebSocket hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns:   make(map[*Conn]bool),
		subs:    make(map[string]map[*Conn]bool),
		publish: make(chan Event, 256),
		log:     log,
	}
}

// SetCommandHandler sets the command handler for processing WebSocket commands
func (h *Hub) SetCommandHandler(handler *CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmdHandler = handler
}

// SetStreamsProvider sets the streams provider for event replay
func (h *Hub) SetStreamsProvider(provider StreamsProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streams = provider
}

func (h *Hub) streamsProvider() StreamsProvider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.streams
}

// Run delivers published events until the publish channel is closed.
func (h *Hub) Run() {
	for event := range h.publish {
		msg, err := json.Marshal(event.Message)
		if err != nil {
			h.log.Warn("Dropping unencodable event", zap.String("channel", event.Channel), zap.Error(err))
			continue
		}

		var slow []*Conn
		h.mu.RLock()
		for conn := range h.subs[event.Channel] {
			select {
			case conn.send <- msg:
			default:
				slow = append(slow, conn)
			}
		}
		h.mu.RUnlock()

		for _, conn := range slow {
			h.log.Warn("Connection too slow, dropping it", zap.String("conn", conn.id))
			h.unregister(conn)
		}
	}
}

// Register adds a new connection to the hub
func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

// Connections returns the number of registered connections
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(conn.send)
		for channel := range conn.subs {
			if subs := h.subs[channel]; subs != nil {
				delete(subs, conn)
				if len(subs) == 0 {
					delete(h.subs, channel)
				}
			}
		}
	}
}

// Subscribe adds a connection to a session channel. Other channels are refused.
func (h *Hub) Subscribe(conn *Conn, channel string) bool {
	if !strings.HasPrefix(channel, ChannelPrefix) || len(channel) == len(ChannelPrefix) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.conns[conn] {
		return false
	}
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Conn]bool)
	}
	h.subs[channel][conn] = true
	conn.subs[channel] = true
	return true
}

// Unsubscribe removes a connection from a channel
func (h *Hub) Unsubscribe(conn *Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subs[channel]; subs != nil {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.subs, channel)
		}
	}
	delete(conn.subs, channel)
}

// Publish sends an event to all subscribers of a channel
func (h *Hub) Publish(channel string, message map[string]interface{}) {
	select {
	case h.publish <- Event{Channel: channel, Message: message}:
	default:
		h.log.Warn("Hub publish channel full, dropping event", zap.String("channel", channel))
	}
}

// NewConn wraps an upgraded connection. ctx must outlive the HTTP request.
func NewConn(ctx context.Context, ws *websocket.Conn, hub *Hub, operatorID string) *Conn {
	return &Conn{
		id:         ulid.Make().String(),
		ws:         ws,
		send:       make(chan []byte, 256),
		hub:        hub,
		operatorID: operatorID,
		subs:       make(map[string]bool),
		ctx:        ctx,
	}
}

// ID returns the connection id used for replay acknowledgements
func (c *Conn) ID() string { return c.id }

// ReadPump handles reading from the WebSocket connection
func (c *Conn) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Warn("Failed to parse message", zap.Error(err))
			continue
		}

		c.handleMessage(msg)
	}
}

// WritePump handles writing to the WebSocket connection
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one frame per message; consoles parse each frame as a single JSON document
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) handleMessage(msg map[string]interface{}) {
	msgType, _ := msg["type"].(string)

	switch msgType {
	case "subscribe":
		channel, _ := msg["channel"].(string)
		if c.hub.Subscribe(c, channel) {
			c.sendAck("subscribed", channel)
		} else {
			c.sendJSON(map[string]interface{}{"type": "error", "code": "invalid_channel", "message": "Cannot subscribe to " + channel})
		}
	case "unsubscribe":
		channel, _ := msg["channel"].(string)
		if channel != "" {
			c.hub.Unsubscribe(c, channel)
			c.sendAck("unsubscribed", channel)
		}
	case "ack":
		channel, _ := msg["channel"].(string)
		seq, _ := msg["seq"].(float64)
		if channel != "" && seq > 0 {
			c.hub.Acknowledge(c, channel, int64(seq))
		}
	case "resume":
		channel, _ := msg["channel"].(string)
		since, ok := msg["since"].(float64)
		if channel != "" {
			if !ok {
				since = -1
			}
			c.hub.Resume(c, channel, int64(since))
		}
	case "cmd":
		c.hub.mu.RLock()
		handler := c.hub.cmdHandler
		c.hub.mu.RUnlock()
		if handler != nil {
			handler.HandleCommand(c.ctx, c, msg)
		} else {
			c.hub.log.Warn("Command handler not set")
		}
	case "ping":
		c.sendAck("pong", "")
	default:
		c.hub.log.Warn("Unknown message type", zap.String("type", msgType))
	}
}

func (c *Conn) sendAck(msgType, channel string) {
	ack := map[string]interface{}{
		"type": "ack",
		"ack":  msgType,
	}
	if channel != "" {
		ack["channel"] = channel
	}
	c.sendJSON(ack)
}

// sendJSON queues msg without blocking. It reports false when the buffer is full.
func (c *Conn) sendJSON(msg map[string]interface{}) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.conns[c] {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Acknowledge records the last sequence a connection has seen on channel
func (h *Hub) Acknowledge(conn *Conn, channel string, sequence int64) {
	streams := h.streamsProvider()
	if streams == nil {
		return
	}
	if err := streams.AcknowledgeSequence(channel, conn.id, sequence); err != nil {
		h.log.Warn("Failed to acknowledge sequence",
			zap.String("channel", channel),
			zap.Int64("sequence", sequence),
			zap.Error(err),
		)
	}
}

// Resume replays journaled events after sinceSeq. A negative sinceSeq resumes from
// the connection's last acknowledgement.
func (h *Hub) Resume(conn *Conn, channel string, sinceSeq int64) {
	streams := h.streamsProvider()
	if streams == nil {
		h.log.Warn("Streams provider not set, cannot resume")
		return
	}
	if sinceSeq < 0 {
		last, err := streams.GetLastSequence(channel, conn.id)
		if err != nil {
			h.log.Warn("Failed to read last sequence", zap.String("channel", channel), zap.Error(err))
		}
		sinceSeq = last
	}

	events, err := streams.ReplayEvents(channel, sinceSeq, 100)
	if err != nil {
		h.log.Error("Failed to replay events",
			zap.String("channel", channel),
			zap.Int64("since", sinceSeq),
			zap.Error(err),
		)
		return
	}

	for _, event := range events {
		msg := make(map[string]interface{}, len(event.Event)+2)
		for k, v := range event.Event {
			msg[k] = v
		}
		msg["channel"] = event.Channel
		msg["seq"] = event.Sequence
		if !conn.sendJSON(msg) {
			h.log.Warn("Failed to send replayed event, connection buffer full")
			return
		}
	}

	h.log.Info("Resumed events",
		zap.String("channel", channel),
		zap.String("conn", conn.id),
		zap.Int64("since", sinceSeq),
		zap.Int("count", len(events)),
	)
}
