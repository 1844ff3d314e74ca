package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/planningpoker/go/internal/presence"
	"github.com/rs/zerolog/log"
)

// MetricsCollector records gateway activity.
type MetricsCollector interface {
	SetPresenceConnections(n int)
	RecordPresenceBroadcast()
}

type noopMetrics struct{}

func (noopMetrics) SetPresenceConnections(int) {}
func (noopMetrics) RecordPresenceBroadcast()   {}

// Hub tracks presence per room. Each participant key holds at most one
// connection; a reconnect under the same key replaces the old one.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
	total int

	upgrader websocket.Upgrader
	config   ConnectionConfig
	metrics  MetricsCollector
}

type room struct {
	members map[string]json.RawMessage
	conns   map[string]*Connection
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID          string
	Key         string
	RoomID      string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	hub    *Hub
	closed bool // guarded by hub.mu
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewHub(config ConnectionConfig, metrics MetricsCollector) *Hub {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Hub{
		rooms: make(map[string]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		metrics: metrics,
	}
}

// Upgrade upgrades an HTTP connection and registers it under (roomID, key).
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, roomID, key string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.NewString(),
		Key:         key,
		RoomID:      roomID,
		Conn:        conn,
		Send:        make(chan []byte, h.config.SendBuffer),
		ConnectedAt: time.Now(),
		hub:         h,
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("game_id", roomID).
		Str("participant_id", key).
		Msg("presence connection established")
	return nil
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm := h.rooms[c.RoomID]
	if rm == nil {
		rm = &room{members: make(map[string]json.RawMessage), conns: make(map[string]*Connection)}
		h.rooms[c.RoomID] = rm
	}
	if old, ok := rm.conns[c.Key]; ok {
		log.Debug().Str("connection_id", old.ID).Str("participant_id", c.Key).Msg("replacing connection for key")
		h.closeLocked(old)
	}
	rm.conns[c.Key] = c
	h.total++
	h.metrics.SetPresenceConnections(h.total)

	// the newcomer sees the room right away, before it tracks itself
	h.sendLocked(c, h.syncMessageLocked(rm))
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm := h.rooms[c.RoomID]
	if rm == nil || rm.conns[c.Key] != c {
		h.closeLocked(c)
		return
	}
	delete(rm.conns, c.Key)
	h.closeLocked(c)

	if _, tracked := rm.members[c.Key]; tracked {
		delete(rm.members, c.Key)
		h.broadcastLocked(rm)
	}
	if len(rm.conns) == 0 && len(rm.members) == 0 {
		delete(h.rooms, c.RoomID)
	}

	log.Info().
		Str("connection_id", c.ID).
		Str("game_id", c.RoomID).
		Str("participant_id", c.Key).
		Msg("presence connection unregistered")
}

func (h *Hub) closeLocked(c *Connection) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	h.total--
	h.metrics.SetPresenceConnections(h.total)
}

// track stores the payload for the connection's key and syncs the room.
func (h *Hub) track(c *Connection, payload json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm := h.rooms[c.RoomID]
	if rm == nil || rm.conns[c.Key] != c {
		return
	}
	rm.members[c.Key] = append(json.RawMessage(nil), payload...)
	h.broadcastLocked(rm)
}

func (h *Hub) untrack(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm := h.rooms[c.RoomID]
	if rm == nil || rm.conns[c.Key] != c {
		return
	}
	if _, ok := rm.members[c.Key]; !ok {
		return
	}
	delete(rm.members, c.Key)
	h.broadcastLocked(rm)
}

func (h *Hub) syncMessageLocked(rm *room) []byte {
	members := make(presence.Snapshot, len(rm.members))
	for k, v := range rm.members {
		members[k] = v
	}
	data, err := json.Marshal(presence.ServerMessage{Type: presence.MsgSync, Members: members})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal presence sync")
		return nil
	}
	return data
}

func (h *Hub) broadcastLocked(rm *room) {
	data := h.syncMessageLocked(rm)
	if data == nil {
		return
	}
	for _, c := range rm.conns {
		h.sendLocked(c, data)
	}
	h.metrics.RecordPresenceBroadcast()
}

func (h *Hub) sendLocked(c *Connection, data []byte) {
	if c.closed || data == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		// slow or dead client; its read pump will unregister it
		log.Warn().
			Str("connection_id", c.ID).
			Str("participant_id", c.Key).
			Msg("connection send buffer full, closing connection")
		h.closeLocked(c)
	}
}

// Shutdown closes every connection. Clients see a close frame and are
// expected to reconnect to another gateway.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, rm := range h.rooms {
		for _, c := range rm.conns {
			h.closeLocked(c)
		}
		delete(h.rooms, id)
	}
	log.Info().Msg("presence hub shut down")
}

// Stats returns connection counts.
func (h *Hub) Stats() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := 0
	for _, rm := range h.rooms {
		members += len(rm.members)
	}
	return map[string]int{
		"total_connections": h.total,
		"active_rooms":      len(h.rooms),
		"tracked_members":   members,
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}

// handleClientMessage processes track/untrack commands. The gateway stores
// payloads verbatim as long as they are JSON objects; clients validate the
// fields they read.
func (c *Connection) handleClientMessage(message []byte) {
	var msg presence.ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("ignored malformed client message")
		return
	}
	switch msg.Type {
	case presence.MsgTrack:
		payload := bytes.TrimSpace(msg.Payload)
		if len(payload) == 0 || payload[0] != '{' {
			log.Warn().Str("connection_id", c.ID).Msg("ignored track without object payload")
			return
		}
		c.hub.track(c, payload)
	case presence.MsgUntrack:
		c.hub.untrack(c)
	default:
		log.Debug().Str("connection_id", c.ID).Str("type", msg.Type).Msg("ignored client message")
	}
}
