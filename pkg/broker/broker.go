// Package broker implements conversation-scoped publish/subscribe over
// WebSocket connections. Every participant joins the shared conversation
// room plus a role sub-room, and events are fanned out to rooms as JSON
// envelopes. Slow consumers are disconnected rather than allowed to stall
// the fan-out.
package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/lingodesk/lingodesk/pkg/logger"
	"github.com/lingodesk/lingodesk/pkg/types/chat"
)

// maxMessageBytes leaves room for base64-encoded images inline in events.
const maxMessageBytes = 20 << 20

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

// Conn is one WebSocket participant with its identity and room memberships.
type Conn struct {
	ID   string
	Role string
	CID  string

	ws    *websocket.Conn
	send  chan []byte
	rooms []string

	// done signals the write pump to close the socket. The send channel is
	// never closed, so concurrent publishers cannot hit a closed channel.
	done      chan struct{}
	closeOnce sync.Once
}

// Hub tracks live connections and their room memberships.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[string]*Conn
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Conn),
		rooms: make(map[string]map[string]*Conn),
	}
}

// Add registers an upgraded WebSocket as a participant, joins it to the
// conversation room and its role sub-room, and starts the write pump.
func (h *Hub) Add(ctx context.Context, ws *websocket.Conn, role, cid string) *Conn {
	rooms := []string{chat.Room(cid)}
	if role == chat.RoleAgent {
		rooms = append(rooms, chat.AgentsRoom(cid))
	} else {
		rooms = append(rooms, chat.ClientsRoom(cid))
	}

	c := &Conn{
		ID:    uuid.NewString(),
		Role:  role,
		CID:   cid,
		ws:    ws,
		send:  make(chan []byte, sendBuffer),
		rooms: rooms,
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.ID] = c
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[string]*Conn)
			h.rooms[room] = members
		}
		members[c.ID] = c
	}
	h.mu.Unlock()

	go c.writePump()

	logger.G(ctx).WithFields(map[string]any{
		"conn_id": c.ID,
		"role":    role,
		"cid":     cid,
	}).Info("participant joined")
	return c
}

// Remove drops c from every room and closes its transport. Safe to call
// more than once.
func (h *Hub) Remove(ctx context.Context, c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; ok {
		delete(h.conns, c.ID)
		for _, room := range c.rooms {
			members := h.rooms[room]
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.done)
	})

	logger.G(ctx).WithFields(map[string]any{
		"conn_id": c.ID,
		"role":    c.Role,
		"cid":     c.CID,
	}).Info("participant left")
}

// CloseAll disconnects every participant, typically during shutdown.
func (h *Hub) CloseAll(ctx context.Context) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.Remove(ctx, c)
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// RoomLen returns the number of connections in room.
func (h *Hub) RoomLen(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish fans an event out to every connection in room. Enqueueing is
// non-blocking; a participant whose send buffer is full is dropped so one
// stuck reader cannot hold up the room.
func (h *Hub) Publish(ctx context.Context, room, event string, data any) {
	payload, err := marshalEnvelope(event, data)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("event", event).Error("dropping unencodable event")
		return
	}

	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.trySend(payload) {
			logger.G(ctx).WithFields(map[string]any{
				"conn_id": c.ID,
				"room":    room,
				"event":   event,
			}).Warn("dropping slow participant")
			h.Remove(ctx, c)
		}
	}
}

func marshalEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s payload", event)
	}
	return json.Marshal(chat.Envelope{Event: event, Data: raw})
}

// ReadLoop consumes inbound frames until the connection drops, invoking
// handle for each decoded envelope. Malformed frames are logged and skipped.
func (c *Conn) ReadLoop(ctx context.Context, handle func(event string, data json.RawMessage)) {
	c.ws.SetReadLimit(maxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.G(ctx).WithError(err).WithField("conn_id", c.ID).Debug("connection read failed")
			}
			return
		}

		var env chat.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logger.G(ctx).WithError(err).WithField("conn_id", c.ID).Warn("dropping malformed frame")
			continue
		}
		if env.Event == "" {
			continue
		}
		handle(env.Event, env.Data)
	}
}

func (c *Conn) trySend(payload []byte) bool {
	select {
	case <-c.done:
		// Already closing; not a slow-consumer condition.
		return true
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// writePump serializes all writes to the socket and keeps the connection
// alive with periodic pings. It exits when the connection is removed or a
// write fails, closing the socket either way.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
