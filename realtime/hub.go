package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Unicast when the target connection is gone.
var ErrNotConnected = errors.New("realtime: connection not registered")

// Presence answers who is currently reachable. Injected into use cases
// so they stay unit-testable without a live transport.
type Presence interface {
	IsOnline(userID string) bool
	ConnectionOf(userID string) (string, bool)
}

// Broadcaster fans events out to rooms, single connections, or a user's
// personal channel. Injected alongside Presence.
type Broadcaster interface {
	Broadcast(roomKey, event string, data interface{}, excludeConnID string)
	Unicast(connID, event string, data interface{}) error
	SendToUser(userID, event string, data interface{}) bool
}

// Hub is the process-local registry of connections, presence and room
// membership. All maps are guarded by one RWMutex; every mutation is
// atomic with respect to concurrent joins and disconnects.
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]*Connection            // connID -> connection
	users     map[string]string                 // userID -> connID
	rooms     map[string]map[string]*Connection // roomKey -> connID -> connection
	connRooms map[string]map[string]struct{}    // connID -> set of roomKeys
}

var (
	_ Presence    = (*Hub)(nil)
	_ Broadcaster = (*Hub)(nil)
)

// NewHub constructs an initialized Hub.
func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]*Connection),
		users:     make(map[string]string),
		rooms:     make(map[string]map[string]*Connection),
		connRooms: make(map[string]map[string]struct{}),
	}
}

// Register adds a connection and marks its user online. A new connection
// for an already-online user silently replaces the old mapping (last
// writer wins on multi-tab reconnect); the previous socket is closed
// after the swap so reconnects never need explicit teardown first.
func (h *Hub) Register(conn *Connection) {
	var previous *Connection

	h.mu.Lock()
	if existingID, ok := h.users[conn.UserID]; ok {
		if existing := h.conns[existingID]; existing != nil {
			previous = existing
			h.removeLocked(existingID)
		}
	}
	h.conns[conn.ID] = conn
	h.users[conn.UserID] = conn.ID
	h.mu.Unlock()

	if previous != nil {
		previous.Close(websocket.ClosePolicyViolation, "replaced by newer session")
	}
}

// Unregister removes the connection, clearing presence and membership in
// the same critical section, and returns the room keys it was part of so
// the gateway can emit participant-left events. A stale connection that
// was already replaced by a reconnect is removed without touching the
// newer presence entry.
func (h *Hub) Unregister(conn *Connection) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.conns[conn.ID]; !ok || current != conn {
		return nil
	}
	return h.removeLocked(conn.ID)
}

func (h *Hub) removeLocked(connID string) []string {
	conn := h.conns[connID]
	var left []string
	for roomKey := range h.connRooms[connID] {
		if members, ok := h.rooms[roomKey]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, roomKey)
			}
		}
		left = append(left, roomKey)
	}
	delete(h.connRooms, connID)
	delete(h.conns, connID)
	if conn != nil && h.users[conn.UserID] == connID {
		delete(h.users, conn.UserID)
	}
	return left
}

// IsOnline reports whether the user has an active connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

// ConnectionOf returns the connection id serving the user.
func (h *Hub) ConnectionOf(userID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.users[userID]
	return id, ok
}

// Join adds the connection to a room.
func (h *Hub) Join(roomKey string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn.ID]; !ok {
		return
	}
	if h.rooms[roomKey] == nil {
		h.rooms[roomKey] = make(map[string]*Connection)
	}
	h.rooms[roomKey][conn.ID] = conn
	if h.connRooms[conn.ID] == nil {
		h.connRooms[conn.ID] = make(map[string]struct{})
	}
	h.connRooms[conn.ID][roomKey] = struct{}{}
}

// Leave removes the connection from a room, releasing the membership set
// once it reaches zero members.
func (h *Hub) Leave(roomKey string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomKey]; ok {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(h.rooms, roomKey)
		}
	}
	if set, ok := h.connRooms[conn.ID]; ok {
		delete(set, roomKey)
	}
}

// Member describes a connection currently in a room.
type Member struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	Name         string `json:"name,omitempty"`
}

// MembersOf returns the current members of a room.
func (h *Hub) MembersOf(roomKey string) []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]Member, 0, len(h.rooms[roomKey]))
	for _, c := range h.rooms[roomKey] {
		members = append(members, Member{ConnectionID: c.ID, UserID: c.UserID, Role: c.Role, Name: c.Name})
	}
	return members
}

// Broadcast sends an event to every member of a room except excludeConnID.
func (h *Hub) Broadcast(roomKey, event string, data interface{}, excludeConnID string) {
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		zap.S().Errorw("failed to marshal broadcast frame", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.rooms[roomKey]))
	for connID, c := range h.rooms[roomKey] {
		if connID == excludeConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			zap.S().Debugw("dropping broadcast to dead connection", "connId", c.ID, "event", event)
		}
	}
}

// BroadcastAll sends an event to every registered connection except
// excludeConnID. Used for presence announcements.
func (h *Hub) BroadcastAll(event string, data interface{}, excludeConnID string) {
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		zap.S().Errorw("failed to marshal broadcast frame", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.conns))
	for connID, c := range h.conns {
		if connID == excludeConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.Send(payload)
	}
}

// Unicast sends an event to one connection.
func (h *Hub) Unicast(connID, event string, data interface{}) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return err
	}
	return conn.Send(payload)
}

// SendToUser pushes an event to the user's active connection, reporting
// whether a live delivery happened. Absence of the recipient is not an
// error; the underlying write has already succeeded durably elsewhere.
func (h *Hub) SendToUser(userID, event string, data interface{}) bool {
	h.mu.RLock()
	connID, ok := h.users[userID]
	var conn *Connection
	if ok {
		conn = h.conns[connID]
	}
	h.mu.RUnlock()
	if conn == nil {
		return false
	}
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		zap.S().Errorw("failed to marshal push frame", "event", event, "error", err)
		return false
	}
	if err := conn.Send(payload); err != nil {
		zap.S().Warnw("live push failed", "userId", userID, "event", event, "error", err)
		return false
	}
	return true
}
