// internal/ws/hub.go — per-room connection fan-out.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thetrev68/american-mahjong-server/internal/game"
)

// Hub tracks the live connections per room and fans session events out
// to them. It satisfies room.Broadcaster.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[uuid.UUID]*client
	logger *logrus.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[uuid.UUID]*client),
		logger: logger,
	}
}

// register attaches a client to its room. A second connection for the
// same player replaces the first; the old socket is closed so the
// player cannot double-receive.
func (h *Hub) register(c *client) {
	var stale *client
	h.mu.Lock()
	clients, ok := h.rooms[c.roomID]
	if !ok {
		clients = make(map[uuid.UUID]*client)
		h.rooms[c.roomID] = clients
	}
	if prev, ok := clients[c.playerID]; ok && prev != c {
		stale = prev
	}
	clients[c.playerID] = c
	h.mu.Unlock()

	if stale != nil {
		stale.close("replaced by a newer connection")
	}
}

// unregister detaches a client. Returns false if the client was already
// replaced by a newer connection for the same player.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[c.roomID]
	if !ok {
		return false
	}
	if cur, ok := clients[c.playerID]; !ok || cur != c {
		return false
	}
	delete(clients, c.playerID)
	if len(clients) == 0 {
		delete(h.rooms, c.roomID)
	}
	return true
}

// BroadcastToRoom sends an event to every connection in the room.
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, ev game.GameEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).WithField("event", ev.Type).Error("failed to marshal room event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		c.enqueue(b)
	}
}

// SendToPlayer sends an event to one player's connection, if any.
func (h *Hub) SendToPlayer(roomID, playerID uuid.UUID, ev game.GameEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).WithField("event", ev.Type).Error("failed to marshal player event")
		return
	}
	h.mu.RLock()
	c, ok := h.rooms[roomID][playerID]
	h.mu.RUnlock()
	if ok {
		c.enqueue(b)
	}
}
