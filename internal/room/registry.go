// Package room owns GameSession lifecycles. The registry is the only
// holder of room state: sessions are created here, looked up here, and
// destroyed here, so teardown is deterministic and tests can build an
// isolated registry instead of touching process globals.
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thetrev68/american-mahjong-server/internal/game"
	"github.com/thetrev68/american-mahjong-server/internal/patterns"
)

// Broadcaster fans session events out to connected clients. The ws
// hub implements it.
type Broadcaster interface {
	BroadcastToRoom(roomID uuid.UUID, ev game.GameEvent)
	SendToPlayer(roomID, playerID uuid.UUID, ev game.GameEvent)
}

// Registry maps room ids to their authoritative sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*game.GameSession

	broadcaster Broadcaster
	validator   patterns.Validator
	logger      *logrus.Logger

	charlestonLimit time.Duration
	playingLimit    time.Duration
}

// NewRegistry builds an empty registry.
func NewRegistry(validator patterns.Validator, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		sessions:  make(map[uuid.UUID]*game.GameSession),
		validator: validator,
		logger:    logger,
	}
}

// SetBroadcaster wires the event fan-out. Must be called before any
// session is created.
func (r *Registry) SetBroadcaster(b Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcaster = b
}

// SetPhaseTimeLimits overrides the advisory charleston and playing
// soft limits applied to sessions created after the call. Zero keeps
// the built-in guidance value.
func (r *Registry) SetPhaseTimeLimits(charleston, playing time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charlestonLimit = charleston
	r.playingLimit = playing
}

// GetOrCreate returns the room's session, creating and wiring it on
// first use.
func (r *Registry) GetOrCreate(roomID uuid.UUID) *game.GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[roomID]; ok {
		return s
	}
	s := game.NewGameSession(roomID, r.validator, r.logger)
	if r.charlestonLimit > 0 {
		s.SetPhaseTimeLimit(game.PhaseCharleston, r.charlestonLimit)
	}
	if r.playingLimit > 0 {
		s.SetPhaseTimeLimit(game.PhasePlaying, r.playingLimit)
	}
	if b := r.broadcaster; b != nil {
		s.BroadcastFn = func(ev game.GameEvent) {
			b.BroadcastToRoom(roomID, ev)
		}
		s.BroadcastToPlayerFn = func(playerID uuid.UUID, ev game.GameEvent) {
			b.SendToPlayer(roomID, playerID, ev)
		}
	}
	s.OnGameEnd = func(roomID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int, endReason string) {
		r.logger.WithFields(logrus.Fields{
			"room_id":    roomID.String(),
			"winner":     winner.String(),
			"end_reason": endReason,
		}).Info("game ended")
	}
	r.sessions[roomID] = s
	r.logger.WithField("room_id", roomID.String()).Info("room session created")
	return s
}

// Get returns the room's session without creating one.
func (r *Registry) Get(roomID uuid.UUID) (*game.GameSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[roomID]
	return s, ok
}

// Destroy removes a room's session. In-memory state is gone once this
// returns.
func (r *Registry) Destroy(roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[roomID]; ok {
		delete(r.sessions, roomID)
		r.logger.WithField("room_id", roomID.String()).Info("room session destroyed")
	}
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
