// internal/room/registry_test.go
package room

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thetrev68/american-mahjong-server/internal/game"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	room   []game.GameEvent
	player map[uuid.UUID][]game.GameEvent
}

func (rb *recordingBroadcaster) BroadcastToRoom(_ uuid.UUID, ev game.GameEvent) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.room = append(rb.room, ev)
}

func (rb *recordingBroadcaster) SendToPlayer(_ uuid.UUID, playerID uuid.UUID, ev game.GameEvent) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.player == nil {
		rb.player = make(map[uuid.UUID][]game.GameEvent)
	}
	rb.player[playerID] = append(rb.player[playerID], ev)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry(nil, nil)
	roomID := uuid.New()

	a := r.GetOrCreate(roomID)
	b := r.GetOrCreate(roomID)
	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Len())

	_, ok := r.Get(roomID)
	assert.True(t, ok)
	_, ok = r.Get(uuid.New())
	assert.False(t, ok)
}

func TestDestroyDropsTheSession(t *testing.T) {
	r := NewRegistry(nil, nil)
	roomID := uuid.New()
	r.GetOrCreate(roomID)

	r.Destroy(roomID)
	assert.Equal(t, 0, r.Len())
	_, ok := r.Get(roomID)
	assert.False(t, ok)

	r.Destroy(roomID) // Destroying twice is harmless.
}

func TestConfiguredTimeLimitsReachNewSessions(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.SetPhaseTimeLimits(30*time.Minute, 2*time.Hour)

	s := r.GetOrCreate(uuid.New())
	assert.Equal(t, 30*time.Minute, s.PhaseTimeLimit(game.PhaseCharleston))
	assert.Equal(t, 2*time.Hour, s.PhaseTimeLimit(game.PhasePlaying))
}

func TestSessionsAreWiredToTheBroadcaster(t *testing.T) {
	r := NewRegistry(nil, nil)
	rb := &recordingBroadcaster{}
	r.SetBroadcaster(rb)

	s := r.GetOrCreate(uuid.New())
	playerID := uuid.New()
	require.NoError(t, s.AddPlayer(playerID, "Ada"))
	require.NoError(t, s.SetPlayerReadiness(playerID, game.ReadinessRoom, true))

	rb.mu.Lock()
	defer rb.mu.Unlock()
	require.NotEmpty(t, rb.room, "session events reach the room broadcaster")
	assert.Equal(t, game.EventReadinessUpdate, rb.room[len(rb.room)-1].Type)
}
