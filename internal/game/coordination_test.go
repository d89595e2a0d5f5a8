// internal/game/coordination_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Disconnect and reconnect mid-game: the recovered snapshot must match
// the pre-disconnect game state and the counters must reset.
func TestReconnectRecoversFullState(t *testing.T) {
	g, ids, mb := setupPlaying(t, 4)
	east, south := ids[0], ids[1]

	// Put some state on the table first.
	_, err := g.HandleTurnAction(east, DiscardAction{Tile: playerData(g, east).Hand[0]})
	require.NoError(t, err)
	passWindow(t, g, ids, east)

	before := g.Snapshot(south)

	g.HandleDisconnect(south)
	assert.False(t, g.IsConnected(south))
	conn := mb.findEventByType(EventPlayerConnection)
	require.NotNil(t, conn)
	assert.Equal(t, false, conn.Payload["connected"])

	g.RecordReconnectAttempt(south)
	g.RecordReconnectAttempt(south)
	assert.Equal(t, 2, g.ReconnectionAttempts(south))

	snap, err := g.HandleReconnect(south)
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.True(t, g.IsConnected(south))
	assert.Equal(t, 0, g.ReconnectionAttempts(south), "a successful rejoin resets the counter")
	assert.Equal(t, before.GameState, snap.GameState, "recovery is snapshot-identical")

	var mine *SnapshotPlayer
	for i := range snap.Players {
		if snap.Players[i].PlayerID == south.String() {
			mine = &snap.Players[i]
		}
	}
	require.NotNil(t, mine)
	assert.True(t, mine.Connected)
	assert.Len(t, mine.RevealedHand, 13, "the rejoining player sees their own hand")
}

func TestReconnectRejectsStrangers(t *testing.T) {
	g, _, _ := setupPlaying(t, 4)
	_, err := g.HandleReconnect(uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a member")
}

func TestDisconnectedCurrentPlayerStallsTheTurn(t *testing.T) {
	g, ids, _ := setupPlaying(t, 4)
	east := ids[0]

	g.HandleDisconnect(east)
	assert.Equal(t, east, g.CurrentPlayer(), "no skip-on-disconnect; the room waits")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	g, ids, mb := setupPlaying(t, 4)
	g.HandleDisconnect(ids[1])
	mb.clear()
	g.HandleDisconnect(ids[1])
	assert.Nil(t, mb.findEventByType(EventPlayerConnection), "a second disconnect is a no-op")
}

func TestSnapshotHidesOtherHands(t *testing.T) {
	g, ids, _ := setupPlaying(t, 4)
	snap := g.Snapshot(ids[0])

	for _, sp := range snap.Players {
		if sp.PlayerID == ids[0].String() {
			assert.NotEmpty(t, sp.RevealedHand)
			continue
		}
		assert.Nil(t, sp.RevealedHand, "opponents' hands stay hidden")
		assert.Greater(t, sp.HandSize, 0, "hand sizes are public")
		assert.Zero(t, sp.JokersHeld)
	}
}

func TestReadinessBarrierIgnoresDisconnected(t *testing.T) {
	g, ids, _ := setupRoom(t, 4)

	for _, id := range ids[:3] {
		require.NoError(t, g.SetPlayerReadiness(id, ReadinessRoom, true))
	}
	assert.False(t, g.AreAllPlayersReady(ReadinessRoom), "one player still unready")

	g.HandleDisconnect(ids[3])
	assert.True(t, g.AreAllPlayersReady(ReadinessRoom), "disconnected players never wedge the barrier")

	require.NoError(t, g.SetPlayerReadiness(ids[0], ReadinessRoom, false))
	assert.False(t, g.AreAllPlayersReady(ReadinessRoom))
}

func TestReadinessCategoriesAreIndependent(t *testing.T) {
	g, ids, _ := setupRoom(t, 3)
	for _, id := range ids {
		require.NoError(t, g.SetPlayerReadiness(id, ReadinessCharleston, true))
	}
	assert.True(t, g.AreAllPlayersReady(ReadinessCharleston))
	assert.False(t, g.AreAllPlayersReady(ReadinessRoom))
	assert.False(t, g.AreAllPlayersReady(ReadinessGameplay))
}

func TestReadinessRejectsStrangers(t *testing.T) {
	g, _, _ := setupRoom(t, 3)
	assert.Error(t, g.SetPlayerReadiness(uuid.New(), ReadinessRoom, true))
}

func TestReadinessSummary(t *testing.T) {
	g, ids, _ := setupDealt(t, 4)
	require.NoError(t, g.SetPlayerReadiness(ids[0], ReadinessCharleston, true))

	sum := g.GetReadinessSummary()
	assert.Equal(t, PhaseTileInput, sum.Phase)
	assert.Len(t, sum.Players, 4)
	assert.Equal(t, PositionEast, sum.Positions[ids[0].String()])
	assert.Equal(t, PositionNorth, sum.Positions[ids[3].String()])
	assert.True(t, sum.Players[ids[0].String()].Charleston)
	assert.False(t, sum.AllReady[ReadinessCharleston])
}

func TestSyncPlayerStates(t *testing.T) {
	g, ids, _ := setupRoom(t, 4)
	g.SyncPlayerStates(map[uuid.UUID]bool{
		ids[0]:     false,
		ids[1]:     false,
		uuid.New(): true, // Unknown ids are ignored.
	})
	assert.False(t, g.IsConnected(ids[0]))
	assert.False(t, g.IsConnected(ids[1]))
	assert.True(t, g.IsConnected(ids[2]))
}
