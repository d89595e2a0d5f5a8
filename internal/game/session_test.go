// internal/game/session_test.go
package game

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

// mockBroadcaster captures game events for testing assertions.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent
	playerEvents map[uuid.UUID][]GameEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{playerEvents: make(map[uuid.UUID][]GameEvent)}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) findEventByType(eventType GameEventType) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.allEvents) - 1; i >= 0; i-- {
		if mb.allEvents[i].Type == eventType {
			return &mb.allEvents[i]
		}
	}
	return nil
}

func (mb *mockBroadcaster) findPlayerEventByType(playerID uuid.UUID, eventType GameEventType) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events := mb.playerEvents[playerID]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}

// setupRoom builds a waiting-phase session with numPlayers joined.
// Returned ids are in join order, which is also the eventual seating
// order east, south, west, north.
func setupRoom(t *testing.T, numPlayers int) (*GameSession, []uuid.UUID, *mockBroadcaster) {
	t.Helper()
	g := NewGameSession(uuid.New(), nil, nil)
	g.SeedRNG(42)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	ids := make([]uuid.UUID, numPlayers)
	for i := 0; i < numPlayers; i++ {
		ids[i] = uuid.New()
		require.NoError(t, g.AddPlayer(ids[i], "Player"+string(rune('A'+i))))
	}
	return g, ids, mb
}

// setupDealt advances a room through positioning and the deal: every
// player seated and holding 13 tiles, east holding 14.
func setupDealt(t *testing.T, numPlayers int) (*GameSession, []uuid.UUID, *mockBroadcaster) {
	t.Helper()
	g, ids, mb := setupRoom(t, numPlayers)
	require.NoError(t, g.TransitionPhase(PhasePositioning))
	for i, id := range ids {
		require.NoError(t, g.AssignPosition(id, seatingOrder[i]))
	}
	require.NoError(t, g.TransitionPhase(PhaseTileInput))
	require.NoError(t, g.Deal())
	require.NoError(t, g.DealDealerTile())
	return g, ids, mb
}

// completeCharleston runs every charleston round with the minimum of
// ceremony: required rounds pass the first three tiles in hand, the
// optional round is declined by everyone.
func completeCharleston(t *testing.T, g *GameSession, ids []uuid.UUID) {
	t.Helper()
	for _, round := range g.CharlestonRounds() {
		for _, id := range ids {
			var sel []tiles.Tile
			if round != CharlestonOptional {
				p := playerData(g, id)
				sel = append(sel, p.Hand[0], p.Hand[1], p.Hand[2])
			}
			require.NoError(t, g.HandleCharlestonReady(id, sel, round))
		}
	}
	require.Equal(t, CharlestonComplete, g.CurrentCharlestonPhase())
}

// setupPlaying advances a room all the way into active play with east
// holding the turn.
func setupPlaying(t *testing.T, numPlayers int) (*GameSession, []uuid.UUID, *mockBroadcaster) {
	t.Helper()
	g, ids, mb := setupDealt(t, numPlayers)
	require.NoError(t, g.TransitionPhase(PhaseCharleston))
	require.NoError(t, g.BeginCharleston())
	completeCharleston(t, g, ids)
	require.NoError(t, g.TransitionPhase(PhasePlaying))
	require.NoError(t, g.StartTurns(uuid.Nil))
	mb.clear()
	return g, ids, mb
}

func playerData(g *GameSession, id uuid.UUID) *PlayerGameData {
	return g.getPlayerByID(id)
}

// passWindow answers "pass" for every eligible player so the open call
// window closes.
func passWindow(t *testing.T, g *GameSession, ids []uuid.UUID, discarder uuid.UUID) {
	t.Helper()
	for _, id := range ids {
		if id == discarder {
			continue
		}
		if g.callWindow == nil || !g.callWindow.eligible[id] {
			continue
		}
		require.NoError(t, g.HandleCallResponse(id, "pass", "", nil))
	}
}

func TestAddPlayerRules(t *testing.T) {
	g, ids, _ := setupRoom(t, 4)

	assert.Error(t, g.AddPlayer(uuid.New(), "Overflow"), "room caps at four players")
	assert.Error(t, g.AddPlayer(ids[0], "Duplicate"))

	require.NoError(t, g.TransitionPhase(PhasePositioning))
	assert.Error(t, g.AddPlayer(uuid.New(), "LateJoiner"), "joining stops once positioning begins")
}

func TestRemovePlayerOnlyWhileWaiting(t *testing.T) {
	g, ids, _ := setupRoom(t, 4)
	require.NoError(t, g.RemovePlayer(ids[3]))
	assert.Error(t, g.RemovePlayer(ids[3]), "already removed")

	require.NoError(t, g.TransitionPhase(PhasePositioning))
	assert.Error(t, g.RemovePlayer(ids[0]))
}

func TestDealCorrectness(t *testing.T) {
	g, ids, _ := setupRoom(t, 4)
	require.NoError(t, g.TransitionPhase(PhasePositioning))
	for i, id := range ids {
		require.NoError(t, g.AssignPosition(id, seatingOrder[i]))
	}
	require.NoError(t, g.TransitionPhase(PhaseTileInput))

	require.NoError(t, g.Deal())
	for _, id := range ids {
		assert.Len(t, playerData(g, id).Hand, 13, "the deal itself is uniform")
	}
	assert.Equal(t, 13*4, g.wall.Dealt())

	require.NoError(t, g.DealDealerTile())
	assert.Len(t, playerData(g, ids[0]).Hand, 14, "east draws the extra dealer tile")
	assert.Equal(t, tiles.SetSize, g.TileConservationTotal())

	// DealDealerTile is idempotent.
	require.NoError(t, g.DealDealerTile())
	assert.Len(t, playerData(g, ids[0]).Hand, 14)
}

func TestDealRequiresEnoughPlayers(t *testing.T) {
	g := NewGameSession(uuid.New(), nil, nil)
	require.NoError(t, g.AddPlayer(uuid.New(), "Solo"))
	assert.Error(t, g.Deal())
}

func TestStartTurnsDefaultsToEast(t *testing.T) {
	g, ids, _ := setupPlaying(t, 4)
	assert.Equal(t, ids[0], g.CurrentPlayer())
	assert.Equal(t, 1, g.turnNumber)
	assert.Equal(t, 1, g.roundNumber)
	assert.Equal(t, PositionEast, g.currentWind)

	assert.Error(t, g.StartTurns(ids[1]), "turns cannot start twice")
}

func TestTileConservationThroughPlay(t *testing.T) {
	g, ids, _ := setupPlaying(t, 4)
	require.Equal(t, tiles.SetSize, g.TileConservationTotal())

	east := ids[0]
	// Opening discard from the dealt 14.
	opening := playerData(g, east).Hand[0]
	_, err := g.HandleTurnAction(east, DiscardAction{Tile: opening})
	require.NoError(t, err)
	passWindow(t, g, ids, east)
	assert.Equal(t, tiles.SetSize, g.TileConservationTotal())

	// Several draw/discard cycles around the table.
	for i := 0; i < 8; i++ {
		cur := g.CurrentPlayer()
		_, err := g.HandleTurnAction(cur, DrawAction{})
		require.NoError(t, err)
		assert.Equal(t, tiles.SetSize, g.TileConservationTotal())

		out := playerData(g, cur).Hand[0]
		_, err = g.HandleTurnAction(cur, DiscardAction{Tile: out})
		require.NoError(t, err)
		passWindow(t, g, ids, cur)
		assert.Equal(t, tiles.SetSize, g.TileConservationTotal())
	}
}

func TestTurnNumberMonotonicity(t *testing.T) {
	g, ids, _ := setupPlaying(t, 4)
	require.Equal(t, 1, g.turnNumber)

	east := ids[0]
	_, err := g.HandleTurnAction(east, DiscardAction{Tile: playerData(g, east).Hand[0]})
	require.NoError(t, err)
	passWindow(t, g, ids, east)
	assert.Equal(t, 2, g.turnNumber, "a discard hands the turn on")
	assert.Equal(t, ids[1], g.CurrentPlayer(), "east's successor is south")

	prev := g.turnNumber
	cur := g.CurrentPlayer()
	_, err = g.HandleTurnAction(cur, DrawAction{})
	require.NoError(t, err)
	assert.Equal(t, prev, g.turnNumber, "drawing does not advance the turn")

	_, err = g.HandleTurnAction(cur, DiscardAction{Tile: playerData(g, cur).Hand[0]})
	require.NoError(t, err)
	assert.Equal(t, prev+1, g.turnNumber)
}

// Wall runs down to seven tiles; a check against a threshold of eight
// must end the game with zeroed scores.
func TestWallExhaustionEndsGame(t *testing.T) {
	g, ids, mb := setupPlaying(t, 4)
	g.wall.Draw(g.wall.Remaining() - 7)
	require.Equal(t, 7, g.WallRemaining())

	canContinue := g.CheckWallExhaustion(8)
	assert.False(t, canContinue)

	ended := mb.findEventByType(EventGameEnded)
	require.NotNil(t, ended)
	assert.Equal(t, "wall_exhausted", ended.Payload["endReason"])
	scores, ok := ended.Payload["finalScores"].(map[string]int)
	require.True(t, ok)
	for _, id := range ids {
		assert.Equal(t, 0, scores[id.String()])
	}
	assert.Equal(t, PhaseFinished, g.Phase().Phase)

	// No further actions are accepted.
	_, err := g.HandleTurnAction(ids[0], DrawAction{})
	assert.Error(t, err)
}

func TestWallExhaustionCheckPasses(t *testing.T) {
	g, _, mb := setupPlaying(t, 4)
	assert.True(t, g.CheckWallExhaustion(8))

	checked := mb.findEventByType(EventWallExhaustionCheck)
	require.NotNil(t, checked)
	assert.Equal(t, true, checked.Payload["canContinue"])
	assert.False(t, g.gameOver)
}

func TestPassOutCascadeEndsGame(t *testing.T) {
	g, ids, mb := setupPlaying(t, 4)

	for _, id := range ids[:2] {
		_, err := g.HandleTurnAction(id, PassAction{Reason: "dead hand"})
		require.NoError(t, err)
	}
	assert.False(t, g.gameOver, "two players remain")

	res, err := g.HandleTurnAction(ids[2], PassAction{Reason: "dead hand"})
	require.NoError(t, err)
	assert.True(t, res.GameEnded, "one active player left ends the hand")

	ended := mb.findEventByType(EventGameEnded)
	require.NotNil(t, ended)
	assert.Equal(t, "all_passed_out", ended.Payload["endReason"])
	assert.Equal(t, ids[3].String(), ended.Payload["winner"], "the last active player takes the hand")
}

func TestPassOutForfeitReason(t *testing.T) {
	g, ids, mb := setupPlaying(t, 3)
	_, err := g.HandleTurnAction(ids[0], PassAction{Reason: "forfeit"})
	require.NoError(t, err)
	_, err = g.HandleTurnAction(ids[1], PassAction{Reason: "forfeit"})
	require.NoError(t, err)

	ended := mb.findEventByType(EventGameEnded)
	require.NotNil(t, ended)
	assert.Equal(t, "forfeit", ended.Payload["endReason"])
}

func TestSeatingSuccessorSkipsPassedOut(t *testing.T) {
	g, ids, _ := setupPlaying(t, 4)
	playerData(g, ids[1]).PassedOut = true

	assert.Equal(t, ids[2], g.seatingSuccessor(ids[0]), "south is skipped once passed out")
	assert.Equal(t, ids[0], g.seatingSuccessor(ids[3]))
}

func TestRestartResetsTheRoom(t *testing.T) {
	g, ids, _ := setupPlaying(t, 4)
	g.wall.Draw(g.wall.Remaining() - 1)
	g.CheckWallExhaustion(8)
	require.Equal(t, PhaseFinished, g.Phase().Phase)

	require.NoError(t, g.Restart())
	assert.Equal(t, PhaseWaiting, g.Phase().Phase)
	assert.Equal(t, 0, g.WallRemaining())
	assert.Equal(t, uuid.Nil, g.CurrentPlayer())
	for _, id := range ids {
		p := playerData(g, id)
		assert.Empty(t, p.Hand)
		assert.Empty(t, p.ExposedSets)
		assert.Equal(t, Position(""), p.Position)
	}
}
