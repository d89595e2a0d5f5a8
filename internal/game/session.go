// internal/game/session.go
package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thetrev68/american-mahjong-server/internal/patterns"
	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

var uuidNil = uuid.Nil

// Position is a seat at the table. East is the dealer and takes the
// first turn.
type Position string

// Seat positions in turn order.
const (
	PositionEast  Position = "east"
	PositionSouth Position = "south"
	PositionWest  Position = "west"
	PositionNorth Position = "north"
)

var seatingOrder = []Position{PositionEast, PositionSouth, PositionWest, PositionNorth}

// ExposedSet is a meld shown face-up after a successful call.
type ExposedSet struct {
	Type       CallType     `json:"type"` // pung or kong
	Tiles      []tiles.Tile `json:"tiles"`
	CalledFrom uuid.UUID    `json:"calledFrom"`
	Timestamp  time.Time    `json:"timestamp"`
}

// containsJoker reports whether the set holds at least one joker.
func (e ExposedSet) containsJoker() bool {
	for _, t := range e.Tiles {
		if t.IsJoker {
			return true
		}
	}
	return false
}

// naturalTile returns a non-joker tile from the set, used to check
// joker-swap replacements against the set's kind.
func (e ExposedSet) naturalTile() (tiles.Tile, bool) {
	for _, t := range e.Tiles {
		if !t.IsJoker {
			return t, true
		}
	}
	return tiles.Tile{}, false
}

// PlayerGameData is the authoritative per-player game state. Hands and
// exposed sets are mutated only by the session's action executor.
type PlayerGameData struct {
	ID          uuid.UUID    `json:"playerId"`
	Name        string       `json:"playerName"`
	Position    Position     `json:"position"`
	Hand        []tiles.Tile `json:"-"` // Never serialized wholesale; snapshots obfuscate.
	ExposedSets []ExposedSet `json:"exposedSets"`
	HasDrawn    bool         `json:"hasDrawn"`
	PassedOut   bool         `json:"passedOut"`
}

func (p *PlayerGameData) exposedTileCount() int {
	n := 0
	for _, set := range p.ExposedSets {
		n += len(set.Tiles)
	}
	return n
}

func (p *PlayerGameData) jokersHeld() int {
	n := 0
	for _, t := range p.Hand {
		if t.IsJoker {
			n++
		}
	}
	return n
}

// removeFromHand removes one tile of the given kind from the hand.
// Returns false if no copy is present.
func (p *PlayerGameData) removeFromHand(kind tiles.Tile) bool {
	for i, t := range p.Hand {
		if t.SameKind(kind) {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// holdsKind reports whether the hand contains a tile of the given kind.
func (p *PlayerGameData) holdsKind(kind tiles.Tile) bool {
	for _, t := range p.Hand {
		if t.SameKind(kind) {
			return true
		}
	}
	return false
}

// GameSession is the single authoritative aggregate for one room: tile
// supply, discard ledger, player hands, phase machine, charleston
// barrier, and coordination state all live here, guarded by one mutex.
// Every mutating entry point takes the lock for its full critical
// section, including calls out to the pattern-validation bridge, so
// two concurrent requests for the same room can never interleave
// between validation and mutation.
type GameSession struct {
	ID     uuid.UUID
	RoomID uuid.UUID

	Mu sync.Mutex // Protects all fields below.

	phase       PhaseState
	phaseLimits phaseTimeLimits
	transitions []PhaseTransitionRecord

	players []*PlayerGameData
	coord   map[uuid.UUID]*CoordinationState

	wall   *tiles.Wall
	ledger *DiscardLedger
	rng    *rand.Rand

	charleston *charlestonState

	currentPlayer uuid.UUID
	turnNumber    int
	roundNumber   int
	currentWind   Position
	gameStarted   bool
	gameOver      bool

	callWindow *callWindow

	validator patterns.Validator

	actionIndex int

	// Communication callbacks, wired by the room registry.
	BroadcastFn         func(ev GameEvent)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
	OnGameEnd           OnGameEndFunc

	logger *logrus.Entry
}

// NewGameSession creates a session for roomID in the waiting phase.
// The wall is built lazily at deal time so restarts reshuffle.
func NewGameSession(roomID uuid.UUID, validator patterns.Validator, logger *logrus.Logger) *GameSession {
	id, _ := uuid.NewRandom()
	if logger == nil {
		logger = logrus.New()
	}
	if validator == nil {
		validator = patterns.NewStaticValidator()
	}
	return &GameSession{
		ID:          id,
		RoomID:      roomID,
		phase:       PhaseState{Phase: PhaseWaiting, StartTime: time.Now()},
		phaseLimits: defaultPhaseTimeLimits(),
		coord:       make(map[uuid.UUID]*CoordinationState),
		ledger:      NewDiscardLedger(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		charleston:  newCharlestonState(),
		validator:   validator,
		currentWind: PositionEast,
		logger:      logger.WithField("room_id", roomID.String()),
	}
}

// SeedRNG replaces the session's random source, making deals
// reproducible in tests.
func (s *GameSession) SeedRNG(seed int64) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// AddPlayer registers a player while the room is waiting. Joining an
// in-progress room is only possible through Reconnect.
func (s *GameSession) AddPlayer(playerID uuid.UUID, name string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if p := s.getPlayerByID(playerID); p != nil {
		return executionErrorf("player %s already in room", playerID)
	}
	if s.phase.Phase != PhaseWaiting {
		return executionErrorf("room is not accepting players in phase %s", s.phase.Phase)
	}
	if len(s.players) >= 4 {
		return executionErrorf("room is full")
	}
	s.players = append(s.players, &PlayerGameData{ID: playerID, Name: name})
	s.initCoordination(playerID)
	s.logger.WithField("player_id", playerID).Info("player joined")
	s.logAction(playerID, "player_join", map[string]interface{}{"name": name})
	return nil
}

// RemovePlayer drops a player entirely. Only legal while waiting;
// mid-game departures go through disconnect handling instead.
func (s *GameSession) RemovePlayer(playerID uuid.UUID) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.phase.Phase != PhaseWaiting {
		return executionErrorf("cannot remove player during phase %s", s.phase.Phase)
	}
	for i, p := range s.players {
		if p.ID == playerID {
			s.players = append(s.players[:i], s.players[i+1:]...)
			delete(s.coord, playerID)
			s.logAction(playerID, "player_leave", nil)
			return nil
		}
	}
	return executionErrorf("player %s not in room", playerID)
}

// AssignPosition seats a player during positioning. Uniqueness is
// enforced when leaving the phase, not per assignment, so players can
// shuffle seats freely.
func (s *GameSession) AssignPosition(playerID uuid.UUID, pos Position) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.phase.Phase != PhasePositioning {
		return executionErrorf("positions can only change during positioning, not %s", s.phase.Phase)
	}
	p := s.getPlayerByID(playerID)
	if p == nil {
		return executionErrorf("player %s not in room", playerID)
	}
	valid := false
	for _, sp := range seatingOrder {
		if sp == pos {
			valid = true
			break
		}
	}
	if !valid {
		return executionErrorf("unknown position %q", pos)
	}
	p.Position = pos
	s.logAction(playerID, "position_assigned", map[string]interface{}{"position": pos})
	return nil
}

// TransitionPhase moves the room to the requested phase, applying the
// machine's edge set and entry guards.
func (s *GameSession) TransitionPhase(to Phase) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.transitionPhase(to)
}

// RollbackPhase steps back to the current phase's predecessor.
func (s *GameSession) RollbackPhase() error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.rollbackPhase()
}

// CheckOvertime refreshes the advisory overtime indicator.
func (s *GameSession) CheckOvertime() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.checkOvertime(time.Now())
}

// Deal shuffles a fresh wall and deals 13 tiles to every seated
// player. The dealer's fourteenth tile is drawn separately by
// DealDealerTile before the Charleston so the deal itself is uniform.
func (s *GameSession) Deal() error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if len(s.players) < 3 {
		return executionErrorf("cannot deal to %d players", len(s.players))
	}
	s.wall = tiles.NewWall(s.rng)
	for _, p := range s.players {
		p.Hand = s.wall.Draw(13)
		p.ExposedSets = nil
		p.HasDrawn = false
		p.PassedOut = false
	}
	s.logger.WithField("dealt", s.wall.Dealt()).Info("tiles dealt")
	s.logAction(uuidNil, "tiles_dealt", map[string]interface{}{"players": len(s.players), "dealt": s.wall.Dealt()})
	s.persistInitialState()
	return nil
}

// DealDealerTile gives east the fourteenth tile that makes them the
// dealer. Idempotent: a dealer already holding 14 is left alone.
func (s *GameSession) DealDealerTile() error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.wall == nil {
		return executionErrorf("tiles have not been dealt")
	}
	for _, p := range s.players {
		if p.Position == PositionEast {
			if len(p.Hand)+p.exposedTileCount() >= 14 {
				return nil
			}
			p.Hand = append(p.Hand, s.wall.Draw(1)...)
			return nil
		}
	}
	return executionErrorf("no player holds east")
}

// StartTurns begins active play: the first player (east unless
// overridden) becomes current and the opening turn-update goes out.
func (s *GameSession) StartTurns(firstPlayer uuid.UUID) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.phase.Phase != PhasePlaying {
		return executionErrorf("turns can only start in the playing phase, not %s", s.phase.Phase)
	}
	if s.gameStarted && !s.gameOver {
		return executionErrorf("turns already started")
	}
	if firstPlayer == uuid.Nil {
		for _, p := range s.players {
			if p.Position == PositionEast {
				firstPlayer = p.ID
				break
			}
		}
	}
	if s.getPlayerByID(firstPlayer) == nil {
		return executionErrorf("first player %s not in room", firstPlayer)
	}
	s.currentPlayer = firstPlayer
	s.turnNumber = 1
	s.roundNumber = 1
	s.currentWind = PositionEast
	s.gameStarted = true
	s.gameOver = false
	s.logAction(firstPlayer, "turns_started", nil)
	s.broadcastTurnUpdate()
	return nil
}

// TurnOrder returns player ids in seating order, seated players only.
func (s *GameSession) TurnOrder() []uuid.UUID {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.turnOrderLocked()
}

func (s *GameSession) turnOrderLocked() []uuid.UUID {
	order := make([]uuid.UUID, 0, len(s.players))
	for _, pos := range seatingOrder {
		for _, p := range s.players {
			if p.Position == pos {
				order = append(order, p.ID)
			}
		}
	}
	return order
}

// seatingSuccessor returns the next seat's player after playerID in
// east->south->west->north rotation, skipping passed-out players.
// Disconnected players are NOT skipped: a dropped current player
// stalls the room until they return.
func (s *GameSession) seatingSuccessor(playerID uuid.UUID) uuid.UUID {
	order := s.turnOrderLocked()
	if len(order) == 0 {
		return uuid.Nil
	}
	idx := 0
	for i, id := range order {
		if id == playerID {
			idx = i
			break
		}
	}
	for step := 1; step <= len(order); step++ {
		next := order[(idx+step)%len(order)]
		if p := s.getPlayerByID(next); p != nil && !p.PassedOut {
			return next
		}
	}
	return uuid.Nil
}

func (s *GameSession) getPlayerByID(playerID uuid.UUID) *PlayerGameData {
	for _, p := range s.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// activePlayerCount counts players still participating in the hand.
func (s *GameSession) activePlayerCount() int {
	n := 0
	for _, p := range s.players {
		if !p.PassedOut {
			n++
		}
	}
	return n
}

// TileConservationTotal sums every tile location for the room. While a
// game is live this always equals the wall's fixed total.
func (s *GameSession) TileConservationTotal() int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.wall == nil {
		return 0
	}
	total := s.wall.Remaining() + s.ledger.Size()
	for _, p := range s.players {
		total += len(p.Hand) + p.exposedTileCount()
	}
	return total
}

// Phase returns the current phase state.
func (s *GameSession) Phase() PhaseState {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.phase
}

// CurrentPlayer returns the player whose turn it is.
func (s *GameSession) CurrentPlayer() uuid.UUID {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.currentPlayer
}

// WallRemaining returns the live wall count, or zero before the deal.
func (s *GameSession) WallRemaining() int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.wall == nil {
		return 0
	}
	return s.wall.Remaining()
}

// fireEvent broadcasts an event to the whole room. Lock held by caller.
func (s *GameSession) fireEvent(ev GameEvent) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event to one connected player. Lock held
// by caller.
func (s *GameSession) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if s.BroadcastToPlayerFn == nil {
		return
	}
	if c, ok := s.coord[playerID]; ok && !c.Connected {
		return
	}
	s.BroadcastToPlayerFn(playerID, ev)
}

// broadcastTurnUpdate emits the public turn counters. Lock held by
// caller.
func (s *GameSession) broadcastTurnUpdate() {
	s.fireEvent(GameEvent{
		Type: EventTurnUpdate,
		Payload: map[string]interface{}{
			"currentPlayer": s.currentPlayer.String(),
			"turnNumber":    s.turnNumber,
			"roundNumber":   s.roundNumber,
			"currentWind":   s.currentWind,
		},
	})
}

// endGame finalizes the hand, broadcasts game-ended, transitions to
// finished, and invokes the end callback. Lock held by caller.
func (s *GameSession) endGame(winner uuid.UUID, scores map[uuid.UUID]int, endReason string) {
	if s.gameOver {
		return
	}
	s.gameOver = true
	s.gameStarted = false

	if scores == nil {
		scores = make(map[uuid.UUID]int)
		for _, p := range s.players {
			scores[p.ID] = 0
		}
	}
	finalScores := make(map[string]int, len(scores))
	for id, sc := range scores {
		finalScores[id.String()] = sc
	}

	s.logAction(winner, "game_ended", map[string]interface{}{"endReason": endReason, "scores": finalScores})
	s.persistFinalState(winner, scores, endReason)

	s.fireEvent(GameEvent{
		Type: EventGameEnded,
		Payload: map[string]interface{}{
			"winner":      winner.String(),
			"finalScores": finalScores,
			"endReason":   endReason,
		},
	})

	if s.phase.Phase == PhasePlaying {
		if err := s.transitionPhase(PhaseFinished); err != nil {
			s.logger.WithError(err).Warn("could not transition to finished")
		}
	}
	if s.OnGameEnd != nil {
		s.OnGameEnd(s.RoomID, winner, scores, endReason)
	}
}

// CheckWallExhaustion ends the game for lack of tiles when fewer than
// minTilesNeeded remain. A zero threshold defaults to twice the active
// player count. Returns whether play can continue.
func (s *GameSession) CheckWallExhaustion(minTilesNeeded int) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.wall == nil {
		return false
	}
	if minTilesNeeded <= 0 {
		minTilesNeeded = 2 * s.activePlayerCount()
	}
	canContinue := !s.wall.IsExhausted(minTilesNeeded)
	s.fireEvent(GameEvent{
		Type: EventWallExhaustionCheck,
		Payload: map[string]interface{}{
			"canContinue":        canContinue,
			"wallTilesRemaining": s.wall.Remaining(),
		},
	})
	if !canContinue && !s.gameOver {
		s.endGame(uuid.Nil, nil, "wall_exhausted")
	}
	return canContinue
}

// Restart resets a finished room back to waiting for another hand.
func (s *GameSession) Restart() error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if err := s.transitionPhase(PhaseWaiting); err != nil {
		return err
	}
	for _, p := range s.players {
		p.Hand = nil
		p.ExposedSets = nil
		p.HasDrawn = false
		p.PassedOut = false
		p.Position = ""
	}
	s.wall = nil
	s.ledger = NewDiscardLedger()
	s.charleston = newCharlestonState()
	s.callWindow = nil
	s.currentPlayer = uuid.Nil
	s.turnNumber = 0
	s.roundNumber = 0
	s.gameStarted = false
	s.gameOver = false
	for _, c := range s.coord {
		c.resetReadiness()
	}
	return nil
}
