// internal/game/discards.go
package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

// CallEligibility records which call types a discard was available for
// at the moment it hit the table. Flags are never revoked; only
// recency gates whether the discard can still be claimed.
type CallEligibility struct {
	Pung bool `json:"pung"`
	Kong bool `json:"kong"`
	Win  bool `json:"win"`
}

// DiscardRecord is one entry in the append-only discard history.
type DiscardRecord struct {
	Tile         tiles.Tile      `json:"tile"`
	DiscardedBy  uuid.UUID       `json:"discardedBy"`
	TurnNumber   int             `json:"turnNumber"`
	Timestamp    time.Time       `json:"timestamp"`
	AvailableFor CallEligibility `json:"availableFor"`
}

// DiscardLedger tracks the live discard pile plus a parallel history
// log. The live sequence shrinks when a discard is called; the history
// never does.
type DiscardLedger struct {
	pile    []tiles.Tile
	history []DiscardRecord
}

// NewDiscardLedger returns an empty ledger.
func NewDiscardLedger() *DiscardLedger {
	return &DiscardLedger{}
}

// Discard appends tile to both the live pile and the history log. All
// eligibility flags default to true.
func (l *DiscardLedger) Discard(tile tiles.Tile, playerID uuid.UUID, turnNumber int) DiscardRecord {
	rec := DiscardRecord{
		Tile:         tile,
		DiscardedBy:  playerID,
		TurnNumber:   turnNumber,
		Timestamp:    time.Now(),
		AvailableFor: CallEligibility{Pung: true, Kong: true, Win: true},
	}
	l.pile = append(l.pile, tile)
	l.history = append(l.history, rec)
	return rec
}

// Top returns the most recent live discard, the only one that can be
// claimed, or false when the pile is empty.
func (l *DiscardLedger) Top() (tiles.Tile, bool) {
	if len(l.pile) == 0 {
		return tiles.Tile{}, false
	}
	return l.pile[len(l.pile)-1], true
}

// LastRecord returns the most recent history entry, or false when the
// ledger has never seen a discard.
func (l *DiscardLedger) LastRecord() (DiscardRecord, bool) {
	if len(l.history) == 0 {
		return DiscardRecord{}, false
	}
	return l.history[len(l.history)-1], true
}

// PopForCall removes and returns the most recent live discard. Calling
// on anything but the top of the pile is not supported.
func (l *DiscardLedger) PopForCall() (tiles.Tile, bool) {
	if len(l.pile) == 0 {
		return tiles.Tile{}, false
	}
	top := l.pile[len(l.pile)-1]
	l.pile = l.pile[:len(l.pile)-1]
	return top, true
}

// Size returns the number of tiles currently in the live pile.
func (l *DiscardLedger) Size() int { return len(l.pile) }

// Pile returns a copy of the live discard sequence, oldest first.
func (l *DiscardLedger) Pile() []tiles.Tile {
	out := make([]tiles.Tile, len(l.pile))
	copy(out, l.pile)
	return out
}

// History returns a copy of the full discard history, oldest first.
func (l *DiscardLedger) History() []DiscardRecord {
	out := make([]DiscardRecord, len(l.history))
	copy(out, l.history)
	return out
}
