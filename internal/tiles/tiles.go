// Package tiles defines the American Mah Jongg tile set and the shared
// draw wall. Tiles are immutable value objects; identity is the
// suit/value pair, so two copies of the five of dots compare equal.
package tiles

import (
	"fmt"
	"math/rand"
)

// Suit identifies one of the seven tile families in the NMJL set.
type Suit string

// Suit constants for the NMJL rule set.
const (
	SuitDots    Suit = "dots"
	SuitBams    Suit = "bams"
	SuitCracks  Suit = "cracks"
	SuitWinds   Suit = "winds"
	SuitDragons Suit = "dragons"
	SuitFlowers Suit = "flowers"
	SuitJokers  Suit = "jokers"
)

// Tile is an immutable tile value. ID is a stable short code derived
// from suit and value (e.g. "5D" for the five of dots), shared by all
// physical copies of the same tile.
type Tile struct {
	ID      string `json:"id"`
	Suit    Suit   `json:"suit"`
	Value   string `json:"value"`
	IsJoker bool   `json:"isJoker"`
}

// New constructs a Tile for the given suit and value, deriving its ID.
func New(suit Suit, value string) Tile {
	return Tile{
		ID:      tileID(suit, value),
		Suit:    suit,
		Value:   value,
		IsJoker: suit == SuitJokers,
	}
}

func tileID(suit Suit, value string) string {
	switch suit {
	case SuitDots:
		return value + "D"
	case SuitBams:
		return value + "B"
	case SuitCracks:
		return value + "C"
	case SuitWinds:
		// east -> "E", south -> "S", west -> "W", north -> "N".
		return string(value[0]&^0x20) + "W"
	case SuitDragons:
		return "D" + string(value[0]&^0x20)
	case SuitFlowers:
		return "F" + value
	case SuitJokers:
		return "J"
	}
	return fmt.Sprintf("%s-%s", suit, value)
}

// SameKind reports whether two tiles are the same suit/value pair.
func (t Tile) SameKind(o Tile) bool {
	return t.Suit == o.Suit && t.Value == o.Value
}

// MatchesForCall reports whether t can stand in for target when
// assembling a pung or kong. Jokers are wildcards.
func (t Tile) MatchesForCall(target Tile) bool {
	return t.IsJoker || t.SameKind(target)
}

func (t Tile) String() string { return t.ID }

// SetSize is the authoritative tile count for the NMJL rule set:
// 108 number tiles, 16 winds, 12 dragons, 8 flowers, 8 jokers.
const SetSize = 152

var (
	windValues   = []string{"east", "south", "west", "north"}
	dragonValues = []string{"red", "green", "white"}
)

// FullSet builds the fixed 152-tile multiset in deterministic order.
func FullSet() []Tile {
	set := make([]Tile, 0, SetSize)
	for _, suit := range []Suit{SuitDots, SuitBams, SuitCracks} {
		for v := 1; v <= 9; v++ {
			for c := 0; c < 4; c++ {
				set = append(set, New(suit, fmt.Sprintf("%d", v)))
			}
		}
	}
	for _, v := range windValues {
		for c := 0; c < 4; c++ {
			set = append(set, New(SuitWinds, v))
		}
	}
	for _, v := range dragonValues {
		for c := 0; c < 4; c++ {
			set = append(set, New(SuitDragons, v))
		}
	}
	for i := 1; i <= 8; i++ {
		set = append(set, New(SuitFlowers, fmt.Sprintf("%d", i)))
	}
	for i := 0; i < 8; i++ {
		set = append(set, New(SuitJokers, "joker"))
	}
	return set
}

// Wall is the shared shuffled draw pile for one room. It is owned
// exclusively by the room's action executor and is not safe for
// concurrent use on its own.
type Wall struct {
	tiles     []Tile
	total     int
	dealt     int
	exhausted bool
}

// NewWall builds the full set and shuffles it with rng. A nil rng
// panics; callers seed explicitly so deals are reproducible in tests.
func NewWall(rng *rand.Rand) *Wall {
	set := FullSet()
	rng.Shuffle(len(set), func(i, j int) {
		set[i], set[j] = set[j], set[i]
	})
	return &Wall{tiles: set, total: len(set)}
}

// Draw pops up to n tiles from the end of the wall. If fewer than n
// remain it drains what is left and marks the wall exhausted; it never
// fails.
func (w *Wall) Draw(n int) []Tile {
	if n > len(w.tiles) {
		n = len(w.tiles)
		w.exhausted = true
	}
	cut := len(w.tiles) - n
	drawn := make([]Tile, n)
	copy(drawn, w.tiles[cut:])
	w.tiles = w.tiles[:cut]
	w.dealt += n
	if len(w.tiles) == 0 {
		w.exhausted = true
	}
	return drawn
}

// Remaining returns the number of tiles still in the wall.
func (w *Wall) Remaining() int { return len(w.tiles) }

// Dealt returns the monotonic count of tiles drawn so far.
func (w *Wall) Dealt() int { return w.dealt }

// Total returns the fixed tile count the wall started with.
func (w *Wall) Total() int { return w.total }

// IsExhausted reports whether fewer than minNeeded tiles remain. The
// caller supplies the threshold, typically twice the number of active
// players.
func (w *Wall) IsExhausted(minNeeded int) bool {
	return len(w.tiles) < minNeeded
}

// Drained reports whether the wall has ever been drawn past its end.
func (w *Wall) Drained() bool { return w.exhausted }
