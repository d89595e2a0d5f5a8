// internal/tiles/tiles_test.go
package tiles

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullSetComposition(t *testing.T) {
	set := FullSet()
	require.Len(t, set, SetSize)

	bySuit := map[Suit]int{}
	jokers := 0
	for _, tile := range set {
		bySuit[tile.Suit]++
		if tile.IsJoker {
			jokers++
		}
	}

	assert.Equal(t, 36, bySuit[SuitDots])
	assert.Equal(t, 36, bySuit[SuitBams])
	assert.Equal(t, 36, bySuit[SuitCracks])
	assert.Equal(t, 16, bySuit[SuitWinds])
	assert.Equal(t, 12, bySuit[SuitDragons])
	assert.Equal(t, 8, bySuit[SuitFlowers])
	assert.Equal(t, 8, bySuit[SuitJokers])
	assert.Equal(t, 8, jokers, "every joker-suit tile must carry the joker flag")
}

func TestTileIDs(t *testing.T) {
	assert.Equal(t, "5D", New(SuitDots, "5").ID)
	assert.Equal(t, "9B", New(SuitBams, "9").ID)
	assert.Equal(t, "1C", New(SuitCracks, "1").ID)
	assert.Equal(t, "EW", New(SuitWinds, "east").ID)
	assert.Equal(t, "NW", New(SuitWinds, "north").ID)
	assert.Equal(t, "DR", New(SuitDragons, "red").ID)
	assert.Equal(t, "DG", New(SuitDragons, "green").ID)
	assert.Equal(t, "F3", New(SuitFlowers, "3").ID)
	assert.Equal(t, "J", New(SuitJokers, "joker").ID)
}

func TestSameKindAndCallMatching(t *testing.T) {
	five := New(SuitDots, "5")
	assert.True(t, five.SameKind(New(SuitDots, "5")))
	assert.False(t, five.SameKind(New(SuitBams, "5")))

	joker := New(SuitJokers, "joker")
	assert.True(t, joker.MatchesForCall(five), "jokers stand in for anything")
	assert.False(t, five.MatchesForCall(joker))
	assert.True(t, five.MatchesForCall(New(SuitDots, "5")))
}

func TestWallDrawAccounting(t *testing.T) {
	w := NewWall(rand.New(rand.NewSource(7)))
	require.Equal(t, SetSize, w.Remaining())
	require.Equal(t, SetSize, w.Total())

	drawn := w.Draw(13)
	assert.Len(t, drawn, 13)
	assert.Equal(t, SetSize-13, w.Remaining())
	assert.Equal(t, 13, w.Dealt())
	assert.False(t, w.Drained())
}

func TestWallShuffleIsSeedDeterministic(t *testing.T) {
	a := NewWall(rand.New(rand.NewSource(42)))
	b := NewWall(rand.New(rand.NewSource(42)))
	assert.Equal(t, a.Draw(20), b.Draw(20))
}

func TestWallOverdrawDrainsWithoutFailing(t *testing.T) {
	w := NewWall(rand.New(rand.NewSource(7)))
	w.Draw(SetSize - 3)
	require.Equal(t, 3, w.Remaining())

	drawn := w.Draw(10)
	assert.Len(t, drawn, 3, "overdraw returns what is left")
	assert.Equal(t, 0, w.Remaining())
	assert.True(t, w.Drained())
	assert.Equal(t, SetSize, w.Dealt())
}

func TestWallExhaustionThreshold(t *testing.T) {
	w := NewWall(rand.New(rand.NewSource(7)))
	w.Draw(SetSize - 7)

	assert.True(t, w.IsExhausted(8), "7 remaining is below a threshold of 8")
	assert.False(t, w.IsExhausted(7))
	assert.False(t, w.Drained(), "threshold checks never mark the wall drained")
}
