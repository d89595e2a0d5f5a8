// internal/ws/frames_test.go
package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thetrev68/american-mahjong-server/internal/game"
)

func payload(t *testing.T, action, data string) turnActionPayload {
	t.Helper()
	p := turnActionPayload{Action: action}
	if data != "" {
		p.ActionData = json.RawMessage(data)
	}
	return p
}

func TestDecodeDrawAction(t *testing.T) {
	req, err := decodeActionRequest(payload(t, "draw", ""))
	require.NoError(t, err)
	assert.IsType(t, game.DrawAction{}, req)
}

func TestDecodeDiscardAction(t *testing.T) {
	req, err := decodeActionRequest(payload(t, "discard",
		`{"tile":{"id":"5D","suit":"dots","value":"5"}}`))
	require.NoError(t, err)
	d, ok := req.(game.DiscardAction)
	require.True(t, ok)
	assert.Equal(t, "5D", d.Tile.ID)
}

func TestDecodeCallActionInfersTypeFromAction(t *testing.T) {
	req, err := decodeActionRequest(payload(t, "call_kong",
		`{"tiles":[{"id":"5D","suit":"dots","value":"5"},{"id":"5D","suit":"dots","value":"5"},{"id":"5D","suit":"dots","value":"5"}]}`))
	require.NoError(t, err)
	c, ok := req.(game.CallAction)
	require.True(t, ok)
	assert.Equal(t, game.CallKong, c.Call)
	assert.Len(t, c.Tiles, 3)
}

func TestDecodeJokerSwapAction(t *testing.T) {
	req, err := decodeActionRequest(payload(t, "joker_swap",
		`{"setIndex":1,"replacement":{"id":"3B","suit":"bams","value":"3"}}`))
	require.NoError(t, err)
	j, ok := req.(game.JokerSwapAction)
	require.True(t, ok)
	assert.Equal(t, 1, j.SetIndex)
	assert.Equal(t, "3B", j.Replacement.ID)
}

func TestDecodeMahjongAction(t *testing.T) {
	req, err := decodeActionRequest(payload(t, "call_mahjong",
		`{"winningHand":[],"selectedPattern":"year-hand","score":30}`))
	require.NoError(t, err)
	m, ok := req.(game.MahjongAction)
	require.True(t, ok)
	assert.Equal(t, "year-hand", m.PatternID)
	assert.Equal(t, 30, m.Score)
}

func TestDecodePassActionWithoutData(t *testing.T) {
	req, err := decodeActionRequest(payload(t, "pass", ""))
	require.NoError(t, err)
	assert.IsType(t, game.PassAction{}, req)
}

func TestDecodeUnknownActionSurvivesDecoding(t *testing.T) {
	req, err := decodeActionRequest(payload(t, "teleport", ""))
	require.NoError(t, err, "unknown actions are rejected by validation, not dropped")
	u, ok := req.(game.UnknownAction)
	require.True(t, ok)
	assert.Equal(t, "teleport", u.Raw)
}

func TestDecodeMalformedDataFails(t *testing.T) {
	_, err := decodeActionRequest(payload(t, "discard", `{"tile":`))
	assert.Error(t, err)
}

func TestCharlestonMarkerGatesPlayingEntry(t *testing.T) {
	assert.True(t, charlestonMarkerBlocks(game.PhasePlaying, "right"))
	assert.True(t, charlestonMarkerBlocks(game.PhasePlaying, map[string]interface{}{"active": true}))
	assert.False(t, charlestonMarkerBlocks(game.PhasePlaying, "complete"))
	assert.False(t, charlestonMarkerBlocks(game.PhasePlaying, map[string]interface{}{"active": false}))
	assert.False(t, charlestonMarkerBlocks(game.PhasePlaying, nil),
		"no marker defers to the session's own entry guard")
	assert.False(t, charlestonMarkerBlocks(game.PhaseCharleston, "right"),
		"only the playing transition is gated")
}

func TestPhaseChangeDecodesPolymorphicMarker(t *testing.T) {
	var p phaseChangePayload
	require.NoError(t, json.Unmarshal(
		[]byte(`{"phase":"playing","charleston":{"phase":"complete"}}`), &p))
	assert.Equal(t, game.PhasePlaying, p.Phase)
	assert.False(t, charlestonMarkerBlocks(p.Phase, p.Charleston))
}

// Clients may still send fields the server does not act on; they decode
// as unknowns rather than shaping behavior.
func TestPayloadsTolerateUnmodeledFields(t *testing.T) {
	var sp startGamePayload
	require.NoError(t, json.Unmarshal(
		[]byte(`{"firstPlayer":"p1","turnOrder":["a","b"]}`), &sp))
	assert.Equal(t, "p1", sp.FirstPlayer)

	var wp wallCheckPayload
	require.NoError(t, json.Unmarshal(
		[]byte(`{"wallTilesRemaining":40,"minTilesNeeded":8}`), &wp))
	assert.Equal(t, 8, wp.MinTilesNeeded)
}
