package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartingPosition(t *testing.T) {
	engine := NewUCIEngine()
	pos := engine.StartingPosition()

	assert.Equal(t, StartingFEN, engine.FEN(pos))
	assert.Equal(t, "White", pos.Turn())
	assert.Equal(t, StatusOngoing, pos.Status())
}

func TestParseMove(t *testing.T) {
	engine := NewUCIEngine()
	pos := engine.StartingPosition()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "pawn push", raw: "e2e4"},
		{name: "surrounding whitespace", raw: " e2e4\n"},
		{name: "promotion suffix", raw: "e7e8q"},
		{name: "garbage token", raw: "zz99", wantErr: true},
		{name: "empty input", raw: "", wantErr: true},
		{name: "truncated", raw: "e2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			move, err := engine.ParseMove(pos, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedMove))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tt.raw), move.String())
		})
	}
}

func TestIsLegal(t *testing.T) {
	engine := NewUCIEngine()
	pos := engine.StartingPosition()

	legal, err := engine.ParseMove(pos, "e2e4")
	require.NoError(t, err)
	assert.True(t, engine.IsLegal(pos, legal))

	// Well-formed but impossible: a pawn cannot jump three ranks.
	illegal, err := engine.ParseMove(pos, "e2e5")
	require.NoError(t, err)
	assert.False(t, engine.IsLegal(pos, illegal))

	// Black may not move first.
	outOfTurn, err := engine.ParseMove(pos, "e7e5")
	require.NoError(t, err)
	assert.False(t, engine.IsLegal(pos, outOfTurn))
}

func TestApplyIsPure(t *testing.T) {
	engine := NewUCIEngine()
	pos := engine.StartingPosition()

	move, err := engine.ParseMove(pos, "e2e4")
	require.NoError(t, err)

	next := engine.Apply(pos, move)

	assert.Equal(t, StartingFEN, engine.FEN(pos), "Apply must not mutate its argument")
	assert.NotEqual(t, engine.FEN(pos), engine.FEN(next))
	assert.True(t, strings.HasPrefix(engine.FEN(next), "rnbqkbnr/pppppppp/8/8/4P3/8/PPPPPPPP/RNBQKBNR b"))
	assert.Equal(t, "Black", next.Turn())
}

func TestStatusCheckmate(t *testing.T) {
	engine := NewUCIEngine()
	pos := engine.StartingPosition()

	// Fool's mate.
	for _, raw := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		move, err := engine.ParseMove(pos, raw)
		require.NoError(t, err)
		require.True(t, engine.IsLegal(pos, move), "move %s should be legal", raw)
		pos = engine.Apply(pos, move)
	}

	assert.Equal(t, StatusCheckmate, pos.Status())
}

func TestPositionFromFEN(t *testing.T) {
	pos, err := PositionFromFEN(StartingFEN)
	require.NoError(t, err)
	assert.Equal(t, StartingFEN, pos.FEN())

	_, err = PositionFromFEN("not a fen")
	assert.Error(t, err)
}
