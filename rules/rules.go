// rules/rules.go
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// StartingFEN is the standard initial chess position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrMalformedMove is returned when input does not parse as coordinate notation.
var ErrMalformedMove = errors.New("malformed move")

// Status is the terminal state derivable from a position alone.
type Status string

const (
	StatusOngoing   Status = ""
	StatusCheckmate Status = "checkmate"
	StatusStalemate Status = "stalemate"
)

// Position is a full chess position (placement, side to move, castling
// rights, en passant target, move counters). Values are immutable; Apply
// returns a fresh Position and never touches its argument.
type Position struct {
	inner *chess.Position
}

// FEN encodes the position as a FEN string.
func (p *Position) FEN() string {
	return p.inner.String()
}

// Turn reports the side to move, "White" or "Black".
func (p *Position) Turn() string {
	return p.inner.Turn().Name()
}

// Status reports whether the position is terminal.
func (p *Position) Status() Status {
	switch p.inner.Status() {
	case chess.Checkmate:
		return StatusCheckmate
	case chess.Stalemate:
		return StatusStalemate
	default:
		return StatusOngoing
	}
}

// Move is a parsed move, valid only against the position it was parsed for.
type Move struct {
	inner *chess.Move
}

func (m *Move) String() string {
	return m.inner.String()
}

// Engine is the rules capability consumed by a room: parsing, legality,
// pure move application, and notation.
type Engine interface {
	StartingPosition() *Position
	ParseMove(pos *Position, raw string) (*Move, error)
	IsLegal(pos *Position, m *Move) bool
	Apply(pos *Position, m *Move) *Position
	FEN(pos *Position) string
}

// UCIEngine implements Engine for coordinate (UCI) notation, e.g. "e2e4"
// or "e7e8q".
type UCIEngine struct{}

func NewUCIEngine() *UCIEngine {
	return &UCIEngine{}
}

func (e *UCIEngine) StartingPosition() *Position {
	return &Position{inner: chess.StartingPosition()}
}

func (e *UCIEngine) ParseMove(pos *Position, raw string) (*Move, error) {
	move, err := chess.UCINotation{}.Decode(pos.inner, strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedMove, raw)
	}
	return &Move{inner: move}, nil
}

func (e *UCIEngine) IsLegal(pos *Position, m *Move) bool {
	uci := m.inner.String()
	for _, valid := range pos.inner.ValidMoves() {
		if valid.String() == uci {
			return true
		}
	}
	return false
}

func (e *UCIEngine) Apply(pos *Position, m *Move) *Position {
	return &Position{inner: pos.inner.Update(m.inner)}
}

func (e *UCIEngine) FEN(pos *Position) string {
	return pos.inner.String()
}

// PositionFromFEN rebuilds a position from its FEN encoding.
func PositionFromFEN(fen string) (*Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	return &Position{inner: chess.NewGame(opt).Position()}, nil
}
