package game

import (
	"fmt"
	"strings"
)

// Move is a single requested chess move in coordinate form.
type Move struct {
	From      string
	To        string
	Promotion string
}

// MoveResult is the outcome of validating a move.
type MoveResult struct {
	// Legal reports whether the move was accepted.
	Legal bool
	// Reason explains a rejection; empty for legal moves.
	Reason string
	// Board is the opaque board-state handle after the move.
	Board string
	// GameState is a short status label: "active", "check", "checkmate", "draw".
	GameState   string
	IsCheck     bool
	IsCheckmate bool
	IsDraw      bool
}

// MoveValidator decides move legality and the resulting game flags. The chess
// rule engine behind it is a collaborator of the session layer, not part of it.
type MoveValidator interface {
	// Validate judges the move submitted by the named player against the
	// game's current board handle and returns the result, including the
	// new board state when the move is legal.
	Validate(gameID, board, player string, mv Move) (MoveResult, error)
}

// InitialBoard is the opaque handle for a fresh game.
const InitialBoard = "startpos"

// CoordinateValidator is a minimal MoveValidator that accepts any move between
// well-formed squares and appends it to the board handle. It enforces no chess
// rules and never reports check, checkmate, or draw; it exists so the session
// layer is exercisable end to end until a real rule engine is plugged in.
type CoordinateValidator struct{}

// Validate implements MoveValidator.
func (CoordinateValidator) Validate(gameID, board, player string, mv Move) (MoveResult, error) {
	if !validSquare(mv.From) || !validSquare(mv.To) {
		return MoveResult{
			Legal:  false,
			Reason: fmt.Sprintf("malformed move %s-%s", mv.From, mv.To),
			Board:  board,
		}, nil
	}
	if mv.From == mv.To {
		return MoveResult{Legal: false, Reason: "move must change square", Board: board}, nil
	}

	next := board
	if !strings.Contains(next, " moves") {
		next += " moves"
	}
	next += " " + mv.From + mv.To + mv.Promotion

	return MoveResult{
		Legal:     true,
		Board:     next,
		GameState: "active",
	}, nil
}

func validSquare(sq string) bool {
	if len(sq) != 2 {
		return false
	}
	return sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}
