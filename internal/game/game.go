package game

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Player is the game layer's view of a connected participant. The server's
// session type satisfies it.
type Player interface {
	// Username returns the authenticated username.
	Username() string
	// Send delivers one wire message to the player.
	Send(v any) error
}

// ErrNotYourTurn is returned when a player moves out of turn.
var ErrNotYourTurn = errors.New("not your turn")

// ErrGameOver is returned when acting on a finished game.
var ErrGameOver = errors.New("game is over")

// Game is a paired, turn-alternating match between exactly two players.
// Colors are assigned at creation and never change; the turn holder is always
// exactly one of the two players and moves only through SwitchTurn.
type Game struct {
	// ID is the unique game identifier.
	ID string
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time

	white Player
	black Player

	mu     sync.Mutex
	turn   Player
	active bool
	board  string
}

// NewGame pairs two players with uniformly random color assignment. White
// holds the first turn.
//
// Precondition: a and b must be distinct, non-nil players.
func NewGame(a, b Player) *Game {
	if rand.IntN(2) == 0 {
		return newGame(a, b)
	}
	return newGame(b, a)
}

// newGame builds a game with fixed colors; tests use it for determinism.
func newGame(white, black Player) *Game {
	return &Game{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		white:     white,
		black:     black,
		turn:      white,
		active:    true,
		board:     InitialBoard,
	}
}

// White returns the white player.
func (g *Game) White() Player { return g.white }

// Black returns the black player.
func (g *Game) Black() Player { return g.black }

// CurrentTurn returns the player holding the turn.
func (g *Game) CurrentTurn() Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn
}

// SwitchTurn flips the turn holder between the two fixed player slots. It is
// the single authority for whose turn it is.
func (g *Game) SwitchTurn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.switchTurnLocked()
}

func (g *Game) switchTurnLocked() {
	if g.turn == g.white {
		g.turn = g.black
	} else {
		g.turn = g.white
	}
}

// IsPlayersTurn reports whether the given player holds the turn.
func (g *Game) IsPlayersTurn(p Player) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn == p
}

// Opponent returns the other player.
func (g *Game) Opponent(p Player) Player {
	if p == g.white {
		return g.black
	}
	return g.white
}

// HasPlayer reports whether the named user is one of the two players.
func (g *Game) HasPlayer(username string) bool {
	return g.white.Username() == username || g.black.Username() == username
}

// Active reports whether the game is still in progress.
func (g *Game) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// End deactivates the game. Idempotent.
func (g *Game) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
}

// Board returns the opaque board-state handle.
func (g *Game) Board() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board
}

// ApplyMove validates and applies a move for the given player. On a legal move
// the board advances and the turn switches unless the result ended the game.
//
// Postcondition: Returns the validator's result, ErrGameOver if the game is
// inactive, or ErrNotYourTurn when the player does not hold the turn.
func (g *Game) ApplyMove(p Player, mv Move, v MoveValidator) (MoveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return MoveResult{}, ErrGameOver
	}
	if g.turn != p {
		return MoveResult{}, ErrNotYourTurn
	}

	result, err := v.Validate(g.ID, g.board, p.Username(), mv)
	if err != nil {
		return MoveResult{}, err
	}
	if !result.Legal {
		return result, nil
	}

	g.board = result.Board
	if result.IsCheckmate || result.IsDraw {
		g.active = false
	} else {
		g.switchTurnLocked()
	}
	return result, nil
}

// BroadcastToPlayers sends an identical message to both players. Each send is
// independent: a failure delivering to one player does not suppress delivery
// to the other.
func (g *Game) BroadcastToPlayers(v any) error {
	return errors.Join(g.white.Send(v), g.black.Send(v))
}
