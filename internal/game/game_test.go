package game

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakePlayer records sent messages and can be made to fail sends.
type fakePlayer struct {
	name string

	mu   sync.Mutex
	sent []any
	fail bool
}

func (p *fakePlayer) Username() string { return p.name }

func (p *fakePlayer) Send(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("send failed")
	}
	p.sent = append(p.sent, v)
	return nil
}

func (p *fakePlayer) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestNewGameWhiteMovesFirst(t *testing.T) {
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	g := newGame(a, b)

	assert.Same(t, a, g.White())
	assert.Same(t, b, g.Black())
	assert.Same(t, a, g.CurrentTurn())
	assert.True(t, g.Active())
	assert.Equal(t, InitialBoard, g.Board())
}

func TestNewGameAssignsBothPlayers(t *testing.T) {
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	g := NewGame(a, b)

	assert.True(t, g.HasPlayer("alice"))
	assert.True(t, g.HasPlayer("bob"))
	assert.False(t, g.HasPlayer("carol"))
	assert.NotSame(t, g.White(), g.Black())
	// Whoever got white holds the first turn.
	assert.Same(t, g.White(), g.CurrentTurn())
}

func TestSwitchTurnAlternates(t *testing.T) {
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	g := newGame(a, b)

	g.SwitchTurn()
	assert.Same(t, b, g.CurrentTurn())
	g.SwitchTurn()
	assert.Same(t, a, g.CurrentTurn())
}

func TestPropertySwitchTurnInvolution(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := &fakePlayer{name: "alice"}
		b := &fakePlayer{name: "bob"}
		g := newGame(a, b)

		switches := rapid.IntRange(0, 100).Draw(rt, "switches")
		for i := 0; i < switches; i++ {
			g.SwitchTurn()
		}

		want := Player(a)
		if switches%2 == 1 {
			want = b
		}
		if g.CurrentTurn() != want {
			rt.Fatalf("after %d switches turn holder is %s", switches, g.CurrentTurn().Username())
		}
	})
}

func TestOpponent(t *testing.T) {
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	g := newGame(a, b)

	assert.Same(t, b, g.Opponent(a))
	assert.Same(t, a, g.Opponent(b))
}

func TestApplyMoveOutOfTurn(t *testing.T) {
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	g := newGame(a, b)

	_, err := g.ApplyMove(b, Move{From: "e7", To: "e5"}, CoordinateValidator{})
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Same(t, a, g.CurrentTurn())
}

func TestApplyMoveLegalSwitchesTurn(t *testing.T) {
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	g := newGame(a, b)

	result, err := g.ApplyMove(a, Move{From: "e2", To: "e4"}, CoordinateValidator{})
	require.NoError(t, err)
	assert.True(t, result.Legal)
	assert.Same(t, b, g.CurrentTurn())
	assert.Contains(t, g.Board(), "e2e4")
}

func TestApplyMoveIllegalKeepsTurn(t *testing.T) {
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	g := newGame(a, b)

	result, err := g.ApplyMove(a, Move{From: "z9", To: "e4"}, CoordinateValidator{})
	require.NoError(t, err)
	assert.False(t, result.Legal)
	assert.Same(t, a, g.CurrentTurn())
	assert.Equal(t, InitialBoard, g.Board())
}

// checkmateValidator ends the game on the first move.
type checkmateValidator struct{}

func (checkmateValidator) Validate(gameID, board, player string, mv Move) (MoveResult, error) {
	return MoveResult{Legal: true, Board: board, GameState: "checkmate", IsCheckmate: true}, nil
}

func TestApplyMoveCheckmateEndsGame(t *testing.T) {
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	g := newGame(a, b)

	result, err := g.ApplyMove(a, Move{From: "f3", To: "f7"}, checkmateValidator{})
	require.NoError(t, err)
	assert.True(t, result.IsCheckmate)
	assert.False(t, g.Active())
	// Turn does not switch on a game-ending move.
	assert.Same(t, a, g.CurrentTurn())

	_, err = g.ApplyMove(b, Move{From: "e7", To: "e5"}, CoordinateValidator{})
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestBroadcastToPlayersFaultIsolation(t *testing.T) {
	a := &fakePlayer{name: "alice", fail: true}
	b := &fakePlayer{name: "bob"}
	g := newGame(a, b)

	err := g.BroadcastToPlayers("hello")
	assert.Error(t, err)
	// The failure sending to alice must not suppress delivery to bob.
	assert.Equal(t, 1, b.sentCount())
}

func TestEndIsIdempotent(t *testing.T) {
	g := newGame(&fakePlayer{name: "alice"}, &fakePlayer{name: "bob"})
	g.End()
	g.End()
	assert.False(t, g.Active())
}
