package server

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/game"
	"github.com/rsoares/xadrez/internal/protocol"
)

// StatsRecorder is the slice of the user repository the game handler needs
// to persist win/loss counts.
type StatsRecorder interface {
	UpdateStats(ctx context.Context, username string, won bool) error
}

// GameHandler handles in-game messages: moves, draw offers, resignation.
// It also tears games down when a player disconnects.
type GameHandler struct {
	registry  *Registry
	games     *game.Manager
	validator game.MoveValidator
	stats     StatsRecorder
	logger    *zap.Logger

	// drawMu guards drawOffers, keyed by game id with the offering
	// player's username as value. At most one offer is pending per game.
	drawMu     sync.Mutex
	drawOffers map[string]string
}

// NewGameHandler creates a GameHandler with the given dependencies.
//
// Precondition: All arguments must be non-nil.
func NewGameHandler(registry *Registry, games *game.Manager, validator game.MoveValidator, stats StatsRecorder, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		registry:   registry,
		games:      games,
		validator:  validator,
		stats:      stats,
		logger:     logger,
		drawOffers: make(map[string]string),
	}
}

// Register installs the in-game routes on the router.
func (h *GameHandler) Register(r *Router) {
	r.Register(protocol.TypeMakeMove, h.MakeMove)
	r.Register(protocol.TypeOfferDraw, h.OfferDraw)
	r.Register(protocol.TypeRespondDraw, h.RespondDraw)
	r.Register(protocol.TypeResignGame, h.Resign)
}

// currentGame resolves the caller's active game, replying with an error
// message when there is none.
func (h *GameHandler) currentGame(sess *Session) (*game.Game, bool) {
	if !sess.Authenticated() {
		_ = sess.Send(protocol.NewError("authentication required"))
		return nil, false
	}
	g, ok := h.games.GameFor(sess.Username())
	if !ok {
		_ = sess.Send(protocol.NewError("you are not in a game"))
		return nil, false
	}
	return g, true
}

// MakeMove validates and applies a move in the caller's game.
//
// Postcondition: A legal move is broadcast to both players as move_made;
// an illegal move is reported only to the mover as invalid_move. A move
// that ends the game also broadcasts game_ended and releases both
// players for new games.
func (h *GameHandler) MakeMove(ctx context.Context, sess *Session, env protocol.Envelope) error {
	var msg protocol.MakeMove
	if err := env.Bind(&msg); err != nil {
		return sess.Send(protocol.NewError("malformed move message"))
	}

	g, ok := h.currentGame(sess)
	if !ok {
		return nil
	}

	mv := game.Move{From: msg.From, To: msg.To, Promotion: msg.Promotion}
	result, err := g.ApplyMove(sess, mv, h.validator)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrNotYourTurn):
			return sess.Send(protocol.InvalidMove{
				Type:    protocol.TypeInvalidMove,
				Message: "it is not your turn",
			})
		case errors.Is(err, game.ErrGameOver):
			return sess.Send(protocol.InvalidMove{
				Type:    protocol.TypeInvalidMove,
				Message: "the game is over",
			})
		default:
			return err
		}
	}
	if !result.Legal {
		return sess.Send(protocol.InvalidMove{
			Type:    protocol.TypeInvalidMove,
			Message: result.Reason,
		})
	}

	made := protocol.MoveMade{
		Type:        protocol.TypeMoveMade,
		From:        msg.From,
		To:          msg.To,
		Player:      sess.Username(),
		Promotion:   msg.Promotion,
		GameState:   result.GameState,
		Board:       result.Board,
		CurrentTurn: g.CurrentTurn().Username(),
		IsCheck:     result.IsCheck,
		IsCheckmate: result.IsCheckmate,
		IsDraw:      result.IsDraw,
	}
	if err := g.BroadcastToPlayers(made); err != nil {
		h.logger.Debug("broadcasting move", zap.String("game_id", g.ID), zap.Error(err))
	}

	switch {
	case result.IsCheckmate:
		h.endGame(ctx, g, protocol.EndReasonCheckmate, sess.Username())
	case result.IsDraw:
		h.endGame(ctx, g, protocol.EndReasonDraw, "")
	}
	return nil
}

// OfferDraw records a pending draw offer and notifies the opponent.
// A second offer while one is pending is rejected.
func (h *GameHandler) OfferDraw(_ context.Context, sess *Session, _ protocol.Envelope) error {
	g, ok := h.currentGame(sess)
	if !ok {
		return nil
	}

	h.drawMu.Lock()
	if _, pending := h.drawOffers[g.ID]; pending {
		h.drawMu.Unlock()
		return sess.Send(protocol.NewError("a draw offer is already pending"))
	}
	h.drawOffers[g.ID] = sess.Username()
	h.drawMu.Unlock()

	opponent := g.Opponent(sess)
	if err := opponent.Send(protocol.DrawOffered{
		Type:       protocol.TypeDrawOffered,
		FromPlayer: sess.Username(),
	}); err != nil {
		h.clearDrawOffer(g.ID)
		return err
	}
	return sess.Send(protocol.DrawSent{Type: protocol.TypeDrawSent})
}

// RespondDraw answers the pending offer in the caller's game. Only the
// player who did not make the offer may respond. Accepting ends the game
// as a draw; rejecting clears the offer and play continues.
func (h *GameHandler) RespondDraw(ctx context.Context, sess *Session, env protocol.Envelope) error {
	var msg protocol.RespondDraw
	if err := env.Bind(&msg); err != nil {
		return sess.Send(protocol.NewError("malformed draw response"))
	}

	g, ok := h.currentGame(sess)
	if !ok {
		return nil
	}

	h.drawMu.Lock()
	offerer, pending := h.drawOffers[g.ID]
	if !pending || offerer == sess.Username() {
		h.drawMu.Unlock()
		return sess.Send(protocol.NewError("no draw offer to respond to"))
	}
	delete(h.drawOffers, g.ID)
	h.drawMu.Unlock()

	if msg.Accept {
		if err := g.BroadcastToPlayers(protocol.DrawResponse{
			Type:     protocol.TypeDrawAccepted,
			ByPlayer: sess.Username(),
		}); err != nil {
			h.logger.Debug("broadcasting draw acceptance", zap.Error(err))
		}
		h.endGame(ctx, g, protocol.EndReasonDraw, "")
		return nil
	}

	return g.BroadcastToPlayers(protocol.DrawResponse{
		Type:     protocol.TypeDrawRejected,
		ByPlayer: sess.Username(),
	})
}

// Resign forfeits the caller's game; the opponent wins.
func (h *GameHandler) Resign(ctx context.Context, sess *Session, _ protocol.Envelope) error {
	g, ok := h.currentGame(sess)
	if !ok {
		return nil
	}

	h.endGame(ctx, g, protocol.EndReasonResignation, g.Opponent(sess).Username())
	return nil
}

// EndForDisconnect ends the named player's game, if any, awarding the
// win to the opponent. Called from session teardown.
func (h *GameHandler) EndForDisconnect(ctx context.Context, username string) {
	g, ok := h.games.GameFor(username)
	if !ok {
		return
	}
	winner := g.White().Username()
	if winner == username {
		winner = g.Black().Username()
	}
	h.endGame(ctx, g, protocol.EndReasonDisconnect, winner)
}

// endGame broadcasts game_ended, persists stats, and unregisters the
// game so both players can start a new one.
func (h *GameHandler) endGame(ctx context.Context, g *game.Game, reason, winner string) {
	ended := protocol.GameEnded{
		Type:   protocol.TypeGameEnded,
		GameID: g.ID,
		Reason: reason,
		Winner: winner,
	}
	if err := g.BroadcastToPlayers(ended); err != nil {
		h.logger.Debug("broadcasting game end",
			zap.String("game_id", g.ID),
			zap.Error(err),
		)
	}

	if winner != "" {
		loser := g.White().Username()
		if loser == winner {
			loser = g.Black().Username()
		}
		if err := h.stats.UpdateStats(ctx, winner, true); err != nil {
			h.logger.Error("recording win", zap.String("username", winner), zap.Error(err))
		}
		if err := h.stats.UpdateStats(ctx, loser, false); err != nil {
			h.logger.Error("recording loss", zap.String("username", loser), zap.Error(err))
		}
	}

	h.clearDrawOffer(g.ID)
	h.games.RemoveGame(g.ID)

	h.logger.Info("game ended",
		zap.String("game_id", g.ID),
		zap.String("reason", reason),
		zap.String("winner", winner),
	)
}

func (h *GameHandler) clearDrawOffer(gameID string) {
	h.drawMu.Lock()
	delete(h.drawOffers, gameID)
	h.drawMu.Unlock()
}
