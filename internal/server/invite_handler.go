package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/game"
	"github.com/rsoares/xadrez/internal/protocol"
)

// InviteHandler handles the invite lifecycle: send, accept, reject.
type InviteHandler struct {
	registry *Registry
	games    *game.Manager
	logger   *zap.Logger
}

// NewInviteHandler creates an InviteHandler with the given dependencies.
//
// Precondition: registry, games, and logger must be non-nil.
func NewInviteHandler(registry *Registry, games *game.Manager, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{
		registry: registry,
		games:    games,
		logger:   logger,
	}
}

// Register installs the invite routes on the router.
func (h *InviteHandler) Register(r *Router) {
	r.Register(protocol.TypeInvitePlayer, h.Invite)
	r.Register(protocol.TypeAcceptInvite, h.Accept)
	r.Register(protocol.TypeRejectInvite, h.Reject)
}

// Invite creates a pending invite and notifies the target.
//
// Precondition: The session must be authenticated and the target must be
// a different online user.
// Postcondition: The target receives invite_received and the inviter
// receives invite_sent, or the inviter receives invite_failed.
func (h *InviteHandler) Invite(_ context.Context, sess *Session, env protocol.Envelope) error {
	var msg protocol.InvitePlayer
	if err := env.Bind(&msg); err != nil {
		return sess.Send(protocol.NewError("malformed invite message"))
	}

	if !sess.Authenticated() {
		return sess.Send(protocol.NewError("authentication required"))
	}
	if msg.TargetUsername == sess.Username() {
		return sess.Send(protocol.InviteFailed{
			Type:    protocol.TypeInviteFailed,
			Message: "cannot invite yourself",
		})
	}

	target, ok := h.registry.Get(msg.TargetUsername)
	if !ok {
		return sess.Send(protocol.InviteFailed{
			Type:    protocol.TypeInviteFailed,
			Message: "player " + msg.TargetUsername + " is not online",
		})
	}
	if _, busy := h.games.GameFor(msg.TargetUsername); busy {
		return sess.Send(protocol.InviteFailed{
			Type:    protocol.TypeInviteFailed,
			Message: "player " + msg.TargetUsername + " is already in a game",
		})
	}

	inv := h.games.AddInvite(sess.Username(), msg.TargetUsername)

	h.logger.Info("invite sent",
		zap.String("invite_id", inv.ID),
		zap.String("from", inv.From),
		zap.String("to", inv.To),
	)

	if err := target.Send(protocol.InviteReceived{
		Type:       protocol.TypeInviteReceived,
		InviteID:   inv.ID,
		FromPlayer: inv.From,
		Timestamp:  inv.CreatedAt,
	}); err != nil {
		h.games.RemoveInvite(inv.ID)
		return sess.Send(protocol.InviteFailed{
			Type:    protocol.TypeInviteFailed,
			Message: "could not deliver invite to " + msg.TargetUsername,
		})
	}

	return sess.Send(protocol.InviteSent{
		Type:         protocol.TypeInviteSent,
		InviteID:     inv.ID,
		TargetPlayer: inv.To,
	})
}

// Accept consumes a pending invite and starts a game. Invites are
// one-shot; the second of two racing accepts gets invite_failed. Only
// the addressee can consume an invite, so a replayed id from anyone
// else fails without voiding it.
//
// Postcondition: Both players receive game_started with complementary
// colors, or the accepter receives invite_failed.
func (h *InviteHandler) Accept(_ context.Context, sess *Session, env protocol.Envelope) error {
	var msg protocol.AcceptInvite
	if err := env.Bind(&msg); err != nil {
		return sess.Send(protocol.NewError("malformed accept message"))
	}

	if !sess.Authenticated() {
		return sess.Send(protocol.NewError("authentication required"))
	}

	inv, ok := h.games.TakeInviteFor(msg.InviteID, sess.Username())
	if !ok {
		return sess.Send(protocol.InviteFailed{
			Type:    protocol.TypeInviteFailed,
			Message: "invite not found or expired",
		})
	}

	inviter, ok := h.registry.Get(inv.From)
	if !ok {
		return sess.Send(protocol.InviteFailed{
			Type:    protocol.TypeInviteFailed,
			Message: "player " + inv.From + " is no longer online",
		})
	}

	g, err := h.games.CreateGame(inviter, sess)
	if err != nil {
		if errors.Is(err, game.ErrPlayerBusy) {
			return sess.Send(protocol.InviteFailed{
				Type:    protocol.TypeInviteFailed,
				Message: "one of the players is already in a game",
			})
		}
		return err
	}

	h.logger.Info("game started",
		zap.String("game_id", g.ID),
		zap.String("white", g.White().Username()),
		zap.String("black", g.Black().Username()),
	)

	started := protocol.GameStarted{
		Type:        protocol.TypeGameStarted,
		GameID:      g.ID,
		WhitePlayer: g.White().Username(),
		BlackPlayer: g.Black().Username(),
		Board:       g.Board(),
		CurrentTurn: g.CurrentTurn().Username(),
	}
	return g.BroadcastToPlayers(started)
}

// Reject consumes a pending invite and notifies the inviter.
func (h *InviteHandler) Reject(_ context.Context, sess *Session, env protocol.Envelope) error {
	var msg protocol.RejectInvite
	if err := env.Bind(&msg); err != nil {
		return sess.Send(protocol.NewError("malformed reject message"))
	}

	if !sess.Authenticated() {
		return sess.Send(protocol.NewError("authentication required"))
	}

	inv, ok := h.games.TakeInviteFor(msg.InviteID, sess.Username())
	if !ok {
		return sess.Send(protocol.InviteFailed{
			Type:    protocol.TypeInviteFailed,
			Message: "invite not found or expired",
		})
	}

	if inviter, ok := h.registry.Get(inv.From); ok {
		if err := inviter.Send(protocol.InviteRejected{
			Type:     protocol.TypeInviteRejected,
			ByPlayer: sess.Username(),
		}); err != nil {
			h.logger.Debug("notifying inviter of rejection",
				zap.String("invite_id", inv.ID),
				zap.Error(err),
			)
		}
	}

	return sess.Send(protocol.InviteRejectOK{Type: protocol.TypeInviteRejectOK})
}

// expiryTick is how often the invite table is swept for expired entries.
const expiryTick = time.Minute

// RunExpiry sweeps expired invites until the context is cancelled.
func (h *InviteHandler) RunExpiry(ctx context.Context) {
	ticker := time.NewTicker(expiryTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := h.games.PruneExpired(); dropped > 0 {
				h.logger.Debug("expired invites pruned", zap.Int("count", dropped))
			}
		}
	}
}
