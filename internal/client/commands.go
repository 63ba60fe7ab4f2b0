package client

import (
	"time"

	"github.com/rsoares/xadrez/internal/protocol"
)

// Login sends an authentication request.
func (c *Client) Login(username, password string) error {
	return c.Send(protocol.Login{
		Type:     protocol.TypeLogin,
		Username: username,
		Password: password,
	})
}

// Register sends an account creation request.
func (c *Client) Register(username, password, email string) error {
	return c.Send(protocol.Register{
		Type:     protocol.TypeRegister,
		Username: username,
		Password: password,
		Email:    email,
	})
}

// GetOnlineUsers requests the current roster.
func (c *Client) GetOnlineUsers() error {
	return c.Send(protocol.GetOnlineUsers{Type: protocol.TypeGetOnlineUsers})
}

// InvitePlayer proposes a game to another user.
func (c *Client) InvitePlayer(target string) error {
	return c.Send(protocol.InvitePlayer{
		Type:           protocol.TypeInvitePlayer,
		TargetUsername: target,
	})
}

// AcceptInvite accepts a pending invite.
func (c *Client) AcceptInvite(inviteID string) error {
	return c.Send(protocol.AcceptInvite{
		Type:     protocol.TypeAcceptInvite,
		InviteID: inviteID,
	})
}

// RejectInvite declines a pending invite.
func (c *Client) RejectInvite(inviteID string) error {
	return c.Send(protocol.RejectInvite{
		Type:     protocol.TypeRejectInvite,
		InviteID: inviteID,
	})
}

// MakeMove submits a move in the current game.
func (c *Client) MakeMove(from, to, promotion string) error {
	return c.Send(protocol.MakeMove{
		Type:      protocol.TypeMakeMove,
		From:      from,
		To:        to,
		Promotion: promotion,
	})
}

// OfferDraw proposes a draw to the opponent.
func (c *Client) OfferDraw() error {
	return c.Send(protocol.OfferDraw{Type: protocol.TypeOfferDraw})
}

// RespondDraw answers a pending draw offer.
func (c *Client) RespondDraw(accept bool) error {
	return c.Send(protocol.RespondDraw{
		Type:   protocol.TypeRespondDraw,
		Accept: accept,
	})
}

// Resign forfeits the current game.
func (c *Client) Resign() error {
	return c.Send(protocol.ResignGame{Type: protocol.TypeResignGame})
}

// Ping sends a liveness probe.
func (c *Client) Ping() error {
	return c.Send(protocol.Ping{
		Type:      protocol.TypePing,
		Timestamp: time.Now().UTC(),
		ClientID:  c.ClientID(),
	})
}
