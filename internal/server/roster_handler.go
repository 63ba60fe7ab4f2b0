package server

import (
	"context"

	"github.com/rsoares/xadrez/internal/protocol"
)

// RosterHandler handles roster queries and liveness probes.
type RosterHandler struct {
	registry *Registry
}

// NewRosterHandler creates a RosterHandler.
//
// Precondition: registry must be non-nil.
func NewRosterHandler(registry *Registry) *RosterHandler {
	return &RosterHandler{registry: registry}
}

// Register installs the roster routes on the router.
func (h *RosterHandler) Register(r *Router) {
	r.Register(protocol.TypeGetOnlineUsers, h.OnlineUsers)
	r.Register(protocol.TypePing, h.Ping)
	r.Register(protocol.TypePong, h.Pong)
}

// OnlineUsers replies with the current authenticated roster.
//
// Precondition: The session must be authenticated.
func (h *RosterHandler) OnlineUsers(_ context.Context, sess *Session, _ protocol.Envelope) error {
	if !sess.Authenticated() {
		return sess.Send(protocol.NewError("authentication required"))
	}
	return sess.Send(protocol.OnlineUsers{
		Type:  protocol.TypeOnlineUsers,
		Users: h.registry.OnlineUsers(),
	})
}

// Ping answers a client liveness probe with exactly one pong. The read
// loop already recorded the activity; no other side effect happens here.
func (h *RosterHandler) Ping(_ context.Context, sess *Session, _ protocol.Envelope) error {
	return sess.Send(protocol.NewPong(sess.ID))
}

// Pong absorbs the client's answer to a server-initiated ping. The
// activity timestamp was already refreshed by the read loop.
func (h *RosterHandler) Pong(_ context.Context, _ *Session, _ protocol.Envelope) error {
	return nil
}
