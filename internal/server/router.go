package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/protocol"
)

// HandlerFunc processes one decoded message for a session. Returning an
// error logs the failure; it does not close the connection.
type HandlerFunc func(ctx context.Context, sess *Session, env protocol.Envelope) error

// Router dispatches decoded messages to registered handlers by type tag.
// Unknown tags are answered with a generic error and the connection
// stays open.
type Router struct {
	logger   *zap.Logger
	handlers map[string]HandlerFunc
}

// NewRouter creates an empty message router.
//
// Precondition: logger must be non-nil.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register installs a handler for the given message type.
//
// Precondition: msgType must be non-empty; fn must be non-nil. Registering
// the same type twice replaces the earlier handler.
func (r *Router) Register(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Dispatch routes one decoded message to its handler.
//
// Postcondition: The message is handled, or the client receives a generic
// error for an unknown type. Handler errors are logged, never fatal to
// the connection.
func (r *Router) Dispatch(ctx context.Context, sess *Session, env protocol.Envelope) {
	fn, ok := r.handlers[env.Type]
	if !ok {
		r.logger.Debug("unknown message type",
			zap.String("type", env.Type),
			zap.String("client_id", sess.ID),
		)
		if err := sess.Send(protocol.NewError("unknown message type: " + env.Type)); err != nil {
			r.logger.Debug("sending error reply", zap.Error(err))
		}
		return
	}

	if err := fn(ctx, sess, env); err != nil {
		r.logger.Error("handler failed",
			zap.String("type", env.Type),
			zap.String("client_id", sess.ID),
			zap.String("username", sess.Username()),
			zap.Error(err),
		)
	}
}
