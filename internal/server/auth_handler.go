package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/protocol"
	"github.com/rsoares/xadrez/internal/storage/postgres"
)

// CredentialStore is the slice of the user repository the auth handler needs.
type CredentialStore interface {
	Create(ctx context.Context, username, password, email string) (postgres.User, error)
	Authenticate(ctx context.Context, username, password string) (postgres.User, error)
}

// AuthHandler handles login and register messages.
type AuthHandler struct {
	store    CredentialStore
	registry *Registry
	logger   *zap.Logger
}

// NewAuthHandler creates an AuthHandler with the given dependencies.
//
// Precondition: store, registry, and logger must be non-nil.
func NewAuthHandler(store CredentialStore, registry *Registry, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Register installs the auth routes on the router.
func (h *AuthHandler) Register(r *Router) {
	r.Register(protocol.TypeLogin, h.Login)
	r.Register(protocol.TypeRegister, h.RegisterUser)
}

// Login authenticates the session. A username may hold at most one live
// session; the first holder wins and a second login is rejected.
//
// Postcondition: On success the session is bound in the registry, the
// client receives login_success with the roster, and everyone else
// receives user_online.
func (h *AuthHandler) Login(ctx context.Context, sess *Session, env protocol.Envelope) error {
	var msg protocol.Login
	if err := env.Bind(&msg); err != nil {
		return sess.Send(protocol.NewError("malformed login message"))
	}

	if sess.Authenticated() {
		return sess.Send(protocol.LoginFailed{
			Type:    protocol.TypeLoginFailed,
			Message: "already logged in as " + sess.Username(),
		})
	}
	if msg.Username == "" || msg.Password == "" {
		return sess.Send(protocol.LoginFailed{
			Type:    protocol.TypeLoginFailed,
			Message: "username and password are required",
		})
	}

	user, err := h.store.Authenticate(ctx, msg.Username, msg.Password)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCredentials) {
			return sess.Send(protocol.LoginFailed{
				Type:    protocol.TypeLoginFailed,
				Message: "invalid username or password",
			})
		}
		return fmt.Errorf("authenticating %q: %w", msg.Username, err)
	}

	if err := h.registry.Add(user.Username, sess); err != nil {
		return sess.Send(protocol.LoginFailed{
			Type:    protocol.TypeLoginFailed,
			Message: "user is already logged in",
		})
	}
	sess.SetUsername(user.Username)

	h.logger.Info("user logged in",
		zap.String("username", user.Username),
		zap.String("client_id", sess.ID),
	)

	if err := sess.Send(protocol.LoginSuccess{
		Type:        protocol.TypeLoginSuccess,
		Username:    user.Username,
		OnlineUsers: h.registry.OnlineUsers(),
	}); err != nil {
		return err
	}

	h.registry.Broadcast(protocol.UserPresence{
		Type:     protocol.TypeUserOnline,
		Username: user.Username,
	}, user.Username)
	return nil
}

// RegisterUser creates a new account. Registration does not log the
// session in; the client sends a separate login afterwards.
func (h *AuthHandler) RegisterUser(ctx context.Context, sess *Session, env protocol.Envelope) error {
	var msg protocol.Register
	if err := env.Bind(&msg); err != nil {
		return sess.Send(protocol.NewError("malformed register message"))
	}

	if msg.Username == "" || msg.Password == "" {
		return sess.Send(protocol.RegisterResult{
			Type:    protocol.TypeRegisterFailed,
			Message: "username and password are required",
		})
	}

	user, err := h.store.Create(ctx, msg.Username, msg.Password, msg.Email)
	if err != nil {
		if errors.Is(err, postgres.ErrUserExists) {
			return sess.Send(protocol.RegisterResult{
				Type:    protocol.TypeRegisterFailed,
				Message: "username already exists",
			})
		}
		return fmt.Errorf("creating user %q: %w", msg.Username, err)
	}

	h.logger.Info("user registered",
		zap.String("username", user.Username),
		zap.String("client_id", sess.ID),
	)

	return sess.Send(protocol.RegisterResult{
		Type:    protocol.TypeRegisterOK,
		Message: "account created",
	})
}
