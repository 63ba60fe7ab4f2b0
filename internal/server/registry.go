package server

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrUsernameTaken is returned when a username already has a live session.
var ErrUsernameTaken = errors.New("username already logged in")

// Registry tracks authenticated sessions by username. A username maps to at
// most one session; the first holder wins and keeps the binding until its
// session is removed.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Add binds a username to its session.
//
// Postcondition: Returns ErrUsernameTaken if the username already has a
// live session; otherwise the binding is installed.
func (r *Registry) Add(username string, sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[username]; ok {
		return ErrUsernameTaken
	}
	r.sessions[username] = sess
	return nil
}

// Remove drops the binding for username, but only if it still points at
// sess. Idempotent; a stale removal after a newer login is a no-op.
func (r *Registry) Remove(username string, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[username]; ok && current == sess {
		delete(r.sessions, username)
	}
}

// Get returns the session bound to username.
func (r *Registry) Get(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[username]
	return sess, ok
}

// OnlineUsers returns the sorted usernames of all authenticated sessions.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.sessions))
	for username := range r.sessions {
		users = append(users, username)
	}
	sort.Strings(users)
	return users
}

// Count returns the number of authenticated sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Broadcast sends v to every authenticated session except the named one.
// The session map is snapshotted first so sends happen outside the lock,
// and each delivery runs independently so one slow or dead connection
// cannot block or suppress the others.
func (r *Registry) Broadcast(v any, except string) {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for username, sess := range r.sessions {
		if username == except {
			continue
		}
		targets = append(targets, sess)
	}
	r.mu.RUnlock()

	for _, sess := range targets {
		go func(sess *Session) {
			if err := sess.Send(v); err != nil {
				r.logger.Debug("broadcast delivery failed",
					zap.String("username", sess.Username()),
					zap.Error(err),
				)
			}
		}(sess)
	}
}

// CloseAll tears down every registered session.
//
// Postcondition: All sessions are closed; the map is emptied.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
