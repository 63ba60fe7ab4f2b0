package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state for one connected client. It is created
// at accept time, gains a username on successful authentication, and is torn
// down exactly once regardless of how the connection ends.
type Session struct {
	// ID is the server-assigned client identifier, sent in the welcome
	// message and echoed in heartbeats.
	ID string

	conn *Conn

	mu       sync.Mutex
	username string

	// lastActivity is the unix-nano timestamp of the most recent inbound
	// message. The heartbeat monitor reads it to detect stale sessions.
	lastActivity atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wraps a connection in a fresh unauthenticated session.
//
// Postcondition: The session has a unique id and its activity clock
// starts at now.
func NewSession(conn *Conn) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		conn: conn,
		done: make(chan struct{}),
	}
	s.Touch()
	return s
}

// Username returns the authenticated username, or empty string before login.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// SetUsername marks the session authenticated as the given user.
//
// Precondition: username must be non-empty.
func (s *Session) SetUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

// Authenticated reports whether the session has logged in.
func (s *Session) Authenticated() bool {
	return s.Username() != ""
}

// Send delivers one wire message to the client.
func (s *Session) Send(v any) error {
	return s.conn.WriteMessage(v)
}

// Touch records inbound activity now.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent inbound message.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Done returns a channel closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down. Safe to call from any goroutine, any
// number of times; only the first call has effect.
//
// Postcondition: The connection is closed and Done is closed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// RemoteAddr returns the client's network address.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
