// Package game owns invite and game-session bookkeeping for the chess server.
package game

import (
	"time"

	"github.com/google/uuid"
)

// Invite is a one-shot, time-limited proposal from one authenticated user to
// another to start a game. Invites are never mutated after creation; accept
// and reject paths remove them.
type Invite struct {
	// ID is the unique invite identifier.
	ID string
	// From is the inviting player's username.
	From string
	// To is the invited player's username.
	To string
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time
	// TTL is the acceptance window.
	TTL time.Duration
}

// NewInvite creates an invite from one player to another with the given window.
func NewInvite(from, to string, ttl time.Duration, now time.Time) *Invite {
	return &Invite{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		CreatedAt: now,
		TTL:       ttl,
	}
}

// ExpiresAt returns the instant after which the invite cannot be accepted.
func (i *Invite) ExpiresAt() time.Time {
	return i.CreatedAt.Add(i.TTL)
}

// Expired reports whether the invite is past its acceptance window.
func (i *Invite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt())
}
