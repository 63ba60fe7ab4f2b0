package game

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrPlayerBusy is returned when creating a game for a player already in one.
var ErrPlayerBusy = errors.New("player already in a game")

// Manager owns the invite and game maps under a single lock.
// All methods are safe for concurrent use.
type Manager struct {
	inviteTTL time.Duration
	now       func() time.Time

	mu       sync.Mutex
	invites  map[string]*Invite
	games    map[string]*Game
	byPlayer map[string]string // username → game ID
}

// NewManager creates an empty Manager whose invites expire after inviteTTL.
func NewManager(inviteTTL time.Duration) *Manager {
	return &Manager{
		inviteTTL: inviteTTL,
		now:       func() time.Time { return time.Now().UTC() },
		invites:   make(map[string]*Invite),
		games:     make(map[string]*Game),
		byPlayer:  make(map[string]string),
	}
}

// AddInvite records a new invite from one player to another and returns it.
func (m *Manager) AddInvite(from, to string) *Invite {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv := NewInvite(from, to, m.inviteTTL, m.now())
	m.invites[inv.ID] = inv
	return inv
}

// TakeInviteFor removes and returns the invite with the given id, provided
// it is addressed to recipient. Invites are one-shot: the first matching
// taker wins, so a replayed accept cannot create a second game. A caller who
// is not the addressee does not consume the invite. Expired invites are
// removed but never returned.
//
// Postcondition: Returns (invite, true) exactly once per live invite, and
// only to its addressee.
func (m *Manager) TakeInviteFor(id, recipient string) (*Invite, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invites[id]
	if !ok {
		return nil, false
	}
	if inv.Expired(m.now()) {
		delete(m.invites, id)
		return nil, false
	}
	if inv.To != recipient {
		return nil, false
	}
	delete(m.invites, id)
	return inv, true
}

// RemoveInvite discards an invite without taking it. Idempotent.
func (m *Manager) RemoveInvite(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.invites, id)
}

// PruneExpired removes all expired invites and returns how many were dropped.
func (m *Manager) PruneExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for id, inv := range m.invites {
		if inv.Expired(now) {
			delete(m.invites, id)
			dropped++
		}
	}
	return dropped
}

// CreateGame pairs two players into a new game with random colors.
//
// Precondition: Both players must be authenticated and not already in a game.
// Postcondition: Returns the registered game, or ErrPlayerBusy.
func (m *Manager) CreateGame(a, b Player) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPlayer[a.Username()]; ok {
		return nil, fmt.Errorf("%w: %s in game %s", ErrPlayerBusy, a.Username(), id)
	}
	if id, ok := m.byPlayer[b.Username()]; ok {
		return nil, fmt.Errorf("%w: %s in game %s", ErrPlayerBusy, b.Username(), id)
	}

	g := NewGame(a, b)
	m.games[g.ID] = g
	m.byPlayer[a.Username()] = g.ID
	m.byPlayer[b.Username()] = g.ID
	return g, nil
}

// GetGame returns the game with the given id.
func (m *Manager) GetGame(id string) (*Game, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	return g, ok
}

// GameFor returns the active game the named player is in, if any.
func (m *Manager) GameFor(username string) (*Game, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPlayer[username]
	if !ok {
		return nil, false
	}
	g, ok := m.games[id]
	return g, ok
}

// RemoveGame deactivates and unregisters a game. Idempotent.
func (m *Manager) RemoveGame(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[id]
	if !ok {
		return
	}
	g.End()
	delete(m.byPlayer, g.White().Username())
	delete(m.byPlayer, g.Black().Username())
	delete(m.games, id)
}

// InviteCount returns the number of pending invites.
func (m *Manager) InviteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invites)
}

// GameCount returns the number of registered games.
func (m *Manager) GameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games)
}
