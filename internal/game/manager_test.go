package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndTakeInvite(t *testing.T) {
	m := NewManager(5 * time.Minute)

	inv := m.AddInvite("alice", "bob")
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, "alice", inv.From)
	assert.Equal(t, "bob", inv.To)
	assert.Equal(t, 1, m.InviteCount())

	got, ok := m.TakeInviteFor(inv.ID, "bob")
	require.True(t, ok)
	assert.Equal(t, inv.ID, got.ID)
	assert.Equal(t, 0, m.InviteCount())
}

func TestTakeInviteIsOneShot(t *testing.T) {
	m := NewManager(5 * time.Minute)
	inv := m.AddInvite("alice", "bob")

	_, ok := m.TakeInviteFor(inv.ID, "bob")
	require.True(t, ok)

	// A replayed accept must not get the invite a second time.
	_, ok = m.TakeInviteFor(inv.ID, "bob")
	assert.False(t, ok)
}

func TestTakeInviteWrongRecipientDoesNotConsume(t *testing.T) {
	m := NewManager(5 * time.Minute)
	inv := m.AddInvite("alice", "bob")

	// Neither a stranger nor the inviter can take bob's invite, and the
	// attempt leaves it live for him.
	_, ok := m.TakeInviteFor(inv.ID, "carol")
	assert.False(t, ok)
	_, ok = m.TakeInviteFor(inv.ID, "alice")
	assert.False(t, ok)
	assert.Equal(t, 1, m.InviteCount())

	got, ok := m.TakeInviteFor(inv.ID, "bob")
	require.True(t, ok)
	assert.Equal(t, inv.ID, got.ID)
}

func TestTakeInviteConcurrentSingleWinner(t *testing.T) {
	m := NewManager(5 * time.Minute)
	inv := m.AddInvite("alice", "bob")

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.TakeInviteFor(inv.ID, "bob"); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, 1, won)
}

func TestTakeInviteExpired(t *testing.T) {
	m := NewManager(5 * time.Minute)
	inv := m.AddInvite("alice", "bob")

	// Shift the clock past the acceptance window.
	m.now = func() time.Time { return inv.CreatedAt.Add(5*time.Minute + time.Second) }

	_, ok := m.TakeInviteFor(inv.ID, "bob")
	assert.False(t, ok)
	// The expired invite is also gone.
	assert.Equal(t, 0, m.InviteCount())
}

func TestInviteExpiresAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := NewInvite("alice", "bob", 5*time.Minute, now)

	assert.Equal(t, now.Add(5*time.Minute), inv.ExpiresAt())
	assert.False(t, inv.Expired(now.Add(5*time.Minute)))
	assert.True(t, inv.Expired(now.Add(5*time.Minute+time.Nanosecond)))
}

func TestPruneExpired(t *testing.T) {
	m := NewManager(time.Minute)
	fresh := m.AddInvite("alice", "bob")
	stale := m.AddInvite("carol", "dave")

	base := time.Now().UTC()
	stale.CreatedAt = base.Add(-2 * time.Minute)

	dropped := m.PruneExpired()
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, m.InviteCount())

	_, ok := m.TakeInviteFor(fresh.ID, "bob")
	assert.True(t, ok)
}

func TestCreateGameRegistersPlayers(t *testing.T) {
	m := NewManager(5 * time.Minute)
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}

	g, err := m.CreateGame(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1, m.GameCount())

	got, ok := m.GetGame(g.ID)
	require.True(t, ok)
	assert.Same(t, g, got)

	byPlayer, ok := m.GameFor("alice")
	require.True(t, ok)
	assert.Same(t, g, byPlayer)
}

func TestCreateGamePlayerBusy(t *testing.T) {
	m := NewManager(5 * time.Minute)
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}
	c := &fakePlayer{name: "carol"}

	_, err := m.CreateGame(a, b)
	require.NoError(t, err)

	_, err = m.CreateGame(a, c)
	assert.ErrorIs(t, err, ErrPlayerBusy)
	_, err = m.CreateGame(c, b)
	assert.ErrorIs(t, err, ErrPlayerBusy)
	assert.Equal(t, 1, m.GameCount())
}

func TestRemoveGameFreesPlayers(t *testing.T) {
	m := NewManager(5 * time.Minute)
	a := &fakePlayer{name: "alice"}
	b := &fakePlayer{name: "bob"}

	g, err := m.CreateGame(a, b)
	require.NoError(t, err)

	m.RemoveGame(g.ID)
	assert.False(t, g.Active())
	assert.Equal(t, 0, m.GameCount())

	_, ok := m.GameFor("alice")
	assert.False(t, ok)

	// Both players can be paired again.
	_, err = m.CreateGame(a, b)
	assert.NoError(t, err)
}

func TestRemoveGameIdempotent(t *testing.T) {
	m := NewManager(5 * time.Minute)
	g, err := m.CreateGame(&fakePlayer{name: "alice"}, &fakePlayer{name: "bob"})
	require.NoError(t, err)

	m.RemoveGame(g.ID)
	m.RemoveGame(g.ID)
	assert.Equal(t, 0, m.GameCount())
}
