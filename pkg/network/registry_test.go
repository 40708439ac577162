package network

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTransport struct {
	mu         sync.Mutex
	writes     [][]byte
	closed     bool
	failWrites bool
}

func (t *fakeTransport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWrites {
		return fmt.Errorf("write failed")
	}
	t.writes = append(t.writes, data)
	return nil
}

func (t *fakeTransport) Close(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) numWrites() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.writes)
}

type fakeMemberships struct {
	mu       sync.Mutex
	authErr  error
	detached []int64
}

func (m *fakeMemberships) Authorize(roomCode string, playerID int64) error {
	return m.authErr
}

func (m *fakeMemberships) PlayerDetached(playerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detached = append(m.detached, playerID)
}

func (m *fakeMemberships) detachedPlayers() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64{}, m.detached...)
}

func newTestRegistry() (*Registry, *fakeMemberships) {
	registry := NewRegistry(NewRegistryOptions{SendTimeout: time.Second})
	memberships := &fakeMemberships{}
	registry.SetMemberships(memberships)
	return registry, memberships
}

func TestRegistry_Attach(t *testing.T) {
	t.Run("unauthorized players cannot attach", func(t *testing.T) {
		registry, memberships := newTestRegistry()
		memberships.authErr = fmt.Errorf("not a member")

		_, err := registry.Attach("TEST42", 1, &fakeTransport{})
		assert.Error(t, err)
		assert.Equal(t, 0, registry.NumConnections())
	})

	t.Run("a new connection supersedes the old one", func(t *testing.T) {
		registry, memberships := newTestRegistry()
		oldTransport := &fakeTransport{}
		newTransport := &fakeTransport{}

		oldConn, err := registry.Attach("TEST42", 1, oldTransport)
		assert.NoError(t, err)
		newConn, err := registry.Attach("TEST42", 1, newTransport)
		assert.NoError(t, err)

		assert.NotEqual(t, oldConn.ID, newConn.ID)
		assert.True(t, oldTransport.isClosed())
		assert.False(t, newTransport.isClosed())
		assert.Equal(t, 1, registry.NumConnections())
		// superseding is not a departure
		assert.Empty(t, memberships.detachedPlayers())
	})
}

func TestRegistry_Detach(t *testing.T) {
	registry, memberships := newTestRegistry()
	oldTransport := &fakeTransport{}
	newTransport := &fakeTransport{}

	oldConn, err := registry.Attach("TEST42", 1, oldTransport)
	assert.NoError(t, err)
	newConn, err := registry.Attach("TEST42", 1, newTransport)
	assert.NoError(t, err)

	// a stale detach from the superseded connection is a no-op
	registry.Detach(oldConn)
	assert.Equal(t, 1, registry.NumConnections())
	assert.Empty(t, memberships.detachedPlayers())

	registry.Detach(newConn)
	assert.Equal(t, 0, registry.NumConnections())
	assert.Equal(t, []int64{1}, memberships.detachedPlayers())
	assert.True(t, newTransport.isClosed())
}

func TestRegistry_Broadcast(t *testing.T) {
	registry, memberships := newTestRegistry()
	good := &fakeTransport{}
	bad := &fakeTransport{failWrites: true}

	_, err := registry.Attach("TEST42", 1, good)
	assert.NoError(t, err)
	_, err = registry.Attach("TEST42", 2, bad)
	assert.NoError(t, err)
	other := &fakeTransport{}
	_, err = registry.Attach("OTHER1", 3, other)
	assert.NoError(t, err)

	registry.Broadcast("TEST42", []byte("hello"))

	assert.Equal(t, 1, good.numWrites())
	assert.Equal(t, 0, other.numWrites())

	// the failing connection is detached, the rest keep working
	assert.Eventually(t, func() bool {
		return registry.NumConnections() == 2
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		detached := memberships.detachedPlayers()
		return len(detached) == 1 && detached[0] == 2
	}, time.Second, 10*time.Millisecond)
}

func TestRegistry_Send(t *testing.T) {
	registry, _ := newTestRegistry()
	transport := &fakeTransport{}

	_, err := registry.Attach("TEST42", 1, transport)
	assert.NoError(t, err)

	assert.NoError(t, registry.Send(1, []byte("hello")))
	assert.Equal(t, 1, transport.numWrites())

	assert.Error(t, registry.Send(9, []byte("hello")))
}
