package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jdavenport/lockstep/pkg/log"
)

const (
	// DefaultSendTimeout bounds how long a single write may block
	DefaultSendTimeout = 5 * time.Second
)

// Transport is the write side of one client connection.
type Transport interface {
	Write(ctx context.Context, data []byte) error
	Close(reason string) error
}

// Memberships authorizes connection attachments and hears about players
// whose connections are gone for good. Implemented by the room manager.
type Memberships interface {
	Authorize(roomCode string, playerID int64) error
	PlayerDetached(playerID int64)
}

// Connection is one attached player connection.
type Connection struct {
	ID        string
	PlayerID  int64
	RoomCode  string
	transport Transport
}

// Registry tracks at most one live connection per player. Attaching a
// new connection for a player supersedes the old one; the old transport
// is closed without counting as a departure.
type Registry struct {
	sendTimeout time.Duration

	mu          sync.RWMutex
	byPlayer    map[int64]*Connection
	byRoom      map[string]map[int64]*Connection
	memberships Memberships
}

type NewRegistryOptions struct {
	SendTimeout time.Duration
}

func NewRegistry(opts NewRegistryOptions) *Registry {
	sendTimeout := opts.SendTimeout
	if sendTimeout == 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Registry{
		sendTimeout: sendTimeout,
		byPlayer:    make(map[int64]*Connection),
		byRoom:      make(map[string]map[int64]*Connection),
	}
}

// SetMemberships wires the room manager in after construction. The
// registry and the manager reference each other, so one of the two
// links has to be set late.
func (r *Registry) SetMemberships(memberships Memberships) {
	r.memberships = memberships
}

// Attach registers a connection for a player in a room. Any previous
// connection for the same player is closed and replaced.
func (r *Registry) Attach(roomCode string, playerID int64, transport Transport) (*Connection, error) {
	if err := r.memberships.Authorize(roomCode, playerID); err != nil {
		return nil, fmt.Errorf("failed to authorize player %d for room %s: %v", playerID, roomCode, err)
	}

	conn := &Connection{
		ID:        uuid.New().String(),
		PlayerID:  playerID,
		RoomCode:  roomCode,
		transport: transport,
	}

	r.mu.Lock()
	previous := r.byPlayer[playerID]
	if previous != nil {
		r.removeLocked(previous)
	}
	r.byPlayer[playerID] = conn
	if r.byRoom[roomCode] == nil {
		r.byRoom[roomCode] = make(map[int64]*Connection)
	}
	r.byRoom[roomCode][playerID] = conn
	r.mu.Unlock()

	if previous != nil {
		log.Debug("Superseding connection %s for player %d", previous.ID, playerID)
		if err := previous.transport.Close("superseded by a newer connection"); err != nil {
			log.Debug("Failed to close superseded connection for player %d: %v", playerID, err)
		}
	}

	log.Debug("Player %d attached to room %s", playerID, roomCode)
	return conn, nil
}

// Detach removes a connection. A detach for a connection that has
// already been superseded is a no-op, so a slow reader tearing down an
// old connection never kicks the player's current one. Detaching the
// player's current connection reports the player as gone.
func (r *Registry) Detach(conn *Connection) {
	r.mu.Lock()
	current := r.byPlayer[conn.PlayerID]
	if current == nil || current.ID != conn.ID {
		r.mu.Unlock()
		return
	}
	r.removeLocked(conn)
	r.mu.Unlock()

	if err := conn.transport.Close("detached"); err != nil {
		log.Debug("Failed to close connection for player %d: %v", conn.PlayerID, err)
	}

	log.Debug("Player %d detached from room %s", conn.PlayerID, conn.RoomCode)
	r.memberships.PlayerDetached(conn.PlayerID)
}

// removeLocked drops a connection from both indexes. Callers hold the lock.
func (r *Registry) removeLocked(conn *Connection) {
	delete(r.byPlayer, conn.PlayerID)
	if roomConns, ok := r.byRoom[conn.RoomCode]; ok {
		if roomConns[conn.PlayerID] == conn {
			delete(roomConns, conn.PlayerID)
		}
		if len(roomConns) == 0 {
			delete(r.byRoom, conn.RoomCode)
		}
	}
}

// Broadcast writes data to every connection in a room. Delivery is best
// effort: a connection that fails to accept the write is detached and
// the broadcast carries on to the rest.
func (r *Registry) Broadcast(roomCode string, data []byte) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.byRoom[roomCode]))
	for _, conn := range r.byRoom[roomCode] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := r.write(conn, data); err != nil {
			log.Warn("Failed to write to player %d, detaching: %v", conn.PlayerID, err)
			go r.Detach(conn)
		}
	}
}

// Send writes data to a single player's connection.
func (r *Registry) Send(playerID int64, data []byte) error {
	r.mu.RLock()
	conn := r.byPlayer[playerID]
	r.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("player %d has no connection", playerID)
	}
	if err := r.write(conn, data); err != nil {
		go r.Detach(conn)
		return fmt.Errorf("failed to write to player %d: %v", playerID, err)
	}
	return nil
}

func (r *Registry) write(conn *Connection, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
	defer cancel()
	return conn.transport.Write(ctx, data)
}

// NumConnections returns the number of live connections.
func (r *Registry) NumConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPlayer)
}
