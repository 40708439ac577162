package rooms

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/repositories"
	"github.com/jdavenport/lockstep/pkg/repositories/models"
	"github.com/jdavenport/lockstep/pkg/workers"
)

const (
	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6
	// DefaultMaxPlayers is the room capacity when none is requested
	DefaultMaxPlayers = 8
)

// roomCodeChars excludes characters that are easy to misread.
const roomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomInfo is returned by the API for the room list.
type RoomInfo struct {
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Status     models.RoomStatus `json:"status"`
	Players    int               `json:"players"`
	MaxPlayers int               `json:"maxPlayers"`
}

// Manager owns every room on the server and the player-to-room index.
// A player is in at most one room at a time; joining a new room leaves
// the previous one first.
type Manager struct {
	publisher    Publisher
	statsChan    chan<- workers.SaveMatchStatsRequest
	repository   repositories.Repository
	tickInterval time.Duration
	gracePeriod  time.Duration

	mu          sync.RWMutex
	rooms       map[string]*Room
	playerRooms map[int64]string
}

type NewManagerOptions struct {
	Publisher    Publisher
	StatsChan    chan<- workers.SaveMatchStatsRequest
	Repository   repositories.Repository
	TickInterval time.Duration
	// GracePeriod is how long finished and empty rooms linger before
	// the sweep removes them.
	GracePeriod time.Duration
}

func NewManager(opts NewManagerOptions) *Manager {
	return &Manager{
		publisher:    opts.Publisher,
		statsChan:    opts.StatsChan,
		repository:   opts.Repository,
		tickInterval: opts.TickInterval,
		gracePeriod:  opts.GracePeriod,
		rooms:        make(map[string]*Room),
		playerRooms:  make(map[int64]string),
	}
}

// CreateRoom creates a room with a fresh code and joins the creator,
// who becomes its owner.
func (m *Manager) CreateRoom(ctx context.Context, playerID int64, username string, name string, maxPlayers int) (*Room, error) {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}

	m.leaveCurrentRoom(ctx, playerID)

	m.mu.Lock()
	var code string
	for {
		code = generateRoomCode(RoomCodeLength)
		if _, exists := m.rooms[code]; !exists {
			break
		}
	}
	room := NewRoom(NewRoomOptions{
		Code:         code,
		Name:         name,
		MaxPlayers:   maxPlayers,
		Publisher:    m.publisher,
		StatsChan:    m.statsChan,
		TickInterval: m.tickInterval,
	})
	m.rooms[code] = room
	m.playerRooms[playerID] = code
	m.mu.Unlock()

	if err := room.Join(playerID, username); err != nil {
		return nil, err
	}

	if m.repository != nil {
		if err := m.repository.UpsertRoom(ctx, &models.Room{
			Code:       code,
			Name:       name,
			Status:     models.RoomStatusWaiting,
			MaxPlayers: maxPlayers,
		}); err != nil {
			log.Error("Failed to save room %s: %v", code, err)
		}
	}

	log.Info("Room %s created by player %d", code, playerID)
	return room, nil
}

// GetRoom returns the room with the given code.
func (m *Manager) GetRoom(code string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[code]
	if !ok {
		return nil, &ErrRoomNotFound{}
	}
	return room, nil
}

// RoomFor returns the room the player is currently in.
func (m *Manager) RoomFor(playerID int64) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.playerRooms[playerID]
	if !ok {
		return nil, &ErrRoomNotFound{}
	}
	room, ok := m.rooms[code]
	if !ok {
		return nil, &ErrRoomNotFound{}
	}
	return room, nil
}

// JoinRoom adds a player to the room with the given code, leaving any
// room they were in before.
func (m *Manager) JoinRoom(ctx context.Context, code string, playerID int64, username string) (*Room, error) {
	room, err := m.GetRoom(code)
	if err != nil {
		return nil, err
	}

	m.leaveCurrentRoom(ctx, playerID)

	if err := room.Join(playerID, username); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.playerRooms[playerID] = code
	m.mu.Unlock()

	return room, nil
}

// LeaveRoom removes a player from their current room. Empty waiting
// rooms are removed immediately.
func (m *Manager) LeaveRoom(ctx context.Context, playerID int64) error {
	room, err := m.RoomFor(playerID)
	if err != nil {
		return err
	}

	if err := room.Leave(playerID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.playerRooms, playerID)
	m.mu.Unlock()

	if room.NumMembers() == 0 && room.Status() == models.RoomStatusWaiting {
		m.removeRoom(ctx, room.Code)
	}

	return nil
}

// SetReady sets the player's readiness in their current room.
func (m *Manager) SetReady(playerID int64, ready bool) error {
	room, err := m.RoomFor(playerID)
	if err != nil {
		return err
	}
	return room.SetReady(playerID, ready)
}

// StartMatch starts the match in the player's current room and records
// the room as active.
func (m *Manager) StartMatch(ctx context.Context, playerID int64) error {
	room, err := m.RoomFor(playerID)
	if err != nil {
		return err
	}

	if err := room.Start(playerID); err != nil {
		return err
	}

	if m.repository != nil {
		if err := m.repository.UpdateRoomStatus(ctx, room.Code, models.RoomStatusActive); err != nil {
			log.Error("Failed to update room %s status: %v", room.Code, err)
		}
	}

	return nil
}

// ListRooms returns every room with its occupancy.
func (m *Manager) ListRooms() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for code, room := range m.rooms {
		out = append(out, RoomInfo{
			Code:       code,
			Name:       room.Name,
			Status:     room.Status(),
			Players:    room.NumMembers(),
			MaxPlayers: room.MaxPlayers,
		})
	}
	return out
}

// Authorize reports whether the player may attach a connection to the
// room with the given code.
func (m *Manager) Authorize(roomCode string, playerID int64) error {
	room, err := m.GetRoom(roomCode)
	if err != nil {
		return err
	}
	if !room.IsMember(playerID) {
		return &ErrNotAMember{}
	}
	return nil
}

// PlayerDetached handles a connection going away for good. The player
// leaves their room; in an active match this eliminates their tank.
func (m *Manager) PlayerDetached(playerID int64) {
	if err := m.LeaveRoom(context.Background(), playerID); err != nil {
		if !IsRoomNotFound(err) && !IsNotAMember(err) {
			log.Error("Failed to remove detached player %d: %v", playerID, err)
		}
	}
}

// Sweep periodically removes rooms that finished longer than the grace
// period ago, and empty rooms left behind by aborted matches.
func (m *Manager) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	m.mu.RLock()
	codes := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		codes = append(codes, code)
	}
	m.mu.RUnlock()

	for _, code := range codes {
		room, err := m.GetRoom(code)
		if err != nil {
			continue
		}
		switch room.Status() {
		case models.RoomStatusFinished:
			if finished := room.FinishedSince(); !finished.IsZero() && time.Since(finished) > m.gracePeriod {
				m.removeRoom(ctx, code)
			}
		case models.RoomStatusWaiting:
			if room.NumMembers() == 0 {
				m.removeRoom(ctx, code)
			}
		}
	}
}

// Stop aborts every active match. Used at server shutdown.
func (m *Manager) Stop() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, room := range m.rooms {
		room.Abort()
	}
}

func (m *Manager) leaveCurrentRoom(ctx context.Context, playerID int64) {
	if err := m.LeaveRoom(ctx, playerID); err != nil {
		if !IsRoomNotFound(err) && !IsNotAMember(err) {
			log.Warn("Failed to leave current room for player %d: %v", playerID, err)
		}
	}
}

func (m *Manager) removeRoom(ctx context.Context, code string) {
	m.mu.Lock()
	room, ok := m.rooms[code]
	if ok {
		delete(m.rooms, code)
		for playerID, c := range m.playerRooms {
			if c == code {
				delete(m.playerRooms, playerID)
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	room.Abort()
	m.publisher.ReleaseRoom(code)
	if m.repository != nil {
		if room.Status() == models.RoomStatusWaiting {
			if err := m.repository.DeleteRoom(ctx, code); err != nil {
				log.Error("Failed to delete room %s: %v", code, err)
			}
		}
	}
	log.Debug("Room %s removed", code)
}

func generateRoomCode(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(roomCodeChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = roomCodeChars[idx.Int64()]
	}
	return string(b)
}
