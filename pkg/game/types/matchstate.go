package types

import (
	"sort"

	"github.com/solarlune/resolv"
)

// MatchState is the authoritative in-memory state of one room's active
// match. It is exclusively owned by the room's tick goroutine; nothing
// outside the tick path mutates it.
type MatchState struct {
	// Timestamp is the time at which the state was last updated
	Timestamp int64
	// Tick is the number of simulation steps applied so far
	Tick uint64
	// Tanks maps player IDs to tank states
	Tanks map[int64]*TankState
	// Projectiles holds live projectiles in spawn order
	Projectiles []*Projectile
	// CollisionSpace is a resolv.Space used for collision detection
	CollisionSpace *resolv.Space
}

func NewMatchState(collisionSpace *resolv.Space) *MatchState {
	return &MatchState{
		Tanks:          make(map[int64]*TankState),
		CollisionSpace: collisionSpace,
	}
}

// AddTank registers a tank and its collision object.
func (m *MatchState) AddTank(tank *TankState) {
	m.Tanks[tank.PlayerID] = tank
	m.CollisionSpace.Add(tank.Object)
}

// AddProjectile registers a projectile and its collision object.
func (m *MatchState) AddProjectile(p *Projectile) {
	m.Projectiles = append(m.Projectiles, p)
	m.CollisionSpace.Add(p.Object)
}

// RemoveProjectile drops a projectile's collision object. The caller is
// responsible for removing it from the Projectiles slice.
func (m *MatchState) RemoveProjectile(p *Projectile) {
	m.CollisionSpace.Remove(p.Object)
}

// TankIDs returns all player IDs in ascending order. The fixed order
// keeps tick processing deterministic.
func (m *MatchState) TankIDs() []int64 {
	ids := make([]int64, 0, len(m.Tanks))
	for id := range m.Tanks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AliveCount returns the number of alive tanks whose players have not left.
func (m *MatchState) AliveCount() int {
	count := 0
	for _, tank := range m.Tanks {
		if tank.Alive() && !tank.Departed {
			count++
		}
	}
	return count
}
