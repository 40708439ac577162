package types

import (
	"github.com/jdavenport/lockstep/pkg/game/constants"
	"github.com/jdavenport/lockstep/pkg/kinematic"
	"github.com/solarlune/resolv"
)

// Projectile is a fired shot in flight. Position is the center of the
// projectile's collision box.
type Projectile struct {
	ID        string
	OwnerID   int64
	Position  kinematic.Vector
	Velocity  kinematic.Vector
	Damage    int
	SpawnTick uint64
	// Consumed is set once the projectile has applied its damage.
	// A projectile damages at most one tank.
	Consumed bool
	Object   *resolv.Object
}

func NewProjectile(id string, ownerID int64, x, y, heading float64, spawnTick uint64) *Projectile {
	velocity := kinematic.Heading(heading).Scale(constants.ProjectileSpeed)
	return &Projectile{
		ID:        id,
		OwnerID:   ownerID,
		Position:  kinematic.Vector{X: x, Y: y},
		Velocity:  velocity,
		Damage:    constants.ProjectileDamage,
		SpawnTick: spawnTick,
		Object: resolv.NewObject(
			x-constants.ProjectileSize/2,
			y-constants.ProjectileSize/2,
			constants.ProjectileSize,
			constants.ProjectileSize,
			CollisionSpaceTagProjectile,
		),
	}
}

// Advance integrates the projectile's position over deltaTime.
func (p *Projectile) Advance(deltaTime float64) {
	p.Position.X += kinematic.Displacement(p.Velocity.X, deltaTime, 0)
	p.Position.Y += kinematic.Displacement(p.Velocity.Y, deltaTime, 0)
	p.SyncObject()
}

// InBounds reports whether the projectile is inside the arena.
// Bounds are inclusive at the lower edge and exclusive at the upper edge.
func (p *Projectile) InBounds() bool {
	return p.Position.X >= 0 && p.Position.X < constants.ArenaWidth &&
		p.Position.Y >= 0 && p.Position.Y < constants.ArenaHeight
}

// Expired reports whether the projectile has exceeded its maximum
// lifetime as of the given tick.
func (p *Projectile) Expired(tick uint64, tickSeconds float64) bool {
	return float64(tick-p.SpawnTick)*tickSeconds > constants.ProjectileMaxLifetime
}

// SyncObject moves the collision object to match the projectile's position.
func (p *Projectile) SyncObject() {
	p.Object.Position.X = p.Position.X - constants.ProjectileSize/2
	p.Object.Position.Y = p.Position.Y - constants.ProjectileSize/2
	p.Object.Update()
}
