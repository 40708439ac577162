package types

import (
	"github.com/jdavenport/lockstep/pkg/game/constants"
	"github.com/jdavenport/lockstep/pkg/kinematic"
	"github.com/solarlune/resolv"
)

const (
	CollisionSpaceTagTank       string = "tank"
	CollisionSpaceTagProjectile string = "projectile"
	CollisionSpaceTagObstacle   string = "obstacle"
)

// TankState is a player's live combat state within an active match.
// Position is the center of the tank's collision box.
type TankState struct {
	PlayerID     int64
	Username     string
	Position     kinematic.Vector
	Velocity     kinematic.Vector
	Heading      float64
	Hitpoints    int
	MaxHitpoints int
	Kills        int
	Deaths       int
	// Departed is set when the player leaves mid-match. The tank is
	// eliminated but kept in the state so the scoreboard stays meaningful.
	Departed bool
	Object   *resolv.Object
}

func NewTankState(playerID int64, username string, x, y float64) *TankState {
	return &TankState{
		PlayerID:     playerID,
		Username:     username,
		Position:     kinematic.Vector{X: x, Y: y},
		Hitpoints:    constants.TankHitpoints,
		MaxHitpoints: constants.TankHitpoints,
		Object: resolv.NewObject(
			x-constants.TankWidth/2,
			y-constants.TankHeight/2,
			constants.TankWidth,
			constants.TankHeight,
			CollisionSpaceTagTank,
		),
	}
}

// Alive reports whether the tank is still in the fight.
// A tank is alive exactly when it has hitpoints left.
func (t *TankState) Alive() bool {
	return t.Hitpoints > 0
}

// TakeDamage reduces hitpoints, clamped at zero.
func (t *TankState) TakeDamage(damage int) {
	t.Hitpoints -= damage
	if t.Hitpoints < 0 {
		t.Hitpoints = 0
	}
}

// Eliminate marks the tank as out of the match.
func (t *TankState) Eliminate() {
	t.Hitpoints = 0
}

// SyncObject moves the collision object to match the tank's position.
func (t *TankState) SyncObject() {
	t.Object.Position.X = t.Position.X - constants.TankWidth/2
	t.Object.Position.Y = t.Position.Y - constants.TankHeight/2
	t.Object.Update()
}
