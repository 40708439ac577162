package constants

import "math"

const (
	// ArenaWidth is the width of the arena in pixels
	ArenaWidth float64 = 800.0
	// ArenaHeight is the height of the arena in pixels
	ArenaHeight float64 = 600.0
	// CollisionCellSize is the cell size of the collision space
	CollisionCellSize int = 16

	// TankWidth is the width of a tank's collision box
	TankWidth float64 = 30.0
	// TankHeight is the height of a tank's collision box
	TankHeight float64 = 30.0
	// TankHitpoints is the starting hitpoints of a tank
	TankHitpoints int = 100
	// TankMoveSpeed is the maximum speed at which tanks move
	TankMoveSpeed float64 = 200.0
	// TankTurnRate is the maximum turn rate of a tank in radians per second
	TankTurnRate float64 = 2 * math.Pi

	// ProjectileSpeed is the speed at which projectiles travel
	ProjectileSpeed float64 = 400.0
	// ProjectileSize is the size of a projectile's collision box
	ProjectileSize float64 = 4.0
	// ProjectileDamage is the damage a projectile deals on hit
	ProjectileDamage int = 25
	// ProjectileMaxLifetime is the maximum time a projectile stays in flight
	ProjectileMaxLifetime float64 = 10.0 // seconds

	// FireCooldown is the minimum interval between shots per player
	FireCooldown float64 = 0.5 // seconds
)

// Rect is an axis-aligned rectangle used for arena obstacles.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Obstacles are the fixed barriers inside the arena.
var Obstacles = []Rect{
	{X: 100, Y: 100, Width: 100, Height: 50},
	{X: 600, Y: 100, Width: 100, Height: 50},
	{X: 200, Y: 300, Width: 400, Height: 50},
	{X: 100, Y: 450, Width: 100, Height: 50},
	{X: 600, Y: 450, Width: 100, Height: 50},
	{X: 350, Y: 200, Width: 100, Height: 80},
	{X: 350, Y: 400, Width: 100, Height: 80},
}

// SpawnPoints are the fixed tank spawn locations, assigned to members
// in ascending player id order when a match starts.
var SpawnPoints = [][2]float64{
	{50, 50},
	{750, 50},
	{50, 550},
	{750, 550},
	{400, 50},
	{400, 550},
	{50, 300},
	{750, 300},
}
