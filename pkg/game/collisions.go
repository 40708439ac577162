package game

import (
	"github.com/jdavenport/lockstep/pkg/game/constants"
	"github.com/jdavenport/lockstep/pkg/game/types"
	"github.com/solarlune/resolv"
)

// NewCollisionSpace builds the arena collision space with its fixed
// obstacles. Tanks and projectiles are added as the match runs.
func NewCollisionSpace() *resolv.Space {
	space := resolv.NewSpace(
		int(constants.ArenaWidth),
		int(constants.ArenaHeight),
		constants.CollisionCellSize,
		constants.CollisionCellSize,
	)
	for _, o := range constants.Obstacles {
		space.Add(resolv.NewObject(o.X, o.Y, o.Width, o.Height, types.CollisionSpaceTagObstacle))
	}
	return space
}

// ArenaBounds returns the playable area of the arena.
// Bounds are inclusive at the lower edge and exclusive at the upper edge.
func ArenaBounds() (minX, minY, maxX, maxY float64) {
	return 0, 0, constants.ArenaWidth, constants.ArenaHeight
}
